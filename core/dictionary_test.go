package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

type parsedDict struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Dictionary is not zlib: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate failed: %v", err)
	}
	return out
}

func TestDictionaryJSON(t *testing.T) {
	resetGlobals()
	InitCoreCommands()
	InitADCCommands()
	RegisterConstant("MCU", "atmega328p")
	GetGlobalDictionary().BuildDictionary()

	raw := inflate(t, GetGlobalDictionary().Generate())
	var d parsedDict
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, raw)
	}

	if d.Responses["identify_response offset=%u data=%.*s"] != 0 {
		t.Error("Expected identify_response as ID 0")
	}
	if d.Commands["identify offset=%u count=%c"] != 1 {
		t.Error("Expected identify as ID 1")
	}
	if _, ok := d.Commands["config_adc ref=%c align=%c prescale=%c channel=%c"]; !ok {
		t.Error("Expected config_adc in commands")
	}
	if _, ok := d.Responses["adc_result channel=%c align=%c value=%hu"]; !ok {
		t.Error("Expected adc_result in responses")
	}
	if d.Config["MCU"] != "atmega328p" || d.Config["ADC_MAX"] != "1023" {
		t.Errorf("Unexpected config %v", d.Config)
	}

	if d.Enumerations["adc_reference"]["AVCC"] != 2 {
		t.Errorf("Expected AVCC=2, got %v", d.Enumerations["adc_reference"])
	}
	if d.Enumerations["adc_channel"]["GND"] != 10 {
		t.Errorf("Expected GND=10, got %v", d.Enumerations["adc_channel"])
	}
	pre := d.Enumerations["adc_prescale"]
	if len(pre) != 7 || pre["P2"] != 1 || pre["P128"] != 7 {
		t.Errorf("Unexpected prescale enumeration %v", pre)
	}
}

func TestDictionaryChunks(t *testing.T) {
	resetGlobals()
	InitCoreCommands()
	dict := GetGlobalDictionary()
	full := dict.Generate()

	var got []byte
	for offset := uint32(0); ; {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
		offset += uint32(len(chunk))
	}
	if string(got) != string(full) {
		t.Error("Chunks do not reassemble the dictionary")
	}
	if len(dict.GetChunk(uint32(len(full))+10, 40)) != 0 {
		t.Error("Expected empty chunk past the end")
	}
}

func TestDictionaryInvalidatedByRegistration(t *testing.T) {
	resetGlobals()
	dict := GetGlobalDictionary()
	before := string(dict.Generate())
	RegisterConstant("CLOCK_FREQ", "16000000")
	if string(dict.Generate()) == before {
		t.Error("Expected dictionary rebuilt after adding a constant")
	}
}

func TestDictionaryPlain(t *testing.T) {
	resetGlobals()
	InitCoreCommands()
	dict := GetGlobalDictionary()
	compressed := dict.Generate()

	dict.SetCompression(false)
	plain := dict.Generate()
	if plain[0] != '{' {
		t.Errorf("Expected plain JSON, got % X", plain[:4])
	}
	if !bytes.Equal(inflate(t, compressed), plain) {
		t.Error("Compressed and plain dictionaries differ")
	}
}
