package mcu

import (
	"errors"
	"testing"

	"avradc/protocol"
)

const testDictionary = `{
	"version": "test",
	"build_versions": "go",
	"config": {"ADC_MAX": "1023"},
	"commands": {"identify offset=%u count=%c": 1, "adc_read": 2},
	"responses": {
		"identify_response offset=%u data=%.*s": 0,
		"adc_result channel=%c align=%c value=%hu": 3
	},
	"enumerations": {"adc_alignment": {"LEFT": 0, "RIGHT": 1}}
}`

func TestParseDictionary(t *testing.T) {
	d, err := ParseDictionary([]byte(testDictionary))
	if err != nil {
		t.Fatalf("ParseDictionary failed: %v", err)
	}

	cmd, ok := d.Command("identify")
	if !ok || cmd.ID != 1 || len(cmd.Params) != 2 || cmd.Params[1].Name != "count" {
		t.Errorf("Unexpected identify %+v", cmd)
	}
	read, ok := d.Command("adc_read")
	if !ok || len(read.Params) != 0 {
		t.Errorf("Unexpected adc_read %+v", read)
	}
	if v, ok := d.Enum("adc_alignment", "RIGHT"); !ok || v != 1 {
		t.Errorf("Expected RIGHT=1, got %d %v", v, ok)
	}
	if _, ok := d.Enum("adc_alignment", "CENTER"); ok {
		t.Error("Expected CENTER missing")
	}
}

func TestParseDictionaryErrors(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{"syntax", `{"commands":`},
		{"bad field", `{"commands": {"adc_set_channel channel": 2}}`},
		{"empty signature", `{"responses": {"": 0}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDictionary([]byte(tc.json)); !errors.Is(err, ErrDictionaryFormat) {
				t.Errorf("Expected ErrDictionaryFormat, got %v", err)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	d, err := ParseDictionary([]byte(testDictionary))
	if err != nil {
		t.Fatal(err)
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 3)
	protocol.EncodeVLQUint(out, 2)
	protocol.EncodeVLQUint(out, 1)
	protocol.EncodeVLQUint(out, 0x2CC)

	resp, err := d.Decode(out.Result())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Name != "adc_result" || resp.Get("channel") != 2 || resp.Get("align") != 1 || resp.Get("value") != 0x2CC {
		t.Errorf("Unexpected response %+v", resp)
	}

	out.Reset()
	protocol.EncodeVLQUint(out, 0)
	protocol.EncodeVLQUint(out, 40)
	protocol.EncodeVLQBytes(out, []byte(`{"ver`))
	resp, err = d.Decode(out.Result())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Get("offset") != 40 || string(resp.Data["data"]) != `{"ver` {
		t.Errorf("Unexpected identify_response %+v", resp)
	}

	out.Reset()
	protocol.EncodeVLQUint(out, 9)
	if _, err := d.Decode(out.Result()); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestReadingMicrovolts(t *testing.T) {
	r := Reading{Alignment: 1, Value: 512}
	if got := r.Microvolts(5000); got != 2500000 {
		t.Errorf("Expected 2500000 uV, got %d", got)
	}
}
