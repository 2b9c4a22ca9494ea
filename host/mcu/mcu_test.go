package mcu

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"avradc/adc"
	"avradc/config"
	"avradc/host/virtual"
)

func connect(t *testing.T) (*MCU, *virtual.Port) {
	t.Helper()
	port := virtual.New()
	m := NewMCU()
	if err := m.ConnectPort(port); err != nil {
		t.Fatalf("ConnectPort failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary failed: %v", err)
	}
	return m, port
}

func TestRetrieveDictionary(t *testing.T) {
	m, _ := connect(t)
	d := m.GetDictionary()

	if d.Config["MCU"] != "atmega328p-virtual" {
		t.Errorf("Expected MCU constant, got %v", d.Config)
	}
	for _, name := range []string{"identify", "config_adc", "adc_read", "adc_query", "finalize_config"} {
		if _, ok := d.Command(name); !ok {
			t.Errorf("Expected command %s", name)
		}
	}
	if v, ok := d.Enum("adc_trigger", "TIMER1_CAPTURE"); !ok || v != uint32(adc.Timer1Capture) {
		t.Errorf("Expected TIMER1_CAPTURE=%d, got %d %v", adc.Timer1Capture, v, ok)
	}

	var buf bytes.Buffer
	m.WriteDictionary(&buf)
	if !strings.Contains(buf.String(), "[1] identify offset=%u count=%c") {
		t.Errorf("Summary missing identify:\n%s", buf.String())
	}
}

func TestReadADC(t *testing.T) {
	m, port := connect(t)
	port.Peripheral().SetInput(adc.ADC2, 0x2CC)

	if err := m.ConfigureADC(adc.AVCC, adc.Right, adc.P128, adc.ADC2); err != nil {
		t.Fatalf("ConfigureADC failed: %v", err)
	}
	r, err := m.ReadADC()
	if err != nil {
		t.Fatalf("ReadADC failed: %v", err)
	}
	if r.Channel != adc.ADC2 || r.Alignment != adc.Right || r.Value != 0x2CC {
		t.Errorf("Unexpected reading %+v", r)
	}

	if err := m.SetAlignment(adc.Left); err != nil {
		t.Fatal(err)
	}
	r, err = m.ReadADC()
	if err != nil {
		t.Fatalf("ReadADC failed: %v", err)
	}
	if r.Value != 0xB3 || r.Bits() != 8 {
		t.Errorf("Expected 8-bit 0xB3, got %+v", r)
	}
	t.Logf("ADC2 = %d uV", r.Microvolts(5000))
}

func TestReadADCTimeout(t *testing.T) {
	m, _ := connect(t)

	if err := m.SetChannel(adc.ADC4); err != nil {
		t.Fatal(err)
	}
	r, err := m.ReadADC()
	if !errors.Is(err, adc.ErrConversionTimeout) {
		t.Fatalf("Expected ErrConversionTimeout, got %v", err)
	}
	if r.Channel != adc.ADC4 {
		t.Errorf("Expected timeout on ADC4, got %v", r.Channel)
	}
}

func TestPollComplete(t *testing.T) {
	m, _ := connect(t)
	if err := m.Enable(true); err != nil {
		t.Fatal(err)
	}
	if err := m.StartConversion(); err != nil {
		t.Fatal(err)
	}
	for i, want := range []bool{false, true, false} {
		done, err := m.PollComplete()
		if err != nil {
			t.Fatal(err)
		}
		if done != want {
			t.Errorf("Poll %d: expected %v, got %v", i, want, done)
		}
	}
}

func TestApplyConfig(t *testing.T) {
	m, _ := connect(t)

	cfg := config.Default()
	cfg.Reference = adc.Internal
	cfg.Channel = adc.Temperature
	cfg.AutoTrigger = true
	cfg.TriggerSource = adc.Timer1CompareB
	cfg.DigitalDisable = []adc.Channel{adc.ADC0, adc.ADC1}

	if err := m.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig failed: %v", err)
	}

	state, err := m.QueryADC()
	if err != nil {
		t.Fatal(err)
	}
	if state.ADMUX != 0b11001000 {
		t.Errorf("Expected ADMUX 0b11001000, got %08b", state.ADMUX)
	}
	if state.ADCSRA&adc.ADCSRA_ADATE == 0 || state.ADCSRA&adc.ADCSRA_ADEN == 0 {
		t.Errorf("Expected ADEN and ADATE, got %08b", state.ADCSRA)
	}
	if state.ADCSRB != uint8(adc.Timer1CompareB) || state.DIDR0 != 0b11 {
		t.Errorf("Unexpected ADCSRB=%03b DIDR0=%06b", state.ADCSRB, state.DIDR0)
	}

	configured, crc, err := m.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	want, _ := ConfigCRC(cfg)
	if !configured || crc != want {
		t.Errorf("Expected finalized crc %#x, got %v %#x", want, configured, crc)
	}
}

func TestApplyConfigRejectsInvalid(t *testing.T) {
	m, _ := connect(t)
	cfg := config.Default()
	cfg.DigitalDisable = []adc.Channel{adc.ADC7}
	if err := m.ApplyConfig(cfg); !errors.Is(err, config.ErrNotAnalogPin) {
		t.Errorf("Expected ErrNotAnalogPin, got %v", err)
	}
}

func TestSendCommandErrors(t *testing.T) {
	m, _ := connect(t)

	if err := m.SendCommand("adc_calibrate"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
	if err := m.SendCommand("adc_set_channel"); !errors.Is(err, ErrArgumentCount) {
		t.Errorf("Expected ErrArgumentCount, got %v", err)
	}

	// Rejected by the firmware but still acknowledged.
	if err := m.SendCommand("adc_set_channel", 11); err != nil {
		t.Errorf("Expected ACK for rejected argument, got %v", err)
	}
	state, err := m.QueryADC()
	if err != nil {
		t.Fatalf("Link unusable after rejected command: %v", err)
	}
	if state.ADMUX&adc.ADMUX_MUX_Msk != 0 {
		t.Errorf("Expected channel unchanged, got MUX %04b", state.ADMUX&adc.ADMUX_MUX_Msk)
	}
}

func TestNotConnected(t *testing.T) {
	m := NewMCU()
	if err := m.RetrieveDictionary(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := m.SendCommand("adc_start"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	m, _ := connect(t)
	m.ResponseTimeout = 50 * time.Millisecond

	// adc_start sends no response.
	if _, err := m.Query("adc_start", nil, "adc_complete"); err == nil {
		t.Error("Expected response timeout")
	}
}

func TestIsZlib(t *testing.T) {
	if !isZlib([]byte{0x78, 0x9C}) || !isZlib([]byte{0x78, 0x01}) {
		t.Error("Expected zlib headers recognized")
	}
	if isZlib([]byte(`{"version"`)) || isZlib(nil) {
		t.Error("Expected JSON not taken for zlib")
	}
}
