package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"avradc/adc"
	"avradc/adc/adcsim"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := Default()
	if config.Reference != want.Reference || config.Alignment != want.Alignment ||
		config.Prescale != want.Prescale || config.Channel != want.Channel ||
		config.TriggerSource != want.TriggerSource {
		t.Errorf("Expected defaults %+v, got %+v", want, config)
	}
}

func TestLoadConfigFields(t *testing.T) {
	config, err := LoadConfig([]byte(`{
		"reference": "INTERNAL",
		"alignment": "LEFT",
		"prescale": "P16",
		"channel": "ADC3",
		"auto_trigger": true,
		"trigger_source": "TIMER1_OVERFLOW",
		"interrupt": true,
		"digital_disable": ["ADC3", "ADC5"]
	}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Reference != adc.Internal {
		t.Errorf("Expected INTERNAL, got %v", config.Reference)
	}
	if config.Alignment != adc.Left {
		t.Errorf("Expected LEFT, got %v", config.Alignment)
	}
	if config.Prescale != adc.P16 {
		t.Errorf("Expected P16, got %v", config.Prescale)
	}
	if config.Channel != adc.ADC3 {
		t.Errorf("Expected ADC3, got %v", config.Channel)
	}
	if !config.AutoTrigger || !config.Interrupt {
		t.Error("Expected auto trigger and interrupt enabled")
	}
	if config.TriggerSource != adc.Timer1Overflow {
		t.Errorf("Expected TIMER1_OVERFLOW, got %v", config.TriggerSource)
	}
	if len(config.DigitalDisable) != 2 || config.DigitalDisable[1] != adc.ADC5 {
		t.Errorf("Unexpected digital_disable %v", config.DigitalDisable)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name string
		json string
		want error
	}{
		{"unknown reference", `{"reference": "5V"}`, adc.ErrUnknownReference},
		{"unknown channel", `{"channel": "ADC9"}`, adc.ErrUnknownChannel},
		{"not analog", `{"digital_disable": ["ADC6"]}`, ErrNotAnalogPin},
		{"temperature", `{"digital_disable": ["TEMPERATURE"]}`, ErrNotAnalogPin},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tc.json))
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := LoadConfig([]byte(`{`)); err == nil {
		t.Error("Expected syntax error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adc.json")
	if err := os.WriteFile(path, []byte(`{"channel": "ADC1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if config.Channel != adc.ADC1 {
		t.Errorf("Expected ADC1, got %v", config.Channel)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	config := &ADCConfig{}
	applyDefaults(config)
	if config.Prescale != adc.P128 {
		t.Errorf("Expected P128, got %v", config.Prescale)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestApply(t *testing.T) {
	sim := adcsim.New()
	a := adc.New(sim.Registers())

	config := Default()
	config.Channel = adc.ADC2
	config.AutoTrigger = true
	config.TriggerSource = adc.Timer0Overflow
	config.Interrupt = true
	config.DigitalDisable = []adc.Channel{adc.ADC2, adc.ADC4}

	if err := config.Apply(a); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if sim.ADMUX() != 0b01000010 {
		t.Errorf("Expected ADMUX 0b01000010, got %08b", sim.ADMUX())
	}
	wantA := adc.ADCSRA_ADEN | adc.ADCSRA_ADATE | adc.ADCSRA_ADIE | uint8(adc.P128)
	if sim.ADCSRA() != wantA {
		t.Errorf("Expected ADCSRA %08b, got %08b", wantA, sim.ADCSRA())
	}
	if sim.ADCSRB() != uint8(adc.Timer0Overflow) {
		t.Errorf("Expected ADTS %03b, got %03b", uint8(adc.Timer0Overflow), sim.ADCSRB())
	}
	if sim.DIDR0() != 0b010100 {
		t.Errorf("Expected DIDR0 010100, got %06b", sim.DIDR0())
	}
}

func TestApplyRejectsInvalid(t *testing.T) {
	sim := adcsim.New()
	a := adc.New(sim.Registers())

	config := Default()
	config.Prescale = 9
	if err := config.Apply(a); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Expected ErrInvalidValue, got %v", err)
	}
	if sim.ADMUX() != 0 || sim.ADCSRA() != 0 {
		t.Error("Expected registers untouched")
	}
}
