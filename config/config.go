// Package config describes how the converter is brought up: reference,
// alignment, clock, input and the optional trigger, interrupt and
// digital-input settings.
package config

import (
	"errors"

	"avradc/adc"
)

var (
	// ErrNotAnalogPin rejects digital_disable entries without a DIDR0 bit.
	ErrNotAnalogPin = errors.New("channel has no digital input buffer")
	ErrInvalidValue = errors.New("value out of range")
)

// ADCConfig is the converter configuration. Enumerations are written by
// name in JSON ("AVCC", "RIGHT", "P128", "ADC3", "TIMER1_OVERFLOW").
type ADCConfig struct {
	Reference      adc.ReferenceVoltage `json:"reference"`
	Alignment      adc.Alignment        `json:"alignment"`
	Prescale       adc.Prescale         `json:"prescale"`
	Channel        adc.Channel          `json:"channel"`
	AutoTrigger    bool                 `json:"auto_trigger"`
	TriggerSource  adc.TriggerSource    `json:"trigger_source"`
	Interrupt      bool                 `json:"interrupt"`
	DigitalDisable []adc.Channel        `json:"digital_disable,omitempty"`
}

// Default returns AVCC reference, right alignment, the slowest clock
// (P128, 125 kHz at 16 MHz) and ADC0, free running, interrupt off.
func Default() *ADCConfig {
	return &ADCConfig{
		Reference:     adc.AVCC,
		Alignment:     adc.Right,
		Prescale:      adc.P128,
		Channel:       adc.ADC0,
		TriggerSource: adc.FreeRunning,
	}
}

// applyDefaults fills in values that have no usable zero value.
func applyDefaults(config *ADCConfig) {
	if config.Prescale == 0 {
		config.Prescale = adc.P128
	}
}

// Validate checks every field against the register encodings.
func (c *ADCConfig) Validate() error {
	switch {
	case c.Reference > adc.AVCC,
		c.Alignment > adc.Right,
		c.Prescale < adc.P2 || c.Prescale > adc.P128,
		!c.Channel.Valid(),
		c.TriggerSource > adc.Timer1Capture:
		return ErrInvalidValue
	}
	for _, ch := range c.DigitalDisable {
		if !ch.IsAnalogPin() {
			return ErrNotAnalogPin
		}
	}
	return nil
}

// Apply programs a from c. The trigger source is selected before
// auto-triggering is enabled.
func (c *ADCConfig) Apply(a *adc.ADC) error {
	if err := c.Validate(); err != nil {
		return err
	}
	a.Init(c.Reference, c.Alignment, c.Prescale, c.Channel)
	a.SetAutoTriggerSource(c.TriggerSource)
	a.EnableAutoTrigger(c.AutoTrigger)
	a.EnableInterrupt(c.Interrupt)
	for _, ch := range c.DigitalDisable {
		a.DisableDigitalInput(ch, true)
	}
	return nil
}
