package mcu

import (
	"encoding/json"
	"fmt"

	"avradc/adc"
	"avradc/config"
	"avradc/protocol"
)

// Reading is one adc_result.
type Reading struct {
	Channel   adc.Channel
	Alignment adc.Alignment
	Value     uint16
}

// Bits is the resolution of Value: 8 when left-aligned, 10 otherwise.
func (r Reading) Bits() uint {
	if r.Alignment == adc.Left {
		return 8
	}
	return 10
}

// Microvolts scales Value against a reference of refMilliV.
func (r Reading) Microvolts(refMilliV uint32) uint32 {
	return uint32((uint64(r.Value) * uint64(refMilliV) * 1000) >> r.Bits())
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ConfigureADC selects reference, alignment, clock and channel and enables
// the converter.
func (m *MCU) ConfigureADC(ref adc.ReferenceVoltage, align adc.Alignment, p adc.Prescale, ch adc.Channel) error {
	return m.SendCommand("config_adc", uint32(ref), uint32(align), uint32(p), uint32(ch))
}

func (m *MCU) SetReference(ref adc.ReferenceVoltage) error {
	return m.SendCommand("adc_set_reference", uint32(ref))
}

func (m *MCU) SetAlignment(align adc.Alignment) error {
	return m.SendCommand("adc_set_alignment", uint32(align))
}

func (m *MCU) SetChannel(ch adc.Channel) error {
	return m.SendCommand("adc_set_channel", uint32(ch))
}

func (m *MCU) SetPrescale(p adc.Prescale) error {
	return m.SendCommand("adc_set_prescale", uint32(p))
}

func (m *MCU) Enable(on bool) error {
	return m.SendCommand("adc_enable", flag(on))
}

// SetTrigger selects src and turns auto-triggering on or off.
func (m *MCU) SetTrigger(on bool, src adc.TriggerSource) error {
	return m.SendCommand("adc_auto_trigger", flag(on), uint32(src))
}

func (m *MCU) EnableInterrupt(on bool) error {
	return m.SendCommand("adc_enable_interrupt", flag(on))
}

func (m *MCU) DisableDigitalInput(ch adc.Channel, disable bool) error {
	return m.SendCommand("adc_digital_input", uint32(ch), flag(disable))
}

func (m *MCU) StartConversion() error {
	return m.SendCommand("adc_start")
}

// PollComplete reports, and consumes, the conversion complete flag.
func (m *MCU) PollComplete() (bool, error) {
	resp, err := m.Query("adc_poll", nil, "adc_complete")
	if err != nil {
		return false, err
	}
	return resp.Get("done") != 0, nil
}

// ReadADC runs one conversion on the selected channel. A firmware-side
// timeout is returned as adc.ErrConversionTimeout.
func (m *MCU) ReadADC() (Reading, error) {
	resp, err := m.Query("adc_read", nil, "adc_result", "adc_timeout")
	if err != nil {
		return Reading{}, err
	}
	ch := adc.Channel(resp.Get("channel"))
	if resp.Name == "adc_timeout" {
		return Reading{Channel: ch}, fmt.Errorf("%w on %s", adc.ErrConversionTimeout, ch)
	}
	return Reading{
		Channel:   ch,
		Alignment: adc.Alignment(resp.Get("align")),
		Value:     uint16(resp.Get("value")),
	}, nil
}

// QueryADC returns the control registers.
func (m *MCU) QueryADC() (adc.State, error) {
	resp, err := m.Query("adc_query", nil, "adc_state")
	if err != nil {
		return adc.State{}, err
	}
	return adc.State{
		ADMUX:  uint8(resp.Get("mux")),
		ADCSRA: uint8(resp.Get("ctrl_a")),
		ADCSRB: uint8(resp.Get("ctrl_b")),
		DIDR0:  uint8(resp.Get("didr")),
	}, nil
}

// GetConfig reports whether a configuration was finalized and its CRC.
func (m *MCU) GetConfig() (bool, uint32, error) {
	resp, err := m.Query("get_config", nil, "config")
	if err != nil {
		return false, 0, err
	}
	return resp.Get("is_config") != 0, resp.Get("crc"), nil
}

// ConfigCRC identifies cfg on the firmware side.
func ConfigCRC(cfg *config.ADCConfig) (uint32, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	// Never zero: zero means "not configured".
	return uint32(protocol.CRC16(data)) | 1<<16, nil
}

// ApplyConfig programs the firmware from cfg and finalizes it with its CRC.
func (m *MCU) ApplyConfig(cfg *config.ADCConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	crc, err := ConfigCRC(cfg)
	if err != nil {
		return err
	}

	steps := []func() error{
		func() error { return m.SendCommand("config_reset") },
		func() error { return m.ConfigureADC(cfg.Reference, cfg.Alignment, cfg.Prescale, cfg.Channel) },
		func() error { return m.SetTrigger(cfg.AutoTrigger, cfg.TriggerSource) },
		func() error { return m.EnableInterrupt(cfg.Interrupt) },
	}
	for _, ch := range cfg.DigitalDisable {
		ch := ch
		steps = append(steps, func() error { return m.DisableDigitalInput(ch, true) })
	}
	steps = append(steps, func() error { return m.SendCommand("finalize_config", crc) })

	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
	}
	return nil
}
