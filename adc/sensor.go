package adc

import (
	"context"

	"tinygo.org/x/drivers"
)

// Sensor exposes one ADC channel as a tinygo drivers.Sensor.
type Sensor struct {
	adc       *ADC
	channel   Channel
	refMilliV uint32

	raw   uint16
	align Alignment
}

var _ drivers.Sensor = (*Sensor)(nil)

// NewSensor returns a sensor reading ch against a reference of refMilliV
// millivolts.
func NewSensor(a *ADC, ch Channel, refMilliV uint32) *Sensor {
	return &Sensor{
		adc:       a,
		channel:   ch,
		refMilliV: refMilliV,
	}
}

// Update selects the sensor's channel and performs one conversion when a
// voltage measurement is requested.
func (s *Sensor) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	s.adc.SetChannel(s.channel)
	s.align = s.adc.BitAlignment()
	v, err := s.adc.ReadContext(context.Background())
	if err != nil {
		return err
	}
	s.raw = v
	return nil
}

// Raw returns the value of the last conversion.
func (s *Sensor) Raw() uint16 {
	return s.raw
}

// Voltage returns the last conversion in microvolts.
func (s *Sensor) Voltage() int32 {
	bits := uint(10)
	if s.align == Left {
		bits = 8
	}
	return int32(uint64(s.raw) * uint64(s.refMilliV) * 1000 >> bits)
}

// Channel returns the channel the sensor samples.
func (s *Sensor) Channel() Channel {
	return s.channel
}
