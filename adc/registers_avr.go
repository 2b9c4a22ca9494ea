//go:build tinygo && avr

package adc

import "device/avr"

// HardwareRegisters returns the register file bound to the memory-mapped
// ADC registers of the running chip.
func HardwareRegisters() *Registers {
	return &Registers{
		ADMUX:  avr.ADMUX,
		ADCSRA: avr.ADCSRA,
		ADCSRB: avr.ADCSRB,
		DIDR0:  avr.DIDR0,
		ADCL:   avr.ADCL,
		ADCH:   avr.ADCH,
	}
}
