// Package adcsim simulates the ATmega328P ADC register file so the adc
// package can be exercised without hardware.
package adcsim

import "avradc/adc"

// Reg8 is a plain memory register with no side effects.
type Reg8 struct {
	Value uint8
}

func (r *Reg8) Get() uint8 {
	return r.Value
}

func (r *Reg8) Set(v uint8) {
	r.Value = v
}

// NewRegisters returns a register file backed by plain Reg8 values.
func NewRegisters() *adc.Registers {
	return &adc.Registers{
		ADMUX:  &Reg8{},
		ADCSRA: &Reg8{},
		ADCSRB: &Reg8{},
		DIDR0:  &Reg8{},
		ADCL:   &Reg8{},
		ADCH:   &Reg8{},
	}
}

// Peripheral models the converter behind the registers:
//
//   - writing ADSC with ADEN set starts a conversion; ADSC reads back as 1
//     until it completes
//   - a conversion completes after ConversionPolls reads of ADCSRA, latching
//     the input into ADCH:ADCL per ADLAR and raising ADIF
//   - ADIF is write-one-to-clear
//   - reading ADCL blocks data register updates until ADCH is read
type Peripheral struct {
	// ConversionPolls is how many ADCSRA reads a conversion takes.
	// Zero means one.
	ConversionPolls int

	admux  Reg8
	adcsra adcsra
	adcsrb Reg8
	didr0  Reg8
	adcl   dataReg
	adch   dataReg

	inputs  [16]uint16
	source  func(code uint8) uint16
	locked  bool
	reads   []string
	pending int
	busy    bool
	count   int
}

// New returns an idle peripheral with every input at zero.
func New() *Peripheral {
	p := &Peripheral{}
	p.adcsra.p = p
	p.adcl = dataReg{p: p, high: false}
	p.adch = dataReg{p: p, high: true}
	return p
}

// Registers returns the register file wired to the peripheral.
func (p *Peripheral) Registers() *adc.Registers {
	return &adc.Registers{
		ADMUX:  &p.admux,
		ADCSRA: &p.adcsra,
		ADCSRB: &p.adcsrb,
		DIDR0:  &p.didr0,
		ADCL:   &p.adcl,
		ADCH:   &p.adch,
	}
}

// SetInput sets the 10-bit value converted on the mux code of ch.
func (p *Peripheral) SetInput(ch adc.Channel, value uint16) {
	p.inputs[ch.Code()] = value & 0x3FF
}

// SetSource replaces the per-channel inputs with fn, called once per
// conversion with the mux code.
func (p *Peripheral) SetSource(fn func(code uint8) uint16) {
	p.source = fn
}

// Trigger simulates an auto-trigger event. A conversion starts only when the
// converter and auto-triggering are enabled and none is in progress.
func (p *Peripheral) Trigger() {
	v := p.adcsra.value
	if v&adc.ADCSRA_ADEN != 0 && v&adc.ADCSRA_ADATE != 0 {
		p.start()
	}
}

// Reads returns the data register reads in order ("ADCL", "ADCH").
func (p *Peripheral) Reads() []string {
	return p.reads
}

// Conversions returns how many conversions have completed.
func (p *Peripheral) Conversions() int {
	return p.count
}

// Busy reports whether a conversion is in progress.
func (p *Peripheral) Busy() bool {
	return p.busy
}

// Raw register values, bypassing side effects.

func (p *Peripheral) ADMUX() uint8  { return p.admux.Value }
func (p *Peripheral) ADCSRA() uint8 { return p.adcsra.value }
func (p *Peripheral) ADCSRB() uint8 { return p.adcsrb.Value }
func (p *Peripheral) DIDR0() uint8  { return p.didr0.Value }

// SetADCSRA stores v directly, without starting conversions or clearing
// flags. Useful to preload a stale ADIF.
func (p *Peripheral) SetADCSRA(v uint8) {
	p.adcsra.value = v
}

func (p *Peripheral) start() {
	if p.busy {
		return
	}
	p.busy = true
	p.adcsra.value |= adc.ADCSRA_ADSC
	p.pending = p.ConversionPolls
	if p.pending <= 0 {
		p.pending = 1
	}
}

func (p *Peripheral) tick() {
	if !p.busy {
		return
	}
	p.pending--
	if p.pending > 0 {
		return
	}
	p.complete()
}

func (p *Peripheral) complete() {
	p.busy = false
	p.count++
	p.adcsra.value &^= adc.ADCSRA_ADSC
	p.adcsra.value |= adc.ADCSRA_ADIF

	if p.locked {
		return
	}
	code := p.admux.Value & adc.ADMUX_MUX_Msk
	v := p.inputs[code]
	if p.source != nil {
		v = p.source(code) & 0x3FF
	}
	if p.admux.Value&adc.ADMUX_ADLAR != 0 {
		v <<= 6
	}
	p.adcl.value = uint8(v)
	p.adch.value = uint8(v >> 8)
}

// adcsra implements ADSC start and ADIF write-one-to-clear.
type adcsra struct {
	p     *Peripheral
	value uint8
}

func (r *adcsra) Get() uint8 {
	v := r.value
	r.p.tick()
	return v
}

func (r *adcsra) Set(v uint8) {
	old := r.value
	next := v &^ (adc.ADCSRA_ADIF | adc.ADCSRA_ADSC)
	// ADIF is kept unless a one is written to it.
	if old&adc.ADCSRA_ADIF != 0 && v&adc.ADCSRA_ADIF == 0 {
		next |= adc.ADCSRA_ADIF
	}
	// ADSC cannot be cleared by software.
	if old&adc.ADCSRA_ADSC != 0 {
		next |= adc.ADCSRA_ADSC
	}
	r.value = next
	if v&adc.ADCSRA_ADSC != 0 && next&adc.ADCSRA_ADEN != 0 {
		r.p.start()
	}
	if next&adc.ADCSRA_ADEN == 0 && r.p.busy {
		// Disabling the converter aborts a running conversion.
		r.p.busy = false
		r.value &^= adc.ADCSRA_ADSC
	}
}

// dataReg is ADCL or ADCH, read-only to software.
type dataReg struct {
	p     *Peripheral
	high  bool
	value uint8
}

func (r *dataReg) Get() uint8 {
	if r.high {
		r.p.reads = append(r.p.reads, "ADCH")
		r.p.locked = false
	} else {
		r.p.reads = append(r.p.reads, "ADCL")
		r.p.locked = true
	}
	return r.value
}

func (r *dataReg) Set(uint8) {}
