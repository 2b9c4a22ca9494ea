// Package adc drives the ATmega328P analog-to-digital converter through its
// control registers.
package adc

import "context"

// ADC is a handle on one converter's register file.
// It holds no configuration of its own; every call touches the live
// registers. It is not safe for concurrent use, and an interrupt handler
// touching the same registers must be excluded by the caller.
type ADC struct {
	regs *Registers
	wait Waiter
}

// Option configures an ADC.
type Option func(*ADC)

// WithWaiter sets the strategy used to wait for a conversion. The default is
// Spin.
func WithWaiter(w Waiter) Option {
	return func(a *ADC) {
		a.wait = w
	}
}

// New returns an ADC operating on regs.
func New(regs *Registers, opts ...Option) *ADC {
	a := &ADC{regs: regs, wait: Spin{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registers returns the register file the ADC operates on.
func (a *ADC) Registers() *Registers {
	return a.regs
}

// Init applies the reference, alignment, prescaler and channel, then enables
// the converter.
func (a *ADC) Init(ref ReferenceVoltage, align Alignment, p Prescale, ch Channel) {
	a.SetReferenceVoltage(ref)
	a.SetBitAlignment(align)
	a.SetPrescale(p)
	a.SetChannel(ch)
	a.Enable(true)
}

// ADMUX

// SetReferenceVoltage writes the reference selection into REFS1:0.
func (a *ADC) SetReferenceVoltage(v ReferenceVoltage) {
	replaceBits(a.regs.ADMUX, v.Code()<<ADMUX_REFS_Pos, ADMUX_REFS_Msk)
}

// ReferenceVoltage returns the reference selected in ADMUX.
func (a *ADC) ReferenceVoltage() ReferenceVoltage {
	return ReferenceFromADMUX(a.regs.ADMUX.Get())
}

// SetBitAlignment sets ADLAR for Left and clears it for Right.
func (a *ADC) SetBitAlignment(align Alignment) {
	setOrClear(a.regs.ADMUX, ADMUX_ADLAR, align == Left)
}

// BitAlignment returns the alignment selected by ADLAR.
func (a *ADC) BitAlignment() Alignment {
	return AlignmentFromADMUX(a.regs.ADMUX.Get())
}

// SetChannel writes the channel ordinal into MUX3:0.
func (a *ADC) SetChannel(ch Channel) {
	replaceBits(a.regs.ADMUX, ch.Code(), ADMUX_MUX_Msk)
}

// Channel returns the raw multiplexer selection. Codes without a named
// Channel (e.g. reserved mux settings) come back unchanged.
func (a *ADC) Channel() Channel {
	return Channel(a.regs.ADMUX.Get() & ADMUX_MUX_Msk)
}

// ADCSRA

// Enable sets or clears ADEN. Clearing it aborts a conversion in progress.
func (a *ADC) Enable(on bool) {
	setOrClear(a.regs.ADCSRA, ADCSRA_ADEN, on)
}

// Enabled reports whether ADEN is set.
func (a *ADC) Enabled() bool {
	return hasBits(a.regs.ADCSRA, ADCSRA_ADEN)
}

// StartConversion sets ADSC. The hardware clears it once the conversion is
// under way.
func (a *ADC) StartConversion() {
	setBits(a.regs.ADCSRA, ADCSRA_ADSC)
}

// EnableAutoTrigger sets or clears ADATE. When set, the source chosen with
// SetAutoTriggerSource starts conversions.
func (a *ADC) EnableAutoTrigger(on bool) {
	setOrClear(a.regs.ADCSRA, ADCSRA_ADATE, on)
}

// AutoTriggerEnabled reports whether ADATE is set.
func (a *ADC) AutoTriggerEnabled() bool {
	return hasBits(a.regs.ADCSRA, ADCSRA_ADATE)
}

// IsConversionComplete reports whether ADIF is set, clearing it if so.
// The flag is consumed: a second call for the same conversion returns false.
func (a *ADC) IsConversionComplete() bool {
	if !hasBits(a.regs.ADCSRA, ADCSRA_ADIF) {
		return false
	}
	// ADIF is write-one-to-clear.
	setBits(a.regs.ADCSRA, ADCSRA_ADIF)
	return true
}

// EnableInterrupt sets or clears ADIE. The interrupt handler itself is not
// installed here.
func (a *ADC) EnableInterrupt(on bool) {
	setOrClear(a.regs.ADCSRA, ADCSRA_ADIE, on)
}

// InterruptEnabled reports whether ADIE is set.
func (a *ADC) InterruptEnabled() bool {
	return hasBits(a.regs.ADCSRA, ADCSRA_ADIE)
}

// SetPrescale writes the clock divider code into ADPS2:0.
func (a *ADC) SetPrescale(p Prescale) {
	replaceBits(a.regs.ADCSRA, p.Code(), ADCSRA_ADPS_Msk)
}

// Prescale returns the divider selected in ADPS2:0.
func (a *ADC) Prescale() Prescale {
	return Prescale(a.regs.ADCSRA.Get() & ADCSRA_ADPS_Msk)
}

// Reading

// Read performs one conversion on the selected channel and blocks until it
// completes. Left-aligned reads return the 8 most significant bits (ADCH);
// right-aligned reads return the full 10-bit value.
//
// With the default Spin waiter this never returns if the completion flag is
// never raised (converter disabled, for instance). A failed wait from another
// Waiter yields 0; use ReadContext to see the error.
func (a *ADC) Read() uint16 {
	v, _ := a.ReadContext(context.Background())
	return v
}

// ReadContext is Read with the wait error reported.
func (a *ADC) ReadContext(ctx context.Context) (uint16, error) {
	left := hasBits(a.regs.ADMUX, ADMUX_ADLAR)
	a.StartConversion()
	if err := a.wait.Wait(ctx, a.IsConversionComplete); err != nil {
		return 0, err
	}
	if left {
		return uint16(a.regs.ADCH.Get()), nil
	}
	// ADCL first: reading it locks the pair until ADCH is read.
	low := a.regs.ADCL.Get()
	high := a.regs.ADCH.Get()
	return uint16(high)<<8 | uint16(low), nil
}

// ADCSRB

// SetAutoTriggerSource writes the trigger code into ADTS2:0. It has no
// effect until auto triggering is enabled.
func (a *ADC) SetAutoTriggerSource(s TriggerSource) {
	replaceBits(a.regs.ADCSRB, s.Code(), ADCSRB_ADTS_Msk)
}

// AutoTriggerSource returns the trigger selected in ADTS2:0.
func (a *ADC) AutoTriggerSource() TriggerSource {
	return TriggerSource(a.regs.ADCSRB.Get() & ADCSRB_ADTS_Msk)
}

// DIDR0

// DisableDigitalInput sets (disable) or clears the DIDR0 bit of ch.
// Channels without a digital input buffer are ignored.
func (a *ADC) DisableDigitalInput(ch Channel, disable bool) {
	if !ch.IsAnalogPin() {
		return
	}
	setOrClear(a.regs.DIDR0, 1<<uint8(ch), disable)
}

// DigitalInputDisabled reports whether the DIDR0 bit of ch is set. It is
// always false for channels without a digital input buffer.
func (a *ADC) DigitalInputDisabled(ch Channel) bool {
	if !ch.IsAnalogPin() {
		return false
	}
	return hasBits(a.regs.DIDR0, 1<<uint8(ch))
}

// State is a copy of the control registers.
type State struct {
	ADMUX  uint8
	ADCSRA uint8
	ADCSRB uint8
	DIDR0  uint8
}

// Snapshot reads the four control registers.
func (a *ADC) Snapshot() State {
	return State{
		ADMUX:  a.regs.ADMUX.Get(),
		ADCSRA: a.regs.ADCSRA.Get(),
		ADCSRB: a.regs.ADCSRB.Get(),
		DIDR0:  a.regs.DIDR0.Get(),
	}
}
