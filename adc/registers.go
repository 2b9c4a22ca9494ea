package adc

// Register is an 8-bit memory-mapped register.
// TinyGo's *volatile.Register8 satisfies it, as does adcsim.Reg8.
type Register interface {
	Get() uint8
	Set(value uint8)
}

// Registers is the register file of the ADC peripheral.
// Every operation on ADC reads and writes these live; nothing is cached.
type Registers struct {
	ADMUX  Register // reference select, ADLAR, channel mux
	ADCSRA Register // control/status A
	ADCSRB Register // control/status B (trigger source)
	DIDR0  Register // digital input disable
	ADCL   Register // result low byte
	ADCH   Register // result high byte
}

// ADMUX bits
const (
	ADMUX_REFS_Pos = 6
	ADMUX_REFS_Msk = 0b11 << ADMUX_REFS_Pos
	ADMUX_ADLAR    = 1 << 5
	ADMUX_MUX_Msk  = 0b00001111
)

// ADCSRA bits
const (
	ADCSRA_ADEN     = 1 << 7
	ADCSRA_ADSC     = 1 << 6
	ADCSRA_ADATE    = 1 << 5
	ADCSRA_ADIF     = 1 << 4
	ADCSRA_ADIE     = 1 << 3
	ADCSRA_ADPS_Msk = 0b00000111
)

// ADCSRB bits
const (
	ADCSRB_ADTS_Msk = 0b00000111
)

// DIDR0 covers ADC0D..ADC5D.
const (
	DIDR0_Msk = 0b00111111
)

func setBits(r Register, mask uint8) {
	r.Set(r.Get() | mask)
}

func clearBits(r Register, mask uint8) {
	r.Set(r.Get() &^ mask)
}

func hasBits(r Register, mask uint8) bool {
	return r.Get()&mask != 0
}

// replaceBits clears mask and ORs in value&mask.
func replaceBits(r Register, value, mask uint8) {
	r.Set(r.Get()&^mask | value&mask)
}

func setOrClear(r Register, mask uint8, on bool) {
	if on {
		setBits(r, mask)
	} else {
		clearBits(r, mask)
	}
}
