package adc

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrUnknownReference = errors.New("unknown reference voltage")
	ErrUnknownAlignment = errors.New("unknown alignment")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrUnknownPrescale  = errors.New("unknown prescale")
	ErrUnknownTrigger   = errors.New("unknown trigger source")
)

// ReferenceVoltage selects the conversion reference (REFS1:0).
type ReferenceVoltage uint8

const (
	Internal ReferenceVoltage = iota // internal 1.1V bandgap
	AREF                             // external AREF pin
	AVCC                             // AVCC with capacitor on AREF
)

// Code returns the two-bit REFS field value.
func (v ReferenceVoltage) Code() uint8 {
	switch v {
	case Internal:
		return 0b11
	case AVCC:
		return 0b01
	default:
		return 0b00
	}
}

func (v ReferenceVoltage) String() string {
	switch v {
	case Internal:
		return "INTERNAL"
	case AREF:
		return "AREF"
	case AVCC:
		return "AVCC"
	}
	return "ReferenceVoltage(" + strconv.Itoa(int(v)) + ")"
}

// ReferenceFromADMUX decodes the REFS field of an ADMUX value. 0b10 is
// reserved on the ATmega328P and reported as AREF.
func ReferenceFromADMUX(admux uint8) ReferenceVoltage {
	switch (admux & ADMUX_REFS_Msk) >> ADMUX_REFS_Pos {
	case 0b11:
		return Internal
	case 0b01:
		return AVCC
	default:
		return AREF
	}
}

// Alignment selects how the 10-bit result is packed into ADCH:ADCL.
type Alignment uint8

const (
	Left Alignment = iota
	Right
)

// AlignmentFromADMUX decodes the ADLAR bit of an ADMUX value.
func AlignmentFromADMUX(admux uint8) Alignment {
	if admux&ADMUX_ADLAR != 0 {
		return Left
	}
	return Right
}

func (a Alignment) String() string {
	switch a {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	}
	return "Alignment(" + strconv.Itoa(int(a)) + ")"
}

// Channel is an input of the analog multiplexer.
type Channel uint8

const (
	ADC0 Channel = iota
	ADC1
	ADC2
	ADC3
	ADC4
	ADC5
	ADC6
	ADC7
	Temperature
	FixedVoltage
	GND

	channelCount = int(GND) + 1
)

var channelNames = [channelCount]string{
	"ADC0", "ADC1", "ADC2", "ADC3", "ADC4", "ADC5", "ADC6", "ADC7",
	"TEMPERATURE", "FIXED_VOLTAGE", "GND",
}

// Code returns the value written to MUX3:0. The multiplexer field receives
// the channel ordinal.
func (c Channel) Code() uint8 {
	return uint8(c) & ADMUX_MUX_Msk
}

// IsAnalogPin reports whether c has a digital input buffer in DIDR0
// (ADC0 through ADC5).
func (c Channel) IsAnalogPin() bool {
	return c <= ADC5
}

// Valid reports whether c is one of the defined channels.
func (c Channel) Valid() bool {
	return int(c) < channelCount
}

func (c Channel) String() string {
	if c.Valid() {
		return channelNames[c]
	}
	return "Channel(" + strconv.Itoa(int(c)) + ")"
}

// Prescale is the ADC clock divider. Values are the ADPS2:0 codes.
type Prescale uint8

const (
	P2 Prescale = iota + 1
	P4
	P8
	P16
	P32
	P64
	P128
)

// Code returns the ADPS2:0 value.
func (p Prescale) Code() uint8 {
	return uint8(p) & ADCSRA_ADPS_Msk
}

// Divisor returns the system clock division factor, or 0 for an undefined
// prescale.
func (p Prescale) Divisor() int {
	if p < P2 || p > P128 {
		return 0
	}
	return 1 << uint(p)
}

func (p Prescale) String() string {
	if d := p.Divisor(); d != 0 {
		return "P" + strconv.Itoa(d)
	}
	return "Prescale(" + strconv.Itoa(int(p)) + ")"
}

// TriggerSource selects the auto-trigger event (ADTS2:0).
type TriggerSource uint8

const (
	FreeRunning TriggerSource = iota
	AnalogComparator
	ExternalInterrupt0
	Timer0CompareA
	Timer0Overflow
	Timer1CompareB
	Timer1Overflow
	Timer1Capture

	triggerCount = int(Timer1Capture) + 1
)

var triggerNames = [triggerCount]string{
	"FREE_RUNNING", "ANALOG_COMPARATOR", "EXTERNAL_INTERRUPT0",
	"TIMER0_COMP_A", "TIMER0_OVERFLOW", "TIMER1_COMP_B",
	"TIMER1_OVERFLOW", "TIMER1_CAPTURE",
}

// Code returns the ADTS2:0 value.
func (s TriggerSource) Code() uint8 {
	return uint8(s) & ADCSRB_ADTS_Msk
}

func (s TriggerSource) String() string {
	if int(s) < triggerCount {
		return triggerNames[s]
	}
	return "TriggerSource(" + strconv.Itoa(int(s)) + ")"
}

// ParseReferenceVoltage parses INTERNAL, AREF or AVCC (any case).
func ParseReferenceVoltage(s string) (ReferenceVoltage, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INTERNAL", "INTERNAL_VOLTAGE":
		return Internal, nil
	case "AREF":
		return AREF, nil
	case "AVCC":
		return AVCC, nil
	}
	return 0, unknown(ErrUnknownReference, s)
}

// ParseAlignment parses LEFT or RIGHT (any case).
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT":
		return Left, nil
	case "RIGHT":
		return Right, nil
	}
	return 0, unknown(ErrUnknownAlignment, s)
}

// ParseChannel parses a channel name such as "adc3" or "temperature".
func ParseChannel(s string) (Channel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, unknown(ErrUnknownChannel, s)
}

// ParsePrescale accepts "P8", "8" or "p_8".
func ParsePrescale(s string) (Prescale, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "P")
	name = strings.TrimPrefix(name, "_")
	d, err := strconv.Atoi(name)
	if err == nil {
		for p := P2; p <= P128; p++ {
			if p.Divisor() == d {
				return p, nil
			}
		}
	}
	return 0, unknown(ErrUnknownPrescale, s)
}

// ParseTriggerSource parses a trigger name such as "free_running".
func ParseTriggerSource(s string) (TriggerSource, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range triggerNames {
		if n == name {
			return TriggerSource(i), nil
		}
	}
	return 0, unknown(ErrUnknownTrigger, s)
}

func unknown(err error, input string) error {
	return &parseError{err: err, input: input}
}

type parseError struct {
	err   error
	input string
}

func (e *parseError) Error() string {
	return e.err.Error() + ": " + strconv.Quote(e.input)
}

func (e *parseError) Unwrap() error {
	return e.err
}

// Text forms for configuration files.

func (v ReferenceVoltage) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
func (a Alignment) MarshalText() ([]byte, error)        { return []byte(a.String()), nil }
func (c Channel) MarshalText() ([]byte, error)          { return []byte(c.String()), nil }
func (p Prescale) MarshalText() ([]byte, error)         { return []byte(p.String()), nil }
func (s TriggerSource) MarshalText() ([]byte, error)    { return []byte(s.String()), nil }

func (v *ReferenceVoltage) UnmarshalText(b []byte) (err error) {
	*v, err = ParseReferenceVoltage(string(b))
	return err
}

func (a *Alignment) UnmarshalText(b []byte) (err error) {
	*a, err = ParseAlignment(string(b))
	return err
}

func (c *Channel) UnmarshalText(b []byte) (err error) {
	*c, err = ParseChannel(string(b))
	return err
}

func (p *Prescale) UnmarshalText(b []byte) (err error) {
	*p, err = ParsePrescale(string(b))
	return err
}

func (s *TriggerSource) UnmarshalText(b []byte) (err error) {
	*s, err = ParseTriggerSource(string(b))
	return err
}
