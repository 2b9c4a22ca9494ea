package adc

import (
	"errors"
	"testing"
)

func TestPrescaleEncoding(t *testing.T) {
	testCases := []struct {
		p       Prescale
		code    uint8
		divisor int
	}{
		{P2, 1, 2},
		{P4, 2, 4},
		{P8, 3, 8},
		{P16, 4, 16},
		{P32, 5, 32},
		{P64, 6, 64},
		{P128, 7, 128},
	}

	for _, tc := range testCases {
		if tc.p.Code() != tc.code {
			t.Errorf("%v: expected code %d, got %d", tc.p, tc.code, tc.p.Code())
		}
		if tc.p.Divisor() != tc.divisor {
			t.Errorf("%v: expected divisor %d, got %d", tc.p, tc.divisor, tc.p.Divisor())
		}
	}

	if Prescale(0).Divisor() != 0 {
		t.Errorf("Expected undefined prescale divisor 0, got %d", Prescale(0).Divisor())
	}
}

func TestDecodeADMUX(t *testing.T) {
	testCases := []struct {
		admux uint8
		ref   ReferenceVoltage
		align Alignment
	}{
		{0b00000000, AREF, Right},
		{0b01000010, AVCC, Right},
		{0b10100000, AREF, Left}, // reserved REFS code
		{0b11101111, Internal, Left},
	}

	for _, tc := range testCases {
		if got := ReferenceFromADMUX(tc.admux); got != tc.ref {
			t.Errorf("%08b: expected reference %v, got %v", tc.admux, tc.ref, got)
		}
		if got := AlignmentFromADMUX(tc.admux); got != tc.align {
			t.Errorf("%08b: expected alignment %v, got %v", tc.admux, tc.align, got)
		}
	}
}

func TestChannelEncoding(t *testing.T) {
	if GND.Code() != 10 {
		t.Errorf("Expected GND code 10, got %d", GND.Code())
	}
	if Temperature.Code() != 8 {
		t.Errorf("Expected Temperature code 8, got %d", Temperature.Code())
	}
	for ch := ADC0; ch <= GND; ch++ {
		want := ch <= ADC5
		if ch.IsAnalogPin() != want {
			t.Errorf("%v: expected IsAnalogPin %v", ch, want)
		}
	}
	if Channel(11).Valid() {
		t.Error("Expected Channel(11) invalid")
	}
}

func TestParse(t *testing.T) {
	if v, err := ParseReferenceVoltage("avcc"); err != nil || v != AVCC {
		t.Errorf("ParseReferenceVoltage(avcc) = %v, %v", v, err)
	}
	if v, err := ParseReferenceVoltage("internal_voltage"); err != nil || v != Internal {
		t.Errorf("ParseReferenceVoltage(internal_voltage) = %v, %v", v, err)
	}
	if a, err := ParseAlignment("Left"); err != nil || a != Left {
		t.Errorf("ParseAlignment(Left) = %v, %v", a, err)
	}
	if c, err := ParseChannel("fixed_voltage"); err != nil || c != FixedVoltage {
		t.Errorf("ParseChannel(fixed_voltage) = %v, %v", c, err)
	}
	if s, err := ParseTriggerSource("timer0_comp_a"); err != nil || s != Timer0CompareA {
		t.Errorf("ParseTriggerSource(timer0_comp_a) = %v, %v", s, err)
	}

	for _, in := range []string{"8", "P8", "p_8"} {
		if p, err := ParsePrescale(in); err != nil || p != P8 {
			t.Errorf("ParsePrescale(%q) = %v, %v", in, p, err)
		}
	}

	errorCases := []struct {
		name string
		err  error
		fn   func() error
	}{
		{"reference", ErrUnknownReference, func() error { _, err := ParseReferenceVoltage("5V"); return err }},
		{"alignment", ErrUnknownAlignment, func() error { _, err := ParseAlignment("center"); return err }},
		{"channel", ErrUnknownChannel, func() error { _, err := ParseChannel("ADC9"); return err }},
		{"prescale", ErrUnknownPrescale, func() error { _, err := ParsePrescale("3"); return err }},
		{"trigger", ErrUnknownTrigger, func() error { _, err := ParseTriggerSource("timer2"); return err }},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if !errors.Is(err, tc.err) {
				t.Errorf("Expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var p Prescale
	if err := p.UnmarshalText([]byte("P64")); err != nil {
		t.Fatal(err)
	}
	b, _ := p.MarshalText()
	if string(b) != "P64" {
		t.Errorf("Expected P64, got %s", b)
	}

	var s TriggerSource
	if err := s.UnmarshalText([]byte(Timer1Capture.String())); err != nil || s != Timer1Capture {
		t.Errorf("Expected Timer1Capture, got %v (%v)", s, err)
	}
}
