// ADC commands: expose the register interface of package adc over the
// protocol.
package core

import (
	"context"
	"errors"

	"golang.org/x/exp/constraints"

	"avradc/adc"
	"avradc/protocol"
)

// ErrInvalidArgument rejects enumeration values outside their range. The
// driver trusts its callers; the wire does not get that trust.
var ErrInvalidArgument = errors.New("invalid argument")

// Global driver used by the ADC commands.
var adcDriver *adc.ADC

// SetADC registers the converter the commands operate on.
func SetADC(a *adc.ADC) {
	adcDriver = a
}

// MustADC returns the configured converter or panics if missing.
func MustADC() *adc.ADC {
	if adcDriver == nil {
		panic("ADC not configured")
	}
	return adcDriver
}

// enumNames lists String() of every value from 0 to last. Values below
// first are left empty so list index equals wire value.
func enumNames[T interface {
	constraints.Unsigned
	String() string
}](first, last T) []string {
	names := make([]string, int(last)+1)
	for v := first; v <= last; v++ {
		names[v] = v.String()
	}
	return names
}

// InitADCCommands registers the ADC commands, their responses and the
// enumerations the host needs to encode arguments.
func InitADCCommands() {
	RegisterCommand("config_adc", "ref=%c align=%c prescale=%c channel=%c", handleConfigADC)
	RegisterCommand("adc_set_reference", "ref=%c", handleSetReference)
	RegisterCommand("adc_set_alignment", "align=%c", handleSetAlignment)
	RegisterCommand("adc_set_channel", "channel=%c", handleSetChannel)
	RegisterCommand("adc_set_prescale", "prescale=%c", handleSetPrescale)
	RegisterCommand("adc_enable", "enable=%c", handleEnable)
	RegisterCommand("adc_auto_trigger", "enable=%c source=%c", handleAutoTrigger)
	RegisterCommand("adc_enable_interrupt", "enable=%c", handleEnableInterrupt)
	RegisterCommand("adc_digital_input", "channel=%c disable=%c", handleDigitalInput)
	RegisterCommand("adc_start", "", handleStart)
	RegisterCommand("adc_poll", "", handlePoll)
	RegisterCommand("adc_read", "", handleRead)
	RegisterCommand("adc_query", "", handleQuery)

	RegisterResponse("adc_result", "channel=%c align=%c value=%hu")
	RegisterResponse("adc_timeout", "channel=%c")
	RegisterResponse("adc_complete", "done=%c")
	RegisterResponse("adc_state", "mux=%c ctrl_a=%c ctrl_b=%c didr=%c")

	RegisterEnumeration("adc_reference", enumNames(adc.Internal, adc.AVCC))
	RegisterEnumeration("adc_alignment", enumNames(adc.Left, adc.Right))
	RegisterEnumeration("adc_channel", enumNames(adc.ADC0, adc.GND))
	RegisterEnumeration("adc_prescale", enumNames(adc.P2, adc.P128))
	RegisterEnumeration("adc_trigger", enumNames(adc.FreeRunning, adc.Timer1Capture))

	RegisterConstant("ADC_MAX", "1023")
}

// decodeEnum reads one argument and checks it against [lo, hi].
func decodeEnum[T constraints.Unsigned](data *[]byte, lo, hi T) (T, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, err
	}
	if v < uint32(lo) || v > uint32(hi) {
		DebugPrintln("[adc] argument out of range: " + itoa(int(v)))
		return 0, ErrInvalidArgument
	}
	return T(v), nil
}

func decodeReference(data *[]byte) (adc.ReferenceVoltage, error) {
	return decodeEnum(data, adc.Internal, adc.AVCC)
}

func decodeAlignment(data *[]byte) (adc.Alignment, error) {
	return decodeEnum(data, adc.Left, adc.Right)
}

func decodeChannel(data *[]byte) (adc.Channel, error) {
	return decodeEnum(data, adc.ADC0, adc.GND)
}

func decodePrescale(data *[]byte) (adc.Prescale, error) {
	return decodeEnum(data, adc.P2, adc.P128)
}

func decodeTrigger(data *[]byte) (adc.TriggerSource, error) {
	return decodeEnum(data, adc.FreeRunning, adc.Timer1Capture)
}

func decodeBool(data *[]byte) (bool, error) {
	v, err := decodeEnum(data, uint8(0), uint8(1))
	return v == 1, err
}

func handleConfigADC(data *[]byte) error {
	ref, err := decodeReference(data)
	if err != nil {
		return err
	}
	align, err := decodeAlignment(data)
	if err != nil {
		return err
	}
	p, err := decodePrescale(data)
	if err != nil {
		return err
	}
	ch, err := decodeChannel(data)
	if err != nil {
		return err
	}

	MustADC().Init(ref, align, p, ch)
	DebugPrintln("[adc] init ref=" + ref.String() + " align=" + align.String() +
		" prescale=" + p.String() + " channel=" + ch.String())
	return nil
}

func handleSetReference(data *[]byte) error {
	ref, err := decodeReference(data)
	if err != nil {
		return err
	}
	MustADC().SetReferenceVoltage(ref)
	return nil
}

func handleSetAlignment(data *[]byte) error {
	align, err := decodeAlignment(data)
	if err != nil {
		return err
	}
	MustADC().SetBitAlignment(align)
	return nil
}

func handleSetChannel(data *[]byte) error {
	ch, err := decodeChannel(data)
	if err != nil {
		return err
	}
	MustADC().SetChannel(ch)
	return nil
}

func handleSetPrescale(data *[]byte) error {
	p, err := decodePrescale(data)
	if err != nil {
		return err
	}
	MustADC().SetPrescale(p)
	return nil
}

func handleEnable(data *[]byte) error {
	on, err := decodeBool(data)
	if err != nil {
		return err
	}
	MustADC().Enable(on)
	return nil
}

// handleAutoTrigger selects the source before enabling so the first event
// comes from the requested trigger.
func handleAutoTrigger(data *[]byte) error {
	on, err := decodeBool(data)
	if err != nil {
		return err
	}
	src, err := decodeTrigger(data)
	if err != nil {
		return err
	}
	a := MustADC()
	a.SetAutoTriggerSource(src)
	a.EnableAutoTrigger(on)
	return nil
}

func handleEnableInterrupt(data *[]byte) error {
	on, err := decodeBool(data)
	if err != nil {
		return err
	}
	MustADC().EnableInterrupt(on)
	return nil
}

// handleDigitalInput accepts any defined channel; the driver ignores those
// without a DIDR0 bit.
func handleDigitalInput(data *[]byte) error {
	ch, err := decodeChannel(data)
	if err != nil {
		return err
	}
	disable, err := decodeBool(data)
	if err != nil {
		return err
	}
	MustADC().DisableDigitalInput(ch, disable)
	return nil
}

func handleStart(data *[]byte) error {
	MustADC().StartConversion()
	return nil
}

func handlePoll(data *[]byte) error {
	done := MustADC().IsConversionComplete()
	SendResponse("adc_complete", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQBool(output, done)
	})
	return nil
}

func handleRead(data *[]byte) error {
	a := MustADC()
	ch := a.Channel()
	align := a.BitAlignment()

	value, err := a.ReadContext(context.Background())
	if errors.Is(err, adc.ErrConversionTimeout) {
		DebugPrintln("[adc] conversion timeout on " + ch.String())
		SendResponse("adc_timeout", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, uint32(ch))
		})
		return nil
	}
	if err != nil {
		return err
	}

	SendResponse("adc_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(ch))
		protocol.EncodeVLQUint(output, uint32(align))
		protocol.EncodeVLQUint(output, uint32(value))
	})
	return nil
}

func handleQuery(data *[]byte) error {
	s := MustADC().Snapshot()
	DebugPrintln("[adc] ADMUX=" + hex8(s.ADMUX) + " ADCSRA=" + hex8(s.ADCSRA) +
		" ADCSRB=" + hex8(s.ADCSRB) + " DIDR0=" + hex8(s.DIDR0))
	SendResponse("adc_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(s.ADMUX))
		protocol.EncodeVLQUint(output, uint32(s.ADCSRA))
		protocol.EncodeVLQUint(output, uint32(s.ADCSRB))
		protocol.EncodeVLQUint(output, uint32(s.DIDR0))
	})
	return nil
}
