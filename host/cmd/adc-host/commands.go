package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"avradc/adc"
	"avradc/host/mcu"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	help  string
	run   func(m *mcu.MCU, args []string, out io.Writer) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"init": {"init <ref> <align> <prescale> <channel>", "configure and enable the converter", cmdInit},
		"ref": {"ref <INTERNAL|AREF|AVCC>", "select the reference voltage", func(m *mcu.MCU, args []string, _ io.Writer) error {
			return withArg(args, adc.ParseReferenceVoltage, m.SetReference)
		}},
		"align": {"align <LEFT|RIGHT>", "select result alignment", func(m *mcu.MCU, args []string, _ io.Writer) error {
			return withArg(args, adc.ParseAlignment, m.SetAlignment)
		}},
		"channel": {"channel <ADC0..ADC7|TEMPERATURE|FIXED_VOLTAGE|GND>", "select the input", func(m *mcu.MCU, args []string, _ io.Writer) error {
			return withArg(args, adc.ParseChannel, m.SetChannel)
		}},
		"prescale": {"prescale <2..128>", "select the clock divisor", func(m *mcu.MCU, args []string, _ io.Writer) error {
			return withArg(args, adc.ParsePrescale, m.SetPrescale)
		}},
		"enable":  {"enable <on|off>", "power the converter on or off", cmdEnable},
		"trigger": {"trigger <on|off> [source]", "auto-trigger from a source", cmdTrigger},
		"irq":     {"irq <on|off>", "conversion complete interrupt", cmdIRQ},
		"didr":    {"didr <ADC0..ADC5> <on|off>", "disable a pin's digital input buffer", cmdDIDR},
		"read":    {"read [count] [ref_mV]", "convert the selected channel", cmdRead},
		"state":   {"state", "show the control registers", cmdState},
		"dict":    {"dict", "print the dictionary summary", cmdDict},
		"help":    {"help", "show this help message", cmdHelp},
	}
}

// runCommand dispatches one split input line.
func runCommand(m *mcu.MCU, args []string, out io.Writer) error {
	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
	err := cmd.run(m, args[1:], out)
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return err
}

// withArg parses the single argument and applies it.
func withArg[T any](args []string, parse func(string) (T, error), apply func(T) error) error {
	if len(args) != 1 {
		return errUsage
	}
	v, err := parse(args[0])
	if err != nil {
		return err
	}
	return apply(v)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func cmdInit(m *mcu.MCU, args []string, _ io.Writer) error {
	if len(args) != 4 {
		return errUsage
	}
	ref, err := adc.ParseReferenceVoltage(args[0])
	if err != nil {
		return err
	}
	align, err := adc.ParseAlignment(args[1])
	if err != nil {
		return err
	}
	p, err := adc.ParsePrescale(args[2])
	if err != nil {
		return err
	}
	ch, err := adc.ParseChannel(args[3])
	if err != nil {
		return err
	}
	return m.ConfigureADC(ref, align, p, ch)
}

func cmdEnable(m *mcu.MCU, args []string, _ io.Writer) error {
	return withArg(args, parseOnOff, m.Enable)
}

func cmdIRQ(m *mcu.MCU, args []string, _ io.Writer) error {
	return withArg(args, parseOnOff, m.EnableInterrupt)
}

func cmdTrigger(m *mcu.MCU, args []string, _ io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	src := adc.FreeRunning
	if len(args) == 2 {
		if src, err = adc.ParseTriggerSource(args[1]); err != nil {
			return err
		}
	}
	return m.SetTrigger(on, src)
}

func cmdDIDR(m *mcu.MCU, args []string, _ io.Writer) error {
	if len(args) != 2 {
		return errUsage
	}
	ch, err := adc.ParseChannel(args[0])
	if err != nil {
		return err
	}
	if !ch.IsAnalogPin() {
		return fmt.Errorf("%s has no digital input buffer", ch)
	}
	disable, err := parseOnOff(args[1])
	if err != nil {
		return err
	}
	return m.DisableDigitalInput(ch, disable)
}

func cmdRead(m *mcu.MCU, args []string, out io.Writer) error {
	if len(args) > 2 {
		return errUsage
	}
	count, refMilliV := 1, 0
	if len(args) >= 1 {
		if _, err := fmt.Sscan(args[0], &count); err != nil || count < 1 {
			return errUsage
		}
	}
	if len(args) == 2 {
		if _, err := fmt.Sscan(args[1], &refMilliV); err != nil || refMilliV <= 0 {
			return errUsage
		}
	}

	for i := 0; i < count; i++ {
		r, err := m.ReadADC()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d (%d-bit)", r.Channel, r.Value, r.Bits())
		if refMilliV > 0 {
			uv := r.Microvolts(uint32(refMilliV))
			fmt.Fprintf(out, " = %d.%03d mV", uv/1000, uv%1000)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func cmdState(m *mcu.MCU, args []string, out io.Writer) error {
	if len(args) != 0 {
		return errUsage
	}
	s, err := m.QueryADC()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ADMUX  = %08b (ref %s, channel %s, %s)\n", s.ADMUX,
		adc.ReferenceFromADMUX(s.ADMUX), adc.Channel(s.ADMUX&adc.ADMUX_MUX_Msk), adc.AlignmentFromADMUX(s.ADMUX))
	fmt.Fprintf(out, "ADCSRA = %08b (prescale %s)\n", s.ADCSRA, adc.Prescale(s.ADCSRA&adc.ADCSRA_ADPS_Msk))
	fmt.Fprintf(out, "ADCSRB = %08b (trigger %s)\n", s.ADCSRB, adc.TriggerSource(s.ADCSRB&adc.ADCSRB_ADTS_Msk))
	fmt.Fprintf(out, "DIDR0  = %08b\n", s.DIDR0)
	return nil
}

func cmdDict(m *mcu.MCU, _ []string, out io.Writer) error {
	m.WriteDictionary(out)
	return nil
}

func cmdHelp(_ *mcu.MCU, _ []string, out io.Writer) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nAvailable commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(out, "  %-48s - %s\n", c.usage, c.help)
	}
	fmt.Fprintf(out, "  %-48s - %s\n\n", "quit/exit/q", "exit the program")
	return nil
}
