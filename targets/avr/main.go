//go:build tinygo && avr

package main

import (
	"machine"

	"avradc/adc"
	"avradc/config"
	"avradc/core"
	"avradc/protocol"
)

// maxPolls bounds a conversion wait. At P128 a conversion takes 1664 CPU
// cycles, far fewer than this many polls of ADCSRA.
const maxPolls = 10000

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	uart         = machine.Serial
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: 250000})

	converter := adc.New(adc.HardwareRegisters(), adc.WithWaiter(adc.Bounded{MaxPolls: maxPolls}))
	if err := config.Default().Apply(converter); err != nil {
		panic(err)
	}

	core.SetDebugWriter(func(s string) {
		// Shares the protocol UART; only for bench debugging.
		uart.Write([]byte(s))
		uart.Write([]byte{'\n'})
	})

	core.RegisterConstant("MCU", "atmega328p")
	core.RegisterConstant("CLOCK_FREQ", "16000000")
	core.RegisterConstant("SERIAL_BAUD", "250000")

	inputBuffer = protocol.NewFifoBuffer(128)
	outputBuffer = protocol.NewScratchOutput()
	transport = core.InitFirmware(converter, outputBuffer)
	transport.SetFlushCallback(flushOutput)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})

	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			if !inputBuffer.PutByte(b) {
				core.DebugPrintln("[uart] rx overflow")
				break
			}
		}

		if inputBuffer.Available() > 0 {
			transport.Receive(inputBuffer)
		}

		flushOutput()
	}
}

func flushOutput() {
	if out := outputBuffer.Result(); len(out) > 0 {
		uart.Write(out)
		outputBuffer.Reset()
	}
}
