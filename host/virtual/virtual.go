// Package virtual runs the firmware command set in-process against a
// simulated converter, behind the same Port interface as a serial device.
//
// The command registry is process-global, so only one Port should be live
// at a time.
package virtual

import (
	"io"
	"sync"

	"avradc/adc"
	"avradc/adc/adcsim"
	"avradc/core"
	"avradc/protocol"
)

// DefaultMaxPolls bounds each conversion wait. A read with the converter
// disabled answers adc_timeout instead of hanging the port.
const DefaultMaxPolls = 1000

// Port is a serial.Port backed by the firmware and an adcsim.Peripheral.
type Port struct {
	mu   sync.Mutex
	cond *sync.Cond

	sim       *adcsim.Peripheral
	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	transport *protocol.Transport

	pending []byte
	closed  bool
}

// New boots a virtual MCU. Writes are processed synchronously; responses
// and ACKs are queued for Read.
func New() *Port {
	p := &Port{
		sim:    adcsim.New(),
		input:  protocol.NewFifoBuffer(256),
		output: protocol.NewScratchOutput(),
	}
	p.cond = sync.NewCond(&p.mu)

	core.RegisterConstant("MCU", "atmega328p-virtual")
	core.RegisterConstant("CLOCK_FREQ", "16000000")
	a := adc.New(p.sim.Registers(), adc.WithWaiter(adc.Bounded{MaxPolls: DefaultMaxPolls}))
	p.transport = core.InitFirmware(a, p.output)
	// Runs inside Receive, which Write calls with mu held.
	p.transport.SetFlushCallback(p.drain)
	p.transport.SetResetCallback(func() {
		p.input.Reset()
		core.ResetFirmwareState()
	})
	return p
}

// Peripheral returns the simulated converter, for setting inputs.
func (p *Port) Peripheral() *adcsim.Peripheral {
	return p.sim
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}

	written := 0
	for written < len(b) {
		n := p.input.Write(b[written:])
		written += n
		p.transport.Receive(p.input)
		p.drain()
		if n == 0 && p.input.Free() == 0 {
			// Unparseable backlog; drop it and let the transport resync.
			p.input.Reset()
		}
	}
	return len(b), nil
}

// drain moves encoded frames to the read queue. Called with mu held.
func (p *Port) drain() {
	if out := p.output.Result(); len(out) > 0 {
		p.pending = append(p.pending, out...)
		p.output.Reset()
		p.cond.Broadcast()
	}
}

// Read blocks until firmware output is available or the port is closed.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Flush drops output not yet read.
func (p *Port) Flush() error {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
	return nil
}
