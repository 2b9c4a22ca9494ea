// Package serial opens the link to the ADC firmware.
package serial

import (
	"errors"
	"io"
	"time"
)

// ErrNoDevice is returned by Open when Config.Device is empty.
var ErrNoDevice = errors.New("serial: no device given")

// Port is a byte link to the firmware. Native ports use github.com/tarm/serial;
// tests and the -sim mode use an in-process port.
type Port interface {
	io.ReadWriteCloser

	// Flush discards bytes received but not yet read.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. "/dev/ttyUSB0" or "COM3".
	Device string

	// Baud rate. 250000 divides 16 MHz exactly on the ATmega328P USART.
	Baud int

	// ReadTimeout bounds a single Read. Zero blocks.
	ReadTimeout time.Duration

	// ResetDelay is waited after opening. Boards with auto-reset
	// (Arduino Uno, Nano) sit in the bootloader for about 1.5s when DTR
	// toggles.
	ResetDelay time.Duration
}

// DefaultConfig returns the settings the firmware is built with.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
		ResetDelay:  2 * time.Second,
	}
}
