package core

import (
	"avradc/adc"
	"avradc/protocol"
)

// InitFirmware registers the full command set for a, builds the dictionary
// and returns a transport writing to output. Extra constants must be
// registered before the call.
func InitFirmware(a *adc.ADC, output protocol.OutputBuffer) *protocol.Transport {
	InitCoreCommands()
	InitADCCommands()
	SetADC(a)

	GetGlobalDictionary().BuildDictionary()

	transport := protocol.NewTransport(output, DispatchCommand)
	transport.SetResetCallback(ResetFirmwareState)
	transport.SetErrorCallback(func(err error) {
		DebugPrintln("[cmd] " + err.Error())
	})
	SetGlobalTransport(transport)
	return transport
}
