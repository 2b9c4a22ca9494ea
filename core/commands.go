package core

import (
	"avradc/protocol"
)

// FirmwareState is the host-visible configuration state.
type FirmwareState struct {
	configCRC uint32
}

var globalState = &FirmwareState{}

// InitCoreCommands registers the protocol bootstrap and configuration
// commands. identify_response and identify must keep IDs 0 and 1: the host
// uses them before it has a dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%.*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("config_reset", "", handleConfigReset)

	RegisterResponse("config", "is_config=%c crc=%u")
}

// identifyChunkMax is the most dictionary data one identify_response frame
// can carry: the payload less the response ID, a worst-case offset and the
// length byte.
const identifyChunkMax = protocol.MessagePayloadMax - 1 - protocol.VLQMaxLen - 1

func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if count > identifyChunkMax {
		count = identifyChunkMax
	}
	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetConfig(data *[]byte) error {
	crc := globalState.configCRC
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQBool(output, crc != 0)
		protocol.EncodeVLQUint(output, crc)
	})
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	globalState.configCRC = crc
	return nil
}

func handleConfigReset(data *[]byte) error {
	globalState.configCRC = 0
	return nil
}

// ResetFirmwareState clears host-visible state after a host reconnect.
func ResetFirmwareState() {
	globalState.configCRC = 0
}

// Global transport for sending responses (set by main).
var globalTransport *protocol.Transport

func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse encodes a registered response on the global transport.
// Responses are registered at init, so an unknown name is a programming
// error and panics.
func SendResponse(name string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	globalTransport.SendCommand(cmd.ID, args)
}
