// Package protocol implements the Klipper-style framed serial protocol used
// between the ADC firmware and the host tool.
package protocol

import "errors"

// Version is the firmware/protocol version reported in the dictionary.
const Version = "avradc-0.1.0"

// Frame layout: len, seq, payload..., crc_hi, crc_lo, sync.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax bounds a ScratchOutput. The transport flushes before a
	// frame that might not fit, so any multiple of MessageLengthMax works.
	MessageMax = 4 * MessageLengthMax

	// VLQMaxLen is the encoded size of the largest uint32.
	VLQMaxLen = 5
)

var (
	ErrInvalidVLQ       = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall   = errors.New("buffer too small for VLQ")
	ErrMessageTooLong   = errors.New("message too long")
	ErrOutputFull       = errors.New("output buffer full")
	ErrAckTimeout       = errors.New("ACK timeout")
	ErrResponseTimeout  = errors.New("response timeout")
	ErrTransportStopped = errors.New("transport stopped")
)

// nextSeq advances a sequence byte within the 0x10-0x1F window.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
