package protocol

// CommandHandler runs one decoded command. It decodes its own arguments
// from data, advancing it.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU side of the protocol: it validates incoming frames,
// acknowledges them and dispatches their commands. It is driven from a
// single main loop and is not safe for concurrent use.
type Transport struct {
	synchronized bool
	nextSequence uint8

	output  OutputBuffer
	handler CommandHandler

	resetCallback func()
	flushCallback func()
	errorCallback func(error)
}

// NewTransport returns a synchronized transport expecting sequence 0x10.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synchronized: true,
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive consumes complete frames from input. A partial frame is left in
// input for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.synchronized {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			t.synchronized = true
			t.encodeAckNak()
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			t.synchronized = false
			continue
		}
		if len(data) < msgLen {
			break
		}
		if !validFrame(data[:msgLen]) {
			t.synchronized = false
			continue
		}

		frame := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		// The host restarts at 0x10 after a reset.
		if seq == MessageDest && t.nextSequence != MessageDest {
			t.nextSequence = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}
		if seq == t.nextSequence {
			t.nextSequence = nextSeq(seq)
			t.parseFrame(frame)
		}
		// Sent for every frame; with a stale sequence it acts as a NAK.
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) parseFrame(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.synchronized = false
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.synchronized = false
			t.reportError(err)
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			// Remaining arguments can't be located; drop the rest of the frame.
			t.reportError(err)
			return
		}
	}
}

func (t *Transport) reportError(err error) {
	if t.errorCallback != nil {
		t.errorCallback(err)
	}
}

func (t *Transport) encodeAckNak() {
	if !t.reserve() {
		t.reportError(ErrOutputFull)
		return
	}
	start := t.output.CurPosition()
	t.output.Output([]byte{MessageLengthMin, t.nextSequence})
	appendTrailer(t.output, CRC16(t.output.DataSince(start)))
	t.flush()
}

// reserve makes room for one maximum-length frame, flushing if needed.
func (t *Transport) reserve() bool {
	if t.output.Free() >= MessageLengthMax {
		return true
	}
	t.flush()
	return t.output.Free() >= MessageLengthMax
}

func (t *Transport) flush() {
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData.
// Responses carry the current sequence; it is not advanced. A frame longer
// than MessageLengthMax is discarded and ErrMessageTooLong is returned; if
// the output has no room even after a flush, ErrOutputFull. Both are also
// passed to the error callback.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) error {
	if !t.reserve() {
		t.reportError(ErrOutputFull)
		return ErrOutputFull
	}
	start := t.output.CurPosition()
	t.output.Output([]byte{0, t.nextSequence})
	frameData(t.output)
	msgLen := len(t.output.DataSince(start)) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		t.output.Rewind(start)
		t.reportError(ErrMessageTooLong)
		return ErrMessageTooLong
	}
	t.output.Update(start, uint8(msgLen))
	appendTrailer(t.output, CRC16(t.output.DataSince(start)))
	return nil
}

// SendCommand encodes cmdID followed by args as one frame.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.synchronized = true
	t.nextSequence = MessageDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback is called when the host restarts its sequence.
func (t *Transport) SetResetCallback(cb func()) {
	t.resetCallback = cb
}

// SetFlushCallback drains the output. It is called after each ACK and
// whenever the output cannot hold another full frame, so a frame carrying
// many commands never overruns a fixed buffer.
func (t *Transport) SetFlushCallback(cb func()) {
	t.flushCallback = cb
}

// SetErrorCallback receives command decode and handler errors.
func (t *Transport) SetErrorCallback(cb func(error)) {
	t.errorCallback = cb
}

// NextSequence returns the sequence expected from the host.
func (t *Transport) NextSequence() uint8 {
	return t.nextSequence
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

// validFrame checks the trailer sync byte and CRC of a complete frame.
func validFrame(msg []byte) bool {
	n := len(msg)
	if msg[n-MessageTrailerSync] != MessageValueSync {
		return false
	}
	crc := uint16(msg[n-MessageTrailerCRC])<<8 | uint16(msg[n-MessageTrailerCRC+1])
	return crc == CRC16(msg[:n-MessageTrailerSize])
}
