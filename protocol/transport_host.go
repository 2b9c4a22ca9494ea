package protocol

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Message is a validated frame received from the MCU.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte
}

// ResponseHandler is called from the read loop for every response frame.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host side of the protocol: it frames commands,
// waits for their ACK and queues responses.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq     uint32 // atomic
	isSynchronized uint32 // atomic bool

	input  *FifoBuffer
	output bytes.Buffer

	ackChan      chan *Message
	responseChan chan *Message

	responseHandler ResponseHandler

	writeMu sync.Mutex
	readMu  sync.Mutex

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewHostTransport starts reading from port in the background.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		input:        NewFifoBuffer(512),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	atomic.StoreUint32(&t.isSynchronized, 1)
	go t.readLoop()
	return t
}

// SendCommand sends cmdID with args and waits up to two seconds for the ACK.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	msg, err := t.buildCommandMessage(cmdID, args)
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}
	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return t.waitForAck(timeout)
}

// buildCommandMessage must be called with writeMu held.
func (t *HostTransport) buildCommandMessage(cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()

	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, msgLen, MessageLengthMax)
	}

	t.output.Reset()
	t.output.WriteByte(uint8(msgLen))
	t.output.WriteByte(uint8(atomic.LoadUint32(&t.currentSeq)))
	t.output.Write(payload)
	crc := CRC16(t.output.Bytes())
	t.output.Write([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})

	msg := make([]byte, t.output.Len())
	copy(msg, t.output.Bytes())
	return msg, nil
}

func (t *HostTransport) waitForAck(timeout time.Duration) error {
	expected := uint8(atomic.LoadUint32(&t.currentSeq))
	want := nextSeq(expected)
	deadline := time.After(timeout)
	for {
		select {
		case ack := <-t.ackChan:
			// The MCU acknowledges with the sequence it expects next.
			if ack.Sequence != want {
				return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
			}
			atomic.StoreUint32(&t.currentSeq, uint32(want))
			return nil
		case <-deadline:
			return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
		case <-t.stopChan:
			return ErrTransportStopped
		}
	}
}

// ReceiveResponse returns the next queued response.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)
	case <-t.stopChan:
		return nil, ErrTransportStopped
	}
}

// SetResponseHandler installs a callback run for each response before it is
// queued.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.readMu.Lock()
	t.responseHandler = handler
	t.readMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.readMu.Lock()
			t.input.Write(buf[:n])
			t.processMessages()
			t.readMu.Unlock()
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// processMessages must be called with readMu held.
func (t *HostTransport) processMessages() {
	data := t.input.Data()

	for len(data) > 0 {
		if atomic.LoadUint32(&t.isSynchronized) == 0 {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			atomic.StoreUint32(&t.isSynchronized, 1)
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
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			atomic.StoreUint32(&t.isSynchronized, 0)
			continue
		}
		if len(data) < msgLen {
			break
		}
		if !validFrame(data[:msgLen]) {
			atomic.StoreUint32(&t.isSynchronized, 0)
			continue
		}

		payload := make([]byte, msgLen-MessageLengthMin)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		msg := &Message{
			Length:   data[MessagePositionLen],
			Sequence: data[MessagePositionSeq],
			Payload:  payload,
		}
		data = data[msgLen:]
		t.dispatchMessage(msg)
	}

	if consumed := t.input.Available() - len(data); consumed > 0 {
		t.input.Pop(consumed)
	}
}

func (t *HostTransport) dispatchMessage(msg *Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
			// Keep only the newest ACK.
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- msg
		}
		return
	}

	if t.responseHandler != nil {
		p := msg.Payload
		if cmdID, err := DecodeVLQUint(&p); err == nil {
			_ = t.responseHandler(uint16(cmdID), &p)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// Full: drop the oldest.
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port.
func (t *HostTransport) Close() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	err := t.port.Close()
	<-t.doneChan
	return err
}

// Reset clears sequence state and drops anything queued.
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
	t.readMu.Lock()
	t.input.Reset()
	t.readMu.Unlock()
}

// CurrentSequence returns the sequence of the next command.
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
