// Package tinycompress produces zlib streams of stored (uncompressed)
// DEFLATE blocks. Klipper hosts inflate the identify data, and stored
// blocks need no tables or window on the MCU.
package tinycompress

import (
	"errors"
	"hash"
	"hash/adler32"
	"io"
)

const (
	// Overhead per stream: CMF/FLG header and Adler-32 trailer.
	headerSize  = 2
	trailerSize = 4

	// Overhead per stored block: BFINAL/BTYPE byte, LEN and NLEN.
	blockHeaderSize = 5

	// MaxBlock is the largest stored block DEFLATE allows.
	MaxBlock = 0xFFFF
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("tinycompress: write after close")

// zlib CMF/FLG: deflate, 32K window, default level; 0x789C % 31 == 0.
var zlibHeader = []byte{0x78, 0x9C}

// EncodedLen returns the size of Encode's output for n input bytes.
func EncodedLen(n int) int {
	blocks := (n + MaxBlock - 1) / MaxBlock
	if blocks == 0 {
		blocks = 1
	}
	return headerSize + blocks*blockHeaderSize + n + trailerSize
}

// Encode wraps data in a zlib stream.
func Encode(data []byte) []byte {
	sum := adler32.Checksum(data)
	out := make([]byte, 0, EncodedLen(len(data)))
	out = append(out, zlibHeader...)
	for {
		n := len(data)
		final := n <= MaxBlock
		if !final {
			n = MaxBlock
		}
		out = appendBlockHeader(out, n, final)
		out = append(out, data[:n]...)
		data = data[n:]
		if final {
			break
		}
	}
	return appendChecksum(out, sum)
}

func appendBlockHeader(out []byte, n int, final bool) []byte {
	var bfinal byte
	if final {
		bfinal = 1
	}
	length := uint16(n)
	nlength := ^length
	return append(out, bfinal, byte(length), byte(length>>8), byte(nlength), byte(nlength>>8))
}

func appendChecksum(out []byte, sum uint32) []byte {
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// Writer streams a zlib stream to an io.Writer. Each Write becomes one or
// more non-final stored blocks; Close emits an empty final block and the
// checksum. Nothing is buffered, so memory use does not grow with input.
type Writer struct {
	output     io.Writer
	adler      hash.Hash32
	headerDone bool
	closed     bool
	scratch    [blockHeaderSize]byte
}

// NewWriter returns a Writer producing a zlib stream on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{output: w, adler: adler32.New()}
}

func (w *Writer) writeHeader() error {
	if w.headerDone {
		return nil
	}
	w.headerDone = true
	_, err := w.output.Write(zlibHeader)
	return err
}

func (w *Writer) writeBlock(p []byte, final bool) error {
	header := appendBlockHeader(w.scratch[:0], len(p), final)
	if _, err := w.output.Write(header); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.output.Write(p)
	return err
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if err := w.writeHeader(); err != nil {
		return 0, err
	}
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > MaxBlock {
			n = MaxBlock
		}
		if err := w.writeBlock(p[:n], false); err != nil {
			return written, err
		}
		w.adler.Write(p[:n])
		written += n
		p = p[n:]
	}
	return written, nil
}

// Close finishes the stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writeHeader(); err != nil {
		return err
	}
	if err := w.writeBlock(nil, true); err != nil {
		return err
	}
	_, err := w.output.Write(appendChecksum(w.scratch[:0], w.adler.Sum32()))
	return err
}
