package protocol

import (
	"bytes"
	"testing"
)

func TestFifoWrap(t *testing.T) {
	f := NewFifoBuffer(8)

	if n := f.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("Expected 5 written, got %d", n)
	}
	f.Pop(4)
	if n := f.Write([]byte{6, 7, 8, 9, 10}); n != 5 {
		t.Fatalf("Expected 5 written, got %d", n)
	}

	if !bytes.Equal(f.Data(), []byte{5, 6, 7, 8, 9, 10}) {
		t.Errorf("Unexpected wrapped data % X", f.Data())
	}
	if f.Free() != 1 {
		t.Errorf("Expected 1 free, got %d", f.Free())
	}
	if f.Write([]byte{11, 12}) != 1 {
		t.Error("Expected write truncated at capacity")
	}
	if f.PutByte(13) {
		t.Error("Expected PutByte to fail when full")
	}

	f.Pop(100)
	if f.Available() != 0 {
		t.Errorf("Expected empty after over-pop, got %d", f.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	s := NewScratchOutput()
	s.Output([]byte{0, 1, 2})
	s.Update(0, 9)
	s.Update(10, 9)

	if !bytes.Equal(s.Result(), []byte{9, 1, 2}) {
		t.Errorf("Unexpected result % X", s.Result())
	}
	if !bytes.Equal(s.DataSince(1), []byte{1, 2}) {
		t.Errorf("Unexpected DataSince % X", s.DataSince(1))
	}
	if s.DataSince(5) != nil {
		t.Error("Expected nil past the end")
	}

	if s.Free() != MessageMax-3 {
		t.Errorf("Expected %d free, got %d", MessageMax-3, s.Free())
	}
	s.Rewind(1)
	if !bytes.Equal(s.Result(), []byte{9}) {
		t.Errorf("Expected rewind to keep one byte, got % X", s.Result())
	}
	s.Rewind(4)
	if len(s.Result()) != 1 {
		t.Error("Expected rewind past the end ignored")
	}

	s.Reset()
	if len(s.Result()) != 0 {
		t.Error("Expected empty after Reset")
	}
}

func TestSliceInputBuffer(t *testing.T) {
	in := NewSliceInputBuffer([]byte{1, 2, 3})
	in.Pop(2)
	if in.Available() != 1 || in.Data()[0] != 3 {
		t.Errorf("Unexpected data % X", in.Data())
	}
	in.Pop(5)
	if in.Available() != 0 {
		t.Error("Expected empty")
	}
}
