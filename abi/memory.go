package abi

import (
	"encoding/binary"

	"github.com/wippyai/wasm-pack/errors"
)

// Memory is a WebAssembly linear memory.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
}

// Allocator reserves guest memory for lowered strings, lists and spilled
// arguments.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
}

func readUint(mem Memory, ptr, size uint32) (uint64, error) {
	b, err := mem.Read(ptr, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	}
	return 0, nil
}

func writeUint(mem Memory, ptr, size uint32, v uint64) error {
	var b [8]byte
	switch size {
	case 0:
		return nil
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b[:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b[:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b[:], v)
	}
	return mem.Write(ptr, b[:size])
}

// Buffer is an in-process linear memory with a bump allocator. Address 0
// is never handed out so it can stand for "no allocation".
type Buffer struct {
	data []byte
	next uint32
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer(size uint32) *Buffer {
	if size < 8 {
		size = 8
	}
	return &Buffer{data: make([]byte, size), next: 8}
}

func (b *Buffer) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(b.data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, offset, length)
	}
	return b.data[offset:end], nil
}

func (b *Buffer) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(b.data)) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, uint32(len(data)))
	}
	copy(b.data[offset:], data)
	return nil
}

// Alloc returns an aligned, zeroed region, growing the buffer as needed.
func (b *Buffer) Alloc(size, align uint32) (uint32, error) {
	ptr := alignTo64(uint64(b.next), align)
	end := ptr + uint64(size)
	if end > 1<<32-1 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
	}
	for end > uint64(len(b.data)) {
		grown := make([]byte, 2*len(b.data))
		copy(grown, b.data)
		b.data = grown
	}
	b.next = uint32(end)
	return uint32(ptr), nil
}

// Bytes exposes the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}
