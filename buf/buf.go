// Package buf implements the fixed-capacity byte arena HAP's request
// and response paths run on: a single backing array per Buffer, a
// declared size ceiling, and a length that tracks how much of it is
// live. Every PDU, HTTP body, and TLV8 blob in this module is backed
// by one of these rather than an ad-hoc growing slice, mirroring the
// append/decode-in-place style the asdu codec in the industrial
// protocol stack this exercise also drew on uses for its own frames.
package buf

import "fmt"

// ErrCapacity is returned whenever an operation would grow a Buffer
// past its declared capacity.
var ErrCapacity = fmt.Errorf("buf: operation exceeds buffer capacity")

// ErrUnderflow is returned when a caller asks to consume more bytes
// than remain between the read cursor and the buffer's length.
var ErrUnderflow = fmt.Errorf("buf: not enough bytes remaining")

// Buffer is a fixed-capacity byte arena: `pointer` is the backing
// array, `size` its declared capacity, and `length` how many bytes at
// the front of it are currently live. A read cursor tracks how much of
// the live region a sequence of Decode* calls has consumed.
type Buffer struct {
	pointer []byte
	size    int
	length  int
	cursor  int
}

// New allocates a Buffer with the given fixed capacity.
func New(size int) *Buffer {
	return &Buffer{pointer: make([]byte, size), size: size}
}

// Wrap builds a Buffer over an existing byte slice, treating its full
// length as both capacity and initial live length (used to present an
// already-received PDU body for decoding).
func Wrap(b []byte) *Buffer {
	return &Buffer{pointer: b, size: len(b), length: len(b)}
}

// Cap returns the buffer's declared capacity.
func (b *Buffer) Cap() int { return b.size }

// Len returns the number of live bytes.
func (b *Buffer) Len() int { return b.length }

// Remaining returns how many unread bytes are left between the read
// cursor and Len().
func (b *Buffer) Remaining() int { return b.length - b.cursor }

// Reset clears the buffer to empty and rewinds the read cursor,
// without releasing the backing array.
func (b *Buffer) Reset() {
	b.length = 0
	b.cursor = 0
}

// Bytes returns the live region, pointer-shared with the backing
// array: callers must not retain it across a Reset/Append.
func (b *Buffer) Bytes() []byte { return b.pointer[:b.length] }

// Append writes p to the end of the live region, failing if it would
// exceed capacity.
func (b *Buffer) Append(p []byte) error {
	if b.length+len(p) > b.size {
		return ErrCapacity
	}
	copy(b.pointer[b.length:], p)
	b.length += len(p)
	return nil
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(v byte) error { return b.Append([]byte{v}) }

// AppendUint16LE appends a 16-bit little-endian integer.
func (b *Buffer) AppendUint16LE(v uint16) error {
	return b.Append([]byte{byte(v), byte(v >> 8)})
}

// AppendUint32LE appends a 32-bit little-endian integer.
func (b *Buffer) AppendUint32LE(v uint32) error {
	return b.Append([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// AppendUint64LE appends a 64-bit little-endian integer.
func (b *Buffer) AppendUint64LE(v uint64) error {
	return b.Append([]byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	})
}

// Take reads the next n bytes from the cursor, advancing it.
func (b *Buffer) Take(n int) ([]byte, error) {
	if b.Remaining() < n {
		return nil, ErrUnderflow
	}
	out := b.pointer[b.cursor : b.cursor+n]
	b.cursor += n
	return out, nil
}

// TakeByte reads a single byte from the cursor.
func (b *Buffer) TakeByte() (byte, error) {
	p, err := b.Take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// TakeUint16LE reads a 16-bit little-endian integer from the cursor.
func (b *Buffer) TakeUint16LE() (uint16, error) {
	p, err := b.Take(2)
	if err != nil {
		return 0, err
	}
	return uint16(p[0]) | uint16(p[1])<<8, nil
}

// TakeUint32LE reads a 32-bit little-endian integer from the cursor.
func (b *Buffer) TakeUint32LE() (uint32, error) {
	p, err := b.Take(4)
	if err != nil {
		return 0, err
	}
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24, nil
}

// Rewind resets the read cursor to the start of the live region
// without discarding any appended bytes, used when a handler needs a
// second decode pass over the same body (e.g. CharExecuteWrite
// replaying a stashed timed-write body).
func (b *Buffer) Rewind() { b.cursor = 0 }
