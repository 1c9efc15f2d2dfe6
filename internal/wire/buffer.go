package wire

import (
	"encoding/binary"
	"math"
)

// Buffer is a growable byte sequence with independent read and write
// cursors. All multi-byte integers are big-endian. Encoding is positional:
// nothing on the wire says which type a field has, so readers must call the
// Get methods in the same order the writer called the Put methods.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte // data[:len(data)] is everything written so far
	roff int
}

// NewBuffer returns an empty Buffer pre-allocated with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, 0, capacity)}
}

// FromBytes wraps p for parsing. p becomes the backing store (no copy); the
// read cursor starts at 0 and the write cursor at len(p).
func FromBytes(p []byte) *Buffer {
	return &Buffer{data: p}
}

// Bytes returns everything written so far, regardless of the read cursor.
// The slice aliases the buffer and is only valid until the next Put.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Unread returns the number of bytes between the read and write cursors.
func (b *Buffer) Unread() int {
	return len(b.data) - b.roff
}

// ReadOffset returns the read cursor.
func (b *Buffer) ReadOffset() int {
	return b.roff
}

// Rest returns the unread bytes without advancing the read cursor.
func (b *Buffer) Rest() []byte {
	return b.data[b.roff:]
}

// Reset empties the buffer and rewinds both cursors, keeping the storage.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.roff = 0
}

// grow ensures room for n more bytes and returns the write offset.
func (b *Buffer) grow(n int) int {
	off := len(b.data)
	need := off + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		return off
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	tmp := make([]byte, need, newCap)
	copy(tmp, b.data)
	b.data = tmp
	return off
}

// PutUint8 appends a single byte.
func (b *Buffer) PutUint8(v uint8) {
	off := b.grow(1)
	b.data[off] = v
}

// PutUint8Int appends v as a single byte after checking it fits.
func (b *Buffer) PutUint8Int(v int) error {
	if v < 0 || v > math.MaxUint8 {
		return &RangeError{Field: "uint8", Value: int64(v), Max: math.MaxUint8}
	}
	b.PutUint8(uint8(v))
	return nil
}

// PutUint32 appends v in big-endian order.
func (b *Buffer) PutUint32(v uint32) {
	off := b.grow(4)
	binary.BigEndian.PutUint32(b.data[off:], v)
}

// PutUint32Int appends v as a big-endian uint32 after checking it fits.
func (b *Buffer) PutUint32Int(v int64) error {
	if v < 0 || v > math.MaxUint32 {
		return &RangeError{Field: "uint32", Value: v, Max: math.MaxUint32}
	}
	b.PutUint32(uint32(v))
	return nil
}

// PutString appends a uint32 byte-length prefix followed by the UTF-8 bytes.
func (b *Buffer) PutString(s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return &RangeError{Field: "string length", Value: int64(len(s)), Max: math.MaxUint32}
	}
	b.PutUint32(uint32(len(s)))
	off := b.grow(len(s))
	copy(b.data[off:], s)
	return nil
}

// PutBytes appends p as-is, without a length prefix.
func (b *Buffer) PutBytes(p []byte) {
	off := b.grow(len(p))
	copy(b.data[off:], p)
}

// need checks that n bytes are unread and advances the read cursor past them.
func (b *Buffer) need(field string, n int) (int, error) {
	if n > b.Unread() {
		return 0, &UnderflowError{Field: field, Need: n, Have: b.Unread()}
	}
	off := b.roff
	b.roff += n
	return off, nil
}

// GetUint8 reads a single byte.
func (b *Buffer) GetUint8() (uint8, error) {
	off, err := b.need("uint8", 1)
	if err != nil {
		return 0, err
	}
	return b.data[off], nil
}

// GetUint32 reads a big-endian uint32.
func (b *Buffer) GetUint32() (uint32, error) {
	off, err := b.need("uint32", 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.data[off:]), nil
}

// GetString reads a length-prefixed string. If the body is short the read
// cursor is left where it was before the prefix.
func (b *Buffer) GetString() (string, error) {
	start := b.roff
	length, err := b.GetUint32()
	if err != nil {
		return "", err
	}
	if uint64(length) > uint64(b.Unread()) {
		have := b.Unread()
		b.roff = start
		return "", &UnderflowError{Field: "string", Need: int(min(uint64(length), math.MaxInt32)), Have: have}
	}
	off := b.roff
	b.roff += int(length)
	return string(b.data[off : off+int(length)]), nil
}
