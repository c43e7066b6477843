// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package crdt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// maxVarStringLen bounds a single length-prefixed field so a hostile frame
// cannot make the decoder allocate more than the frame itself carries.
const maxVarStringLen = 64 << 20

// ErrUnexpectedEOF is returned when a buffer ends in the middle of a value.
var ErrUnexpectedEOF = errors.New("unexpected end of buffer")

// Encoder appends variable-length integers and length-prefixed byte strings
// to a growing buffer. The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with the given initial capacity.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// WriteVarUint appends an unsigned LEB128 integer.
func (e *Encoder) WriteVarUint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// WriteByte appends a single byte. It never fails.
func (e *Encoder) WriteByte(b byte) error {
	e.buf = append(e.buf, b)
	return nil
}

// WriteVarBytes appends a length-prefixed byte string.
func (e *Encoder) WriteVarBytes(b []byte) {
	e.WriteVarUint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteVarString appends a length-prefixed UTF-8 string.
func (e *Encoder) WriteVarString(s string) {
	e.WriteVarUint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteRaw appends bytes without a length prefix.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Bytes returns the encoded buffer. The encoder must not be reused afterwards.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Decoder reads values written by Encoder.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for reading.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// HasContent reports whether unread bytes remain.
func (d *Decoder) HasContent() bool {
	return d.pos < len(d.buf)
}

// ReadVarUint reads an unsigned LEB128 integer.
func (d *Decoder) ReadVarUint() (uint64, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n == 0 {
		return 0, ErrUnexpectedEOF
	}
	if n < 0 {
		return 0, fmt.Errorf("varuint overflows 64 bits at offset %d", d.pos)
	}
	d.pos += n
	return v, nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadVarBytes reads a length-prefixed byte string. The returned slice
// aliases the decoder's buffer.
func (d *Decoder) ReadVarBytes() ([]byte, error) {
	n, err := d.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if n > maxVarStringLen || n > uint64(d.Remaining()) {
		return nil, ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

// ReadVarString reads a length-prefixed string.
func (d *Decoder) ReadVarString() (string, error) {
	b, err := d.ReadVarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCount reads a collection length and rejects values that could not
// possibly fit in the remaining input (each entry takes at least minSize bytes).
func (d *Decoder) ReadCount(minSize int) (int, error) {
	n, err := d.ReadVarUint()
	if err != nil {
		return 0, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(d.Remaining()/minSize) {
		return 0, fmt.Errorf("count %d exceeds remaining input", n)
	}
	return int(n), nil
}

// Rest returns the unread bytes.
func (d *Decoder) Rest() []byte {
	return d.buf[d.pos:]
}
