package binary

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"slices"
)

// Writer provides buffered writing utilities for Candid binary encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// NewWriterBuffer creates a Writer appending to buf.
func NewWriterBuffer(buf *bytes.Buffer) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reset discards all written bytes.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteString writes s without a length prefix.
func (w *Writer) WriteString(s string) {
	w.buf.WriteString(s)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	w.WriteU64(uint64(v))
}

// WriteU64 writes an unsigned LEB128 encoded uint64.
func (w *Writer) WriteU64(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// WriteS64 writes a signed LEB128 encoded int64.
func (w *Writer) WriteS64(v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

// WriteNat writes a non-negative big integer as unsigned LEB128.
// The caller guarantees v >= 0.
func (w *Writer) WriteNat(v *big.Int) {
	if v.IsUint64() {
		w.WriteU64(v.Uint64())
		return
	}
	w.writeGroups(v.Bytes(), (v.BitLen()+6)/7)
}

// WriteInt writes a big integer as signed LEB128.
func (w *Writer) WriteInt(v *big.Int) {
	if v.IsInt64() {
		w.WriteS64(v.Int64())
		return
	}
	// groups must hold the magnitude plus a sign bit
	bits := v.BitLen()
	if v.Sign() < 0 {
		bits = new(big.Int).Not(v).BitLen()
	}
	groups := bits/7 + 1
	u := v
	if v.Sign() < 0 {
		u = new(big.Int).Lsh(big.NewInt(1), uint(7*groups))
		u.Add(u, v)
	}
	w.writeGroups(u.Bytes(), groups)
}

// writeGroups emits the low 7*groups bits of the big-endian value be.
func (w *Writer) writeGroups(be []byte, groups int) {
	le := slices.Clone(be)
	slices.Reverse(le)
	at := func(i int) uint16 {
		if i < len(le) {
			return uint16(le[i])
		}
		return 0
	}
	for i := 0; i < groups; i++ {
		bit := 7 * i
		b := byte((at(bit/8)|at(bit/8+1)<<8)>>(bit%8)) & 0x7f
		if i < groups-1 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

// WriteText writes a LEB128 length-prefixed string.
func (w *Writer) WriteText(s string) {
	w.WriteU64(uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteBlob writes a LEB128 length-prefixed byte slice.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteU64(uint64(len(b)))
	w.buf.Write(b)
}

// WriteU16LE writes a little-endian uint16.
func (w *Writer) WriteU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU32LE writes a little-endian uint32.
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU64LE writes a little-endian uint64.
func (w *Writer) WriteU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.buf.Write(buf[:])
}
