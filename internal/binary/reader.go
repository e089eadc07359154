package binary

import (
	"encoding/binary"
	"math"
	"math/big"
	"slices"

	"github.com/wippyai/candid/errors"
)

// Reader reads Candid primitives from a byte slice with position tracking.
// Every failed read leaves the position unchanged.
type Reader struct {
	data   []byte
	pos    int
	maxLEB int
}

// NewReader creates a new Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Remaining returns the unread bytes without advancing.
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}

// Slice returns data[from:to] from the underlying buffer.
func (r *Reader) Slice(from, to int) []byte {
	return r.data[from:to]
}

func (r *Reader) eof(need int) error {
	return errors.UnexpectedEOF(nil, r.pos, need)
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.eof(1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes. The result aliases the input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.eof(n - r.Len())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	start := r.pos
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		r.pos = start
		return 0, r.overflow(v, "u32")
	}
	return uint32(v), nil
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	start := r.pos
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			r.pos = start
			return 0, err
		}
		if shift == 63 && b > 1 {
			r.pos = start
			return 0, r.overflow(nil, "u64")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift > 63 {
			r.pos = start
			return 0, r.overflow(nil, "u64")
		}
	}
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	start := r.pos
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			r.pos = start
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 70 {
			r.pos = start
			return 0, r.overflow(nil, "i64")
		}
	}
	// Sign extend
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// LimitLEB caps the encoded length of values read by ReadNat, ReadInt and
// SkipLEB. Zero means unbounded.
func (r *Reader) LimitLEB(n int) {
	r.maxLEB = n
}

// lebLen returns the encoded length of the LEB128 value at the position.
func (r *Reader) lebLen() (int, error) {
	for n := 0; ; {
		if r.maxLEB > 0 && n >= r.maxLEB {
			return 0, errors.New(errors.PhaseDecode, errors.KindLimit).
				Offset(r.pos).
				Detail("LEB128 value longer than %d bytes", r.maxLEB).
				Build()
		}
		if r.pos+n >= len(r.data) {
			return 0, errors.UnexpectedEOF(nil, r.pos+n, 1)
		}
		b := r.data[r.pos+n]
		n++
		if b&0x80 == 0 {
			return n, nil
		}
	}
}

// ReadNat reads an unbounded unsigned LEB128 value.
func (r *Reader) ReadNat() (*big.Int, error) {
	n, err := r.lebLen()
	if err != nil {
		return nil, err
	}
	raw := r.data[r.pos : r.pos+n]
	r.pos += n
	return new(big.Int).SetBytes(unpackGroups(raw)), nil
}

// ReadInt reads an unbounded signed LEB128 value.
func (r *Reader) ReadInt() (*big.Int, error) {
	n, err := r.lebLen()
	if err != nil {
		return nil, err
	}
	raw := r.data[r.pos : r.pos+n]
	r.pos += n
	result := new(big.Int).SetBytes(unpackGroups(raw))
	if raw[n-1]&0x40 != 0 {
		// sign extend: subtract 2^(7n)
		result.Sub(result, new(big.Int).Lsh(big.NewInt(1), uint(7*n)))
	}
	return result, nil
}

// unpackGroups joins the 7-bit groups of raw into a big-endian byte slice.
func unpackGroups(raw []byte) []byte {
	out := make([]byte, (7*len(raw)+7)/8)
	for i, b := range raw {
		bit := 7 * i
		v := uint16(b&0x7f) << (bit % 8)
		j := bit / 8
		out[j] |= byte(v)
		if v>>8 != 0 {
			out[j+1] |= byte(v >> 8)
		}
	}
	slices.Reverse(out)
	return out
}

// SkipLEB skips one LEB128 value.
func (r *Reader) SkipLEB() error {
	n, err := r.lebLen()
	if err != nil {
		return err
	}
	r.pos += n
	return nil
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32LE reads a little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64LE reads a little-endian uint64.
func (r *Reader) ReadU64LE() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (r *Reader) overflow(v any, target string) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(r.pos).
		Value(v).
		Detail("LEB128 value overflows %s", target).
		Build()
}
