// Package principal implements the opaque identifiers that name services
// and callers, together with their textual form.
package principal

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/wippyai/candid/errors"
)

// MaxLength is the longest principal accepted in binary form.
const MaxLength = 29

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is an opaque identifier. The zero value is the management
// principal ("aaaaa-aa").
type Principal struct {
	raw string
}

// Anonymous is the principal used by unauthenticated callers.
var Anonymous = Principal{raw: "\x04"}

// FromBytes copies b into a Principal.
func FromBytes(b []byte) (Principal, error) {
	if len(b) > MaxLength {
		return Principal{}, errors.InvalidInput(errors.PhaseParse, "principal longer than 29 bytes")
	}
	return Principal{raw: string(b)}, nil
}

// MustFromBytes is like FromBytes but panics on error.
func MustFromBytes(b []byte) Principal {
	p, err := FromBytes(b)
	if err != nil {
		panic(err)
	}
	return p
}

// FromText parses the dashed base32 form, verifying its checksum.
func FromText(s string) (Principal, error) {
	compact := strings.ToUpper(strings.ReplaceAll(s, "-", ""))
	data, err := encoding.DecodeString(compact)
	if err != nil {
		return Principal{}, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "principal "+s)
	}
	if len(data) < 4 {
		return Principal{}, errors.InvalidInput(errors.PhaseParse, "principal text too short: "+s)
	}
	p, err := FromBytes(data[4:])
	if err != nil {
		return Principal{}, err
	}
	if p.String() != s {
		return Principal{}, errors.InvalidInput(errors.PhaseParse, "principal checksum or grouping mismatch: "+s)
	}
	return p, nil
}

// MustFromText is like FromText but panics on error.
func MustFromText(s string) Principal {
	p, err := FromText(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Bytes returns a copy of the raw identifier.
func (p Principal) Bytes() []byte {
	return []byte(p.raw)
}

// Len returns the raw length in bytes.
func (p Principal) Len() int {
	return len(p.raw)
}

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool {
	return p == Anonymous
}

// Equal reports whether p and o name the same principal.
func (p Principal) Equal(o Principal) bool {
	return p.raw == o.raw
}

// Compare orders principals by their raw bytes.
func (p Principal) Compare(o Principal) int {
	return bytes.Compare([]byte(p.raw), []byte(o.raw))
}

// String returns the textual form: base32(crc32 || bytes), lowercase,
// grouped into five-character chunks separated by dashes.
func (p Principal) String() string {
	buf := make([]byte, 4+len(p.raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE([]byte(p.raw)))
	copy(buf[4:], p.raw)
	enc := strings.ToLower(encoding.EncodeToString(buf))

	var b strings.Builder
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := min(i+5, len(enc))
		b.WriteString(enc[i:end])
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(b []byte) error {
	v, err := FromText(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
