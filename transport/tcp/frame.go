package tcp

import (
	"hash/crc32"
	"io"
	"math"

	"github.com/golang/snappy"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/binary"
)

// Frame layout, little endian:
//
//	[4 length][1 type][4 id][1 mode][2 method length][method][4 crc32][snappy payload]
//
// length counts every byte after itself. The checksum covers the
// compressed payload.

type frameType uint8

const (
	frameRequest frameType = iota + 1
	frameResponse
	frameError
	frameOneway
)

// fixed bytes after the length prefix, checksum included
const frameOverhead = 1 + 4 + 1 + 2 + 4

// DefaultMaxFrameSize bounds a single frame on the wire.
const DefaultMaxFrameSize = 16 << 20

type frame struct {
	method  string
	payload []byte
	id      uint32
	typ     frameType
	mode    idl.Mode
}

func encodeFrame(f *frame) ([]byte, error) {
	if len(f.method) > math.MaxUint16 {
		return nil, errors.Limit(errors.PhaseTransport, nil, "method name length", len(f.method), math.MaxUint16)
	}
	body := snappy.Encode(nil, f.payload)

	w := binary.NewWriter()
	w.WriteU32LE(uint32(frameOverhead + len(f.method) + len(body)))
	w.Byte(byte(f.typ))
	w.WriteU32LE(f.id)
	w.Byte(byte(f.mode))
	w.WriteU16LE(uint16(len(f.method)))
	w.WriteString(f.method)
	w.WriteU32LE(crc32.ChecksumIEEE(body))
	w.WriteBytes(body)
	return w.Bytes(), nil
}

func readFrame(r io.Reader, maxSize int) (*frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n, _ := binary.NewReader(prefix[:]).ReadU32LE()
	if int64(n) > int64(maxSize) {
		return nil, errors.Limit(errors.PhaseTransport, nil, "frame size", int(n), maxSize)
	}
	if n < frameOverhead {
		return nil, errors.InvalidData(errors.PhaseTransport, nil, "frame shorter than its header")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	br := binary.NewReader(buf)
	typ, _ := br.ReadByte()
	id, _ := br.ReadU32LE()
	mode, _ := br.ReadByte()
	mlen, _ := br.ReadU16LE()
	method, err := br.ReadBytes(int(mlen))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "method name overruns frame")
	}
	sum, err := br.ReadU32LE()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "checksum overruns frame")
	}
	body := br.Remaining()
	if crc32.ChecksumIEEE(body) != sum {
		return nil, errors.InvalidData(errors.PhaseTransport, nil, "frame checksum mismatch")
	}
	payload, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "corrupt payload")
	}

	t := frameType(typ)
	if t < frameRequest || t > frameOneway {
		return nil, errors.InvalidData(errors.PhaseTransport, nil, "unknown frame type")
	}
	return &frame{
		typ:     t,
		id:      id,
		mode:    idl.Mode(mode),
		method:  string(method),
		payload: payload,
	}, nil
}
