package codec

import (
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/binary"
	"github.com/wippyai/candid/principal"
)

// Decoder reads messages under a set of resource limits. A Decoder holds
// no per-message state and may be shared.
type Decoder struct {
	limits Limits
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLimits replaces the default resource limits.
func WithLimits(l Limits) DecoderOption {
	return func(d *Decoder) { d.limits = l }
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{limits: DefaultLimits}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Decode reads values from data as the expected types using DefaultLimits.
func Decode(data []byte, expected []idl.Type) ([]any, error) {
	return defaultDecoder.Decode(data, expected)
}

// Inspect decodes a message using its own type table, for messages whose
// schema is unknown to the reader.
func Inspect(data []byte) ([]idl.Type, []any, error) {
	return defaultDecoder.Inspect(data)
}

// Decode reads values from data as the expected types. Extra wire values
// and trailing bytes are ignored. Fewer wire values than expected types is
// an unexpected end of input. On error no values are returned.
func (d *Decoder) Decode(data []byte, expected []idl.Type) ([]any, error) {
	r := d.newReader(data)
	wire, err := d.readHeader(r)
	if err != nil {
		return nil, err
	}
	return (&message{Decoder: d}).readArgs(r, wire, expected)
}

// Inspect decodes data against its own wire types.
func (d *Decoder) Inspect(data []byte) ([]idl.Type, []any, error) {
	r := d.newReader(data)
	wire, err := d.readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	vals, err := (&message{Decoder: d}).readArgs(r, wire, wire)
	if err != nil {
		return nil, nil, err
	}
	return wire, vals, nil
}

// WireTypes returns the argument types a message declares.
func (d *Decoder) WireTypes(data []byte) ([]idl.Type, error) {
	return d.readHeader(d.newReader(data))
}

func (d *Decoder) newReader(data []byte) *binary.Reader {
	r := binary.NewReader(data)
	r.LimitLEB(d.limits.MaxLEBSize)
	return r
}

// message carries the state of one Decode call.
type message struct {
	*Decoder
	spent uint64
}

// charge counts one decoded or skipped value against MaxValues.
func (d *message) charge(r *binary.Reader, path []string) error {
	d.spent++
	return d.limit(r, path, "value count", d.spent, d.limits.MaxValues)
}

func (d *message) readArgs(r *binary.Reader, wire, expected []idl.Type) ([]any, error) {
	if len(expected) > len(wire) {
		return nil, errors.New(errors.PhaseDecode, errors.KindUnexpectedEOF).
			Offset(r.Position()+r.Len()).
			Detail("message carries %d value(s), %d expected", len(wire), len(expected)).
			Build()
	}
	for i, et := range expected {
		if err := idl.Compatible(wire[i], et); err != nil {
			return nil, errors.WithPrefix(err, argLabel(i))
		}
	}

	vals := make([]any, len(expected))
	for i, et := range expected {
		v, err := d.readValue(r, wire[i], et, []string{argLabel(i)}, 0)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func argLabel(i int) string {
	return "arg[" + strconv.Itoa(i) + "]"
}

// atPath attaches path to a structured error that has none yet.
func atPath(err error, path []string) error {
	e, ok := err.(*errors.Error)
	if !ok || len(e.Path) > 0 {
		return err
	}
	cp := *e
	cp.Path = append([]string(nil), path...)
	if cp.Phase == "" {
		cp.Phase = errors.PhaseDecode
	}
	return &cp
}

func invalid(r *binary.Reader, path []string, detail string, args ...any) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(path...).
		Offset(r.Position()).
		Detail(detail, args...).
		Build()
}

func (d *Decoder) limit(r *binary.Reader, path []string, what string, got uint64, max int) error {
	if got <= uint64(max) {
		return nil
	}
	e := errors.Limit(errors.PhaseDecode, path, what, int(min(got, math.MaxInt32)), max)
	e.Offset = r.Position()
	return e
}

func (d *message) readValue(r *binary.Reader, wt, et idl.Type, path []string, depth int) (any, error) {
	if depth > d.limits.MaxDepth {
		return nil, d.limit(r, path, "nesting depth", uint64(depth), d.limits.MaxDepth)
	}
	if err := d.charge(r, path); err != nil {
		return nil, err
	}
	w := idl.Resolve(wt)
	e := idl.Resolve(et)

	if ep, ok := e.(idl.PrimType); ok && ep == idl.Reserved {
		if err := d.skip(r, wt, path, depth); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if wp, ok := w.(idl.PrimType); ok && wp == idl.Empty {
		return nil, invalid(r, path, "value of type empty")
	}

	switch et := e.(type) {
	case idl.PrimType:
		return d.readPrim(r, w.(idl.PrimType), et, path)

	case *idl.OptType:
		switch wt2 := w.(type) {
		case idl.PrimType:
			if wt2 == idl.Null || wt2 == idl.Reserved {
				return idl.None(), nil
			}
		case *idl.OptType:
			flag, err := r.ReadByte()
			if err != nil {
				return nil, atPath(err, path)
			}
			switch flag {
			case 0:
				return idl.None(), nil
			case 1:
				v, err := d.readValue(r, wt2.Elem, et.Elem, path, depth+1)
				if err != nil {
					return nil, err
				}
				return idl.Some(v), nil
			}
			return nil, invalid(r, path, "invalid option flag %d", flag)
		}
		v, err := d.readValue(r, wt, et.Elem, path, depth+1)
		if err != nil {
			return nil, err
		}
		return idl.Some(v), nil

	case *idl.VecType:
		wv := w.(*idl.VecType)
		n, err := r.ReadU64()
		if err != nil {
			return nil, atPath(err, path)
		}
		if err := d.limit(r, path, "vector length", n, d.limits.MaxVecLen); err != nil {
			return nil, err
		}
		if idl.IsBlob(et) && idl.IsBlob(wv) {
			if err := d.limit(r, path, "blob size", n, d.limits.MaxTextSize); err != nil {
				return nil, err
			}
			raw, err := r.ReadBytes(int(n))
			if err != nil {
				return nil, atPath(err, path)
			}
			return append([]byte(nil), raw...), nil
		}
		out := make([]any, 0, min(int(n), r.Len()+1))
		for i := 0; i < int(n); i++ {
			v, err := d.readValue(r, wv.Elem, et.Elem, append(path, "["+strconv.Itoa(i)+"]"), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if idl.IsBlob(et) {
			raw := make([]byte, len(out))
			for i, v := range out {
				raw[i] = v.(uint8)
			}
			return raw, nil
		}
		return out, nil

	case *idl.RecordType:
		wr := w.(*idl.RecordType)
		rec := make(idl.Record, len(et.Fields))
		for _, wf := range wr.Fields {
			ef, ok := et.Field(wf.ID)
			if !ok {
				if err := d.skip(r, wf.Type, append(path, wf.Label()), depth+1); err != nil {
					return nil, err
				}
				continue
			}
			v, err := d.readValue(r, wf.Type, ef.Type, append(path, ef.Label()), depth+1)
			if err != nil {
				return nil, err
			}
			rec[ef.ID] = v
		}
		for _, ef := range et.Fields {
			if _, ok := rec[ef.ID]; ok {
				continue
			}
			if _, ok := idl.Resolve(ef.Type).(*idl.OptType); ok {
				rec[ef.ID] = idl.None()
			} else {
				rec[ef.ID] = nil
			}
		}
		return rec, nil

	case *idl.VariantType:
		wv := w.(*idl.VariantType)
		start := r.Position()
		idx, err := r.ReadU64()
		if err != nil {
			return nil, atPath(err, path)
		}
		if idx >= uint64(len(wv.Cases)) {
			return nil, invalid(r, path, "variant index %d out of range (%d cases)", idx, len(wv.Cases))
		}
		wc := wv.Cases[idx]
		ec, _, ok := et.Case(wc.ID)
		if !ok {
			if !et.Open {
				e := errors.UnknownVariant(errors.PhaseDecode, path, wc.ID)
				e.Offset = start
				return nil, e
			}
			from := r.Position()
			if err := d.skip(r, wc.Type, append(path, wc.Label()), depth+1); err != nil {
				return nil, err
			}
			raw := append([]byte(nil), r.Slice(from, r.Position())...)
			return idl.UnknownCase{Tag: wc.ID, Type: wc.Type, Raw: raw}, nil
		}
		v, err := d.readValue(r, wc.Type, ec.Type, append(path, ec.Label()), depth+1)
		if err != nil {
			return nil, err
		}
		return idl.Variant{Tag: ec.ID, Value: v}, nil

	case *idl.FuncType:
		flag, err := r.ReadByte()
		if err != nil {
			return nil, atPath(err, path)
		}
		if flag != 1 {
			return nil, invalid(r, path, "opaque func reference")
		}
		svc, err := d.readPrincipal(r, path)
		if err != nil {
			return nil, err
		}
		method, err := d.readText(r, path)
		if err != nil {
			return nil, err
		}
		return idl.FuncRef{Service: svc, Method: method}, nil

	case *idl.ServiceType:
		return d.readPrincipal(r, path)
	}
	return nil, errors.Internal(errors.PhaseDecode, "unhandled type %T", e)
}

func (d *Decoder) readPrim(r *binary.Reader, wp, ep idl.PrimType, path []string) (any, error) {
	wk, ek := idl.Kind(wp), idl.Kind(ep)

	if ek.IsInteger() {
		n, err := readInteger(r, wk)
		if err != nil {
			return nil, atPath(err, path)
		}
		if !idl.InRange(n, ek) {
			e := errors.Overflow(errors.PhaseDecode, path, shortDecimal(n), ek.String())
			e.Offset = r.Position()
			return nil, e
		}
		return idl.NativeInt(n, ek), nil
	}

	switch ek {
	case idl.KindNull:
		return nil, nil
	case idl.KindBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, atPath(err, path)
		}
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, invalid(r, path, "invalid bool byte %d", b)
	case idl.KindFloat32:
		bits, err := r.ReadU32LE()
		if err != nil {
			return nil, atPath(err, path)
		}
		return math.Float32frombits(bits), nil
	case idl.KindFloat64:
		if wk == idl.KindFloat32 {
			bits, err := r.ReadU32LE()
			if err != nil {
				return nil, atPath(err, path)
			}
			return float64(math.Float32frombits(bits)), nil
		}
		bits, err := r.ReadU64LE()
		if err != nil {
			return nil, atPath(err, path)
		}
		return math.Float64frombits(bits), nil
	case idl.KindText:
		return d.readText(r, path)
	case idl.KindPrincipal:
		return d.readPrincipal(r, path)
	}
	return nil, errors.Internal(errors.PhaseDecode, "unhandled primitive %s", ep)
}

// shortDecimal renders n for error messages, eliding very wide values.
func shortDecimal(n *big.Int) string {
	if n.BitLen() <= 128 {
		return n.String()
	}
	if n.Sign() < 0 {
		return "-(" + strconv.Itoa(n.BitLen()) + "-bit integer)"
	}
	return "(" + strconv.Itoa(n.BitLen()) + "-bit integer)"
}

func readInteger(r *binary.Reader, k idl.Kind) (*big.Int, error) {
	switch k {
	case idl.KindNat:
		return r.ReadNat()
	case idl.KindInt:
		return r.ReadInt()
	case idl.KindNat8:
		b, err := r.ReadByte()
		return new(big.Int).SetUint64(uint64(b)), err
	case idl.KindInt8:
		b, err := r.ReadByte()
		return big.NewInt(int64(int8(b))), err
	case idl.KindNat16:
		v, err := r.ReadU16LE()
		return new(big.Int).SetUint64(uint64(v)), err
	case idl.KindInt16:
		v, err := r.ReadU16LE()
		return big.NewInt(int64(int16(v))), err
	case idl.KindNat32:
		v, err := r.ReadU32LE()
		return new(big.Int).SetUint64(uint64(v)), err
	case idl.KindInt32:
		v, err := r.ReadU32LE()
		return big.NewInt(int64(int32(v))), err
	case idl.KindNat64:
		v, err := r.ReadU64LE()
		return new(big.Int).SetUint64(v), err
	case idl.KindInt64:
		v, err := r.ReadU64LE()
		return big.NewInt(int64(v)), err
	}
	return nil, errors.Internal(errors.PhaseDecode, "%s is not an integer kind", k)
}

func (d *Decoder) readText(r *binary.Reader, path []string) (string, error) {
	n, err := r.ReadU64()
	if err != nil {
		return "", atPath(err, path)
	}
	if err := d.limit(r, path, "text size", n, d.limits.MaxTextSize); err != nil {
		return "", err
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return "", atPath(err, path)
	}
	if !utf8.Valid(raw) {
		e := errors.InvalidUTF8(errors.PhaseDecode, path, raw)
		e.Offset = r.Position() - len(raw)
		return "", e
	}
	return string(raw), nil
}

func (d *Decoder) readPrincipal(r *binary.Reader, path []string) (principal.Principal, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return principal.Principal{}, atPath(err, path)
	}
	if flag != 1 {
		return principal.Principal{}, invalid(r, path, "opaque principal reference")
	}
	n, err := r.ReadU64()
	if err != nil {
		return principal.Principal{}, atPath(err, path)
	}
	if n > principal.MaxLength {
		return principal.Principal{}, invalid(r, path, "principal length %d exceeds %d", n, principal.MaxLength)
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return principal.Principal{}, atPath(err, path)
	}
	return principal.FromBytes(raw)
}

// skip consumes one value of wire type t.
func (d *message) skip(r *binary.Reader, t idl.Type, path []string, depth int) error {
	if depth > d.limits.MaxDepth {
		return d.limit(r, path, "nesting depth", uint64(depth), d.limits.MaxDepth)
	}
	if err := d.charge(r, path); err != nil {
		return err
	}
	rt := idl.Resolve(t)
	var err error
	switch tt := rt.(type) {
	case idl.PrimType:
		k := idl.Kind(tt)
		switch k {
		case idl.KindNull, idl.KindReserved:
		case idl.KindEmpty:
			return invalid(r, path, "value of type empty")
		case idl.KindBool, idl.KindNat8, idl.KindInt8:
			err = r.Skip(1)
		case idl.KindNat, idl.KindInt:
			err = r.SkipLEB()
		case idl.KindText:
			_, err = d.readText(r, path)
		case idl.KindPrincipal:
			_, err = d.readPrincipal(r, path)
		default:
			err = r.Skip(k.Bits() / 8)
		}

	case *idl.OptType:
		var flag byte
		flag, err = r.ReadByte()
		if err == nil {
			switch flag {
			case 0:
			case 1:
				return d.skip(r, tt.Elem, path, depth+1)
			default:
				return invalid(r, path, "invalid option flag %d", flag)
			}
		}

	case *idl.VecType:
		var n uint64
		n, err = r.ReadU64()
		if err != nil {
			break
		}
		if err := d.limit(r, path, "vector length", n, d.limits.MaxVecLen); err != nil {
			return err
		}
		if idl.IsBlob(tt) {
			err = r.Skip(int(n))
			break
		}
		for i := 0; i < int(n); i++ {
			if err := d.skip(r, tt.Elem, path, depth+1); err != nil {
				return err
			}
		}

	case *idl.RecordType:
		for _, f := range tt.Fields {
			if err := d.skip(r, f.Type, append(path, f.Label()), depth+1); err != nil {
				return err
			}
		}

	case *idl.VariantType:
		var idx uint64
		idx, err = r.ReadU64()
		if err != nil {
			break
		}
		if idx >= uint64(len(tt.Cases)) {
			return invalid(r, path, "variant index %d out of range (%d cases)", idx, len(tt.Cases))
		}
		return d.skip(r, tt.Cases[idx].Type, path, depth+1)

	case *idl.FuncType:
		var flag byte
		flag, err = r.ReadByte()
		if err != nil {
			break
		}
		if flag != 1 {
			return invalid(r, path, "opaque func reference")
		}
		if _, err := d.readPrincipal(r, path); err != nil {
			return err
		}
		_, err = d.readText(r, path)

	case *idl.ServiceType:
		_, err = d.readPrincipal(r, path)

	default:
		return errors.Internal(errors.PhaseDecode, "unhandled type %T", rt)
	}
	if err != nil {
		return atPath(err, path)
	}
	return nil
}
