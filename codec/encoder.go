package codec

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/binary"
	"github.com/wippyai/candid/principal"
)

// Encode serializes values against types into a self-describing message.
// Every value is checked before anything is written; on failure no bytes
// are returned. Equal inputs always produce identical bytes.
func Encode(values []any, types []idl.Type) ([]byte, error) {
	if err := idl.CheckArgs(values, types); err != nil {
		return nil, err
	}

	table := newTypeTable()
	refs, err := table.refs(types)
	if err != nil {
		return nil, err
	}

	buf := getBuf()
	defer putBuf(buf)
	w := binary.NewWriterBuffer(buf)

	w.WriteString(Magic)
	table.write(w)
	writeRefs(w, refs)

	for i, v := range values {
		if err := writeValue(w, v, types[i], []string{"arg[" + strconv.Itoa(i) + "]"}, 0); err != nil {
			return nil, err
		}
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(values []any, types []idl.Type) []byte {
	b, err := Encode(values, types)
	if err != nil {
		panic(err)
	}
	return b
}

// internal reports a value that passed idl.Check but cannot be written.
func internal(path []string, v any, t idl.Type) error {
	return errors.New(errors.PhaseEncode, errors.KindInternal).
		Path(path...).
		GoType(fmt.Sprintf("%T", v)).
		IDLType(t.String()).
		Detail("value passed conformance check but cannot be written").
		Build()
}

func writeValue(w *binary.Writer, v any, t idl.Type, path []string, depth int) error {
	if depth > idl.MaxDepth {
		return errors.Limit(errors.PhaseEncode, path, "nesting depth", depth, idl.MaxDepth)
	}
	rt := idl.Resolve(t)
	if rt == nil {
		return errors.Schema("unresolvable type %s", t)
	}

	switch tt := rt.(type) {
	case idl.PrimType:
		return writePrim(w, v, tt, path)

	case *idl.OptType:
		o, ok := idl.AsOption(v)
		if !ok {
			return internal(path, v, tt)
		}
		if !o.Valid {
			w.Byte(0)
			return nil
		}
		w.Byte(1)
		return writeValue(w, o.Value, tt.Elem, path, depth+1)

	case *idl.VecType:
		if raw, ok := idl.AsBytes(v); ok && idl.IsBlob(tt) {
			w.WriteBlob(raw)
			return nil
		}
		elems, ok := idl.AsSlice(v)
		if !ok {
			return internal(path, v, tt)
		}
		w.WriteU64(uint64(len(elems)))
		for i, e := range elems {
			if err := writeValue(w, e, tt.Elem, append(path, "["+strconv.Itoa(i)+"]"), depth+1); err != nil {
				return err
			}
		}
		return nil

	case *idl.RecordType:
		rec, ok := idl.AsRecord(v)
		if !ok {
			return internal(path, v, tt)
		}
		for _, f := range tt.Fields {
			fv, present := rec[f.ID]
			if !present {
				// absent optional fields encode as none
				fv = nil
			}
			if err := writeValue(w, fv, f.Type, append(path, f.Label()), depth+1); err != nil {
				return err
			}
		}
		return nil

	case *idl.VariantType:
		vv, ok := v.(idl.Variant)
		if !ok {
			return internal(path, v, tt)
		}
		f, idx, ok := tt.Case(vv.Tag)
		if !ok {
			return internal(path, v, tt)
		}
		w.WriteU64(uint64(idx))
		return writeValue(w, vv.Value, f.Type, append(path, f.Label()), depth+1)

	case *idl.FuncType:
		ref, ok := v.(idl.FuncRef)
		if !ok {
			return internal(path, v, tt)
		}
		w.Byte(1)
		writePrincipal(w, ref.Service)
		w.WriteText(ref.Method)
		return nil

	case *idl.ServiceType:
		p, ok := v.(principal.Principal)
		if !ok {
			return internal(path, v, tt)
		}
		writePrincipal(w, p)
		return nil
	}
	return errors.Internal(errors.PhaseEncode, "unhandled type %T", rt)
}

func writePrincipal(w *binary.Writer, p principal.Principal) {
	w.Byte(1)
	w.WriteBlob(p.Bytes())
}

func writePrim(w *binary.Writer, v any, p idl.PrimType, path []string) error {
	k := idl.Kind(p)
	switch {
	case k == idl.KindNull, k == idl.KindReserved:
		return nil

	case k == idl.KindBool:
		b, ok := v.(bool)
		if !ok {
			return internal(path, v, p)
		}
		if b {
			w.Byte(1)
		} else {
			w.Byte(0)
		}
		return nil

	case k.IsInteger():
		n, ok := idl.AsBigInt(v)
		if !ok || !idl.InRange(n, k) {
			return internal(path, v, p)
		}
		switch k {
		case idl.KindNat:
			w.WriteNat(n)
		case idl.KindInt:
			w.WriteInt(n)
		case idl.KindNat8:
			w.Byte(byte(n.Uint64()))
		case idl.KindInt8:
			w.Byte(byte(n.Int64()))
		case idl.KindNat16:
			w.WriteU16LE(uint16(n.Uint64()))
		case idl.KindInt16:
			w.WriteU16LE(uint16(n.Int64()))
		case idl.KindNat32:
			w.WriteU32LE(uint32(n.Uint64()))
		case idl.KindInt32:
			w.WriteU32LE(uint32(n.Int64()))
		case idl.KindNat64:
			w.WriteU64LE(n.Uint64())
		case idl.KindInt64:
			w.WriteU64LE(uint64(n.Int64()))
		}
		return nil

	case k == idl.KindFloat32:
		f, ok := idl.AsFloat(v)
		if !ok {
			return internal(path, v, p)
		}
		w.WriteU32LE(math.Float32bits(float32(f)))
		return nil

	case k == idl.KindFloat64:
		f, ok := idl.AsFloat(v)
		if !ok {
			return internal(path, v, p)
		}
		w.WriteU64LE(math.Float64bits(f))
		return nil

	case k == idl.KindText:
		s, ok := v.(string)
		if !ok {
			return internal(path, v, p)
		}
		w.WriteText(s)
		return nil

	case k == idl.KindPrincipal:
		pr, ok := v.(principal.Principal)
		if !ok {
			return internal(path, v, p)
		}
		writePrincipal(w, pr)
		return nil
	}
	return internal(path, v, p)
}
