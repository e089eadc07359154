package codec

import (
	"strconv"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/binary"
)

type rawField struct {
	name string
	id   uint32
	ref  int64
}

// rawEntry is a type table entry before its references are resolved.
type rawEntry struct {
	fields  []rawField
	args    []int64
	results []int64
	op      int64
	elem    int64
	modes   idl.Mode
}

// readHeader reads the magic, the type table and the argument type list.
func (d *Decoder) readHeader(r *binary.Reader) ([]idl.Type, error) {
	magic, err := r.ReadBytes(len(Magic))
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(0).
			Detail("bad magic %q", magic).
			Build()
	}

	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if err := d.limit(r, nil, "type table size", n, d.limits.MaxTableSize); err != nil {
		return nil, err
	}

	raw := make([]rawEntry, n)
	for i := range raw {
		e, err := d.readEntry(r, int64(n))
		if err != nil {
			return nil, errors.WithPrefix(err, "table["+strconv.Itoa(i)+"]")
		}
		raw[i] = e
	}

	env := idl.NewEnv()
	refs := make([]*idl.RefType, n)
	for i := range refs {
		refs[i], _ = env.Declare("table" + strconv.Itoa(i))
	}
	b := &tableResolver{raw: raw, refs: refs, funcs: make(map[int64]*idl.FuncType)}
	for i := range raw {
		t, err := b.build(int64(i))
		if err != nil {
			return nil, errors.WithPrefix(err, "table["+strconv.Itoa(i)+"]")
		}
		if err := env.Define(refs[i], t); err != nil {
			return nil, err
		}
	}

	argc, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if err := d.limit(r, nil, "argument count", argc, d.limits.MaxArgs); err != nil {
		return nil, err
	}
	args := make([]idl.Type, argc)
	for i := range args {
		ref, err := d.readRef(r, int64(n))
		if err != nil {
			return nil, err
		}
		args[i] = b.typeOf(ref)
	}
	return args, nil
}

func (d *Decoder) readRef(r *binary.Reader, tableLen int64) (int64, error) {
	at := r.Position()
	ref, err := r.ReadS64()
	if err != nil {
		return 0, err
	}
	if ref >= tableLen {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Offset(at).
			Detail("type index %d out of range (table has %d entries)", ref, tableLen).
			Build()
	}
	if ref < 0 {
		if _, ok := opcodePrims[ref]; !ok {
			return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Offset(at).
				Detail("opcode %d is not a primitive type", ref).
				Build()
		}
	}
	return ref, nil
}

func (d *Decoder) readRefs(r *binary.Reader, tableLen int64) ([]int64, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if err := d.limit(r, nil, "function arity", n, d.limits.MaxFields); err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		if out[i], err = d.readRef(r, tableLen); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) readEntry(r *binary.Reader, tableLen int64) (rawEntry, error) {
	at := r.Position()
	op, err := r.ReadS64()
	if err != nil {
		return rawEntry{}, err
	}
	e := rawEntry{op: op}

	switch op {
	case opOpt, opVec:
		e.elem, err = d.readRef(r, tableLen)
		return e, err

	case opRecord, opVariant:
		n, err := r.ReadU64()
		if err != nil {
			return e, err
		}
		if err := d.limit(r, nil, "field count", n, d.limits.MaxFields); err != nil {
			return e, err
		}
		e.fields = make([]rawField, n)
		for i := range e.fields {
			fieldAt := r.Position()
			id, err := r.ReadU32()
			if err != nil {
				return e, err
			}
			if i > 0 && id <= e.fields[i-1].id {
				return e, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Offset(fieldAt).
					Detail("field id %d is not greater than %d", id, e.fields[i-1].id).
					Build()
			}
			ref, err := d.readRef(r, tableLen)
			if err != nil {
				return e, err
			}
			e.fields[i] = rawField{id: id, ref: ref}
		}
		return e, nil

	case opFunc:
		if e.args, err = d.readRefs(r, tableLen); err != nil {
			return e, err
		}
		if e.results, err = d.readRefs(r, tableLen); err != nil {
			return e, err
		}
		n, err := r.ReadU64()
		if err != nil {
			return e, err
		}
		if err := d.limit(r, nil, "annotation count", n, 3); err != nil {
			return e, err
		}
		for i := uint64(0); i < n; i++ {
			a, err := r.ReadByte()
			if err != nil {
				return e, err
			}
			switch a {
			case annQuery:
				e.modes |= idl.ModeQuery
			case annOneway:
				e.modes |= idl.ModeOneway
			case annCompositeQuery:
				e.modes |= idl.ModeCompositeQuery
			default:
				return e, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Offset(r.Position() - 1).
					Detail("unknown function annotation %d", a).
					Build()
			}
		}
		return e, nil

	case opService:
		n, err := r.ReadU64()
		if err != nil {
			return e, err
		}
		if err := d.limit(r, nil, "method count", n, d.limits.MaxFields); err != nil {
			return e, err
		}
		e.fields = make([]rawField, n)
		for i := range e.fields {
			nameAt := r.Position()
			name, err := d.readText(r, nil)
			if err != nil {
				return e, err
			}
			if i > 0 && name <= e.fields[i-1].name {
				return e, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Offset(nameAt).
					Detail("method %q is out of order", name).
					Build()
			}
			ref, err := d.readRef(r, tableLen)
			if err != nil {
				return e, err
			}
			e.fields[i] = rawField{name: name, ref: ref}
		}
		return e, nil
	}

	return e, errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Offset(at).
		Detail("opcode %d cannot appear in the type table", op).
		Build()
}

// tableResolver turns raw entries into descriptors over an arena of refs.
type tableResolver struct {
	funcs map[int64]*idl.FuncType
	raw   []rawEntry
	refs  []*idl.RefType
}

func (b *tableResolver) typeOf(ref int64) idl.Type {
	if ref < 0 {
		return opcodePrims[ref]
	}
	return b.refs[ref]
}

func (b *tableResolver) types(refs []int64) []idl.Type {
	out := make([]idl.Type, len(refs))
	for i, r := range refs {
		out[i] = b.typeOf(r)
	}
	return out
}

func (b *tableResolver) build(i int64) (idl.Type, error) {
	e := b.raw[i]
	switch e.op {
	case opOpt:
		return idl.Opt(b.typeOf(e.elem)), nil
	case opVec:
		return idl.Vec(b.typeOf(e.elem)), nil
	case opRecord, opVariant:
		fields := make([]idl.Field, len(e.fields))
		for j, f := range e.fields {
			fields[j] = idl.NumField(f.id, b.typeOf(f.ref))
		}
		var t idl.Type
		var err error
		if e.op == opRecord {
			t, err = idl.NewRecord(fields...)
		} else {
			t, err = idl.NewVariant(fields...)
		}
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed type table entry")
		}
		return t, nil
	case opFunc:
		return b.fn(i)
	case opService:
		methods := make([]idl.Method, len(e.fields))
		for j, f := range e.fields {
			if f.ref < 0 || b.raw[f.ref].op != opFunc {
				return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Detail("method %q does not reference a func type", f.name).
					Build()
			}
			ft, err := b.fn(f.ref)
			if err != nil {
				return nil, err
			}
			methods[j] = idl.Method{Name: f.name, Type: ft}
		}
		svc, err := idl.NewService(methods...)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed type table entry")
		}
		return svc, nil
	}
	return nil, errors.Internal(errors.PhaseDecode, "unexpected opcode %d", e.op)
}

func (b *tableResolver) fn(i int64) (*idl.FuncType, error) {
	if f, ok := b.funcs[i]; ok {
		return f, nil
	}
	e := b.raw[i]
	f, err := idl.NewFunc(b.types(e.args), b.types(e.results), e.modes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed type table entry")
	}
	b.funcs[i] = f
	return f, nil
}
