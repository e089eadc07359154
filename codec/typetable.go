package codec

import (
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/binary"
)

type refKey struct {
	env *idl.Env
	id  idl.TypeID
}

// typeTable collects the composite types referenced by a message.
// Entries are appended children first. A recursive reference reserves its
// slot before its body is encoded so back edges can point at it; any other
// reference encodes exactly like its inline body.
type typeTable struct {
	entries [][]byte
	byBytes map[string]int64
	byRef   map[refKey]int64
	cyclic  map[refKey]bool
}

func newTypeTable() *typeTable {
	return &typeTable{
		byBytes: make(map[string]int64),
		byRef:   make(map[refKey]int64),
		cyclic:  make(map[refKey]bool),
	}
}

// recursive reports whether the definition of r reaches r again.
func (tt *typeTable) recursive(r *idl.RefType) bool {
	target := refKey{env: r.Env(), id: r.ID()}
	if v, ok := tt.cyclic[target]; ok {
		return v
	}
	seen := make(map[refKey]bool)
	var walk func(t idl.Type) bool
	walk = func(t idl.Type) bool {
		switch ct := t.(type) {
		case *idl.RefType:
			k := refKey{env: ct.Env(), id: ct.ID()}
			if k == target {
				return true
			}
			if seen[k] {
				return false
			}
			seen[k] = true
			return walk(ct.Definition())
		case *idl.OptType:
			return walk(ct.Elem)
		case *idl.VecType:
			return walk(ct.Elem)
		case *idl.RecordType:
			for _, f := range ct.Fields {
				if walk(f.Type) {
					return true
				}
			}
		case *idl.VariantType:
			for _, f := range ct.Cases {
				if walk(f.Type) {
					return true
				}
			}
		case *idl.FuncType:
			for _, a := range ct.Args {
				if walk(a) {
					return true
				}
			}
			for _, res := range ct.Results {
				if walk(res) {
					return true
				}
			}
		case *idl.ServiceType:
			for _, m := range ct.Methods {
				if walk(m.Type) {
					return true
				}
			}
		}
		return false
	}
	v := walk(r.Definition())
	tt.cyclic[target] = v
	return v
}

// lastRef returns the final reference of an alias chain, or nil if t is
// not a reference.
func lastRef(t idl.Type) *idl.RefType {
	var last *idl.RefType
	for i := 0; ; i++ {
		r, ok := t.(*idl.RefType)
		if !ok {
			return last
		}
		if i > r.Env().Len() {
			return nil
		}
		last = r
		t = r.Definition()
	}
}

// ref returns the SLEB128 type reference for t, adding table entries as
// needed.
func (tt *typeTable) ref(t idl.Type) (int64, error) {
	if r := lastRef(t); r != nil {
		body := r.Definition()
		if body == nil {
			return 0, errors.Schema("type %q is not defined", r.Name())
		}
		if p, ok := body.(idl.PrimType); ok {
			return primOpcodes[idl.Kind(p)], nil
		}
		if !tt.recursive(r) {
			return tt.ref(body)
		}
		key := refKey{env: r.Env(), id: r.ID()}
		if idx, ok := tt.byRef[key]; ok {
			return idx, nil
		}
		idx := int64(len(tt.entries))
		tt.entries = append(tt.entries, nil)
		tt.byRef[key] = idx
		entry, err := tt.entry(body)
		if err != nil {
			return 0, err
		}
		tt.entries[idx] = entry
		if _, ok := tt.byBytes[string(entry)]; !ok {
			tt.byBytes[string(entry)] = idx
		}
		return idx, nil
	}

	if _, ok := t.(*idl.RefType); ok {
		return 0, errors.Schema("unresolvable type reference %s", t)
	}
	if p, ok := t.(idl.PrimType); ok {
		op, ok := primOpcodes[idl.Kind(p)]
		if !ok {
			return 0, errors.Internal(errors.PhaseEncode, "no opcode for %s", p)
		}
		return op, nil
	}

	entry, err := tt.entry(t)
	if err != nil {
		return 0, err
	}
	if idx, ok := tt.byBytes[string(entry)]; ok {
		return idx, nil
	}
	idx := int64(len(tt.entries))
	tt.entries = append(tt.entries, entry)
	tt.byBytes[string(entry)] = idx
	return idx, nil
}

// entry encodes the table entry for a composite type.
func (tt *typeTable) entry(t idl.Type) ([]byte, error) {
	w := binary.NewWriter()
	switch ct := t.(type) {
	case *idl.OptType:
		elem, err := tt.ref(ct.Elem)
		if err != nil {
			return nil, err
		}
		w.WriteS64(opOpt)
		w.WriteS64(elem)

	case *idl.VecType:
		elem, err := tt.ref(ct.Elem)
		if err != nil {
			return nil, err
		}
		w.WriteS64(opVec)
		w.WriteS64(elem)

	case *idl.RecordType:
		if err := tt.fields(w, opRecord, ct.Fields); err != nil {
			return nil, err
		}

	case *idl.VariantType:
		if err := tt.fields(w, opVariant, ct.Cases); err != nil {
			return nil, err
		}

	case *idl.FuncType:
		args, err := tt.refs(ct.Args)
		if err != nil {
			return nil, err
		}
		results, err := tt.refs(ct.Results)
		if err != nil {
			return nil, err
		}
		w.WriteS64(opFunc)
		writeRefs(w, args)
		writeRefs(w, results)
		ann := modeAnnotations(ct.Modes)
		w.WriteU64(uint64(len(ann)))
		w.WriteBytes(ann)

	case *idl.ServiceType:
		refs := make([]int64, len(ct.Methods))
		for i, m := range ct.Methods {
			r, err := tt.ref(m.Type)
			if err != nil {
				return nil, err
			}
			refs[i] = r
		}
		w.WriteS64(opService)
		w.WriteU64(uint64(len(ct.Methods)))
		for i, m := range ct.Methods {
			w.WriteText(m.Name)
			w.WriteS64(refs[i])
		}

	default:
		return nil, errors.Internal(errors.PhaseEncode, "%T is not a composite type", t)
	}
	return w.Bytes(), nil
}

func (tt *typeTable) fields(w *binary.Writer, op int64, fields []idl.Field) error {
	refs := make([]int64, len(fields))
	for i, f := range fields {
		r, err := tt.ref(f.Type)
		if err != nil {
			return err
		}
		refs[i] = r
	}
	w.WriteS64(op)
	w.WriteU64(uint64(len(fields)))
	for i, f := range fields {
		w.WriteU32(f.ID)
		w.WriteS64(refs[i])
	}
	return nil
}

func (tt *typeTable) refs(ts []idl.Type) ([]int64, error) {
	out := make([]int64, len(ts))
	for i, t := range ts {
		r, err := tt.ref(t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func writeRefs(w *binary.Writer, refs []int64) {
	w.WriteU64(uint64(len(refs)))
	for _, r := range refs {
		w.WriteS64(r)
	}
}

// write emits the entry count followed by every entry.
func (tt *typeTable) write(w *binary.Writer) {
	w.WriteU64(uint64(len(tt.entries)))
	for _, e := range tt.entries {
		w.WriteBytes(e)
	}
}
