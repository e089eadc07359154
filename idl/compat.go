package idl

import (
	"strconv"

	"github.com/wippyai/candid/errors"
)

// Compatible reports whether values encoded as wire can be decoded as
// expected. It returns nil on success and a decode-phase error naming the
// first incompatibility otherwise.
//
// Integer width mismatches are accepted here and range-checked per value
// during decoding. Variant cases the expected type does not declare are
// accepted here and rejected only if a value actually carries them.
func Compatible(wire, expected Type) error {
	c := compat{assumed: make(map[[2]Type]bool)}
	return c.sub(wire, expected, nil)
}

// CompatibleArgs checks positional type lists. Wire may be longer than
// expected; extra expected positions must be optional.
func CompatibleArgs(wire, expected []Type) error {
	c := compat{assumed: make(map[[2]Type]bool)}
	return c.seq(wire, expected, nil, "arg")
}

type compat struct {
	assumed map[[2]Type]bool
}

func incompatible(path []string, wire, expected Type, detail string, args ...any) error {
	b := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Path(path...).
		IDLType(expected.String())
	if wire != nil {
		b = b.GoType("wire " + wire.String())
	}
	return b.Detail(detail, args...).Build()
}

func (c *compat) seq(wire, expected []Type, path []string, label string) error {
	for i, et := range expected {
		p := push(path, label+"["+strconv.Itoa(i)+"]")
		if i >= len(wire) {
			if IsOptional(et) {
				continue
			}
			return errors.FieldMissing(errors.PhaseDecode, p, strconv.Itoa(i))
		}
		if err := c.sub(wire[i], et, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *compat) sub(wire, expected Type, path []string) error {
	key := [2]Type{wire, expected}
	if c.assumed[key] {
		return nil
	}
	_, wireIsRef := wire.(*RefType)
	_, expIsRef := expected.(*RefType)
	if wireIsRef || expIsRef {
		c.assumed[key] = true
	}

	w := Resolve(wire)
	e := Resolve(expected)
	if w == nil || e == nil {
		return errors.New(errors.PhaseDecode, errors.KindSchema).
			Path(path...).
			Detail("unresolvable type reference").
			Build()
	}

	if ep, ok := e.(PrimType); ok && ep == Reserved {
		return nil
	}
	if wp, ok := w.(PrimType); ok && wp == Empty {
		return nil
	}

	switch et := e.(type) {
	case PrimType:
		wp, ok := w.(PrimType)
		if !ok {
			return incompatible(path, w, e, "expected a primitive")
		}
		ek, wk := Kind(et), Kind(wp)
		switch {
		case ek == wk:
			return nil
		case ek.IsInteger() && wk.IsInteger():
			return nil
		case ek == KindFloat64 && wk == KindFloat32:
			return nil
		}
		return incompatible(path, w, e, "cannot decode %s as %s", wk, ek)

	case *OptType:
		switch wt := w.(type) {
		case PrimType:
			if wt == Null || wt == Reserved {
				return nil
			}
		case *OptType:
			return c.sub(wt.Elem, et.Elem, path)
		}
		// bare value decodes as some
		if IsOptional(et.Elem) {
			return incompatible(path, w, e, "ambiguous bare value for nested option")
		}
		return c.sub(wire, et.Elem, path)

	case *VecType:
		wt, ok := w.(*VecType)
		if !ok {
			return incompatible(path, w, e, "expected a vector")
		}
		return c.sub(wt.Elem, et.Elem, push(path, "[]"))

	case *RecordType:
		wt, ok := w.(*RecordType)
		if !ok {
			return incompatible(path, w, e, "expected a record")
		}
		for _, f := range et.Fields {
			fp := push(path, f.Label())
			wf, ok := wt.Field(f.ID)
			if !ok {
				if IsOptional(f.Type) {
					continue
				}
				return errors.FieldMissing(errors.PhaseDecode, fp, f.Label())
			}
			if err := c.sub(wf.Type, f.Type, fp); err != nil {
				return err
			}
		}
		return nil

	case *VariantType:
		wt, ok := w.(*VariantType)
		if !ok {
			return incompatible(path, w, e, "expected a variant")
		}
		for _, wc := range wt.Cases {
			ec, _, ok := et.Case(wc.ID)
			if !ok {
				continue
			}
			if err := c.sub(wc.Type, ec.Type, push(path, ec.Label())); err != nil {
				return err
			}
		}
		return nil

	case *FuncType:
		wt, ok := w.(*FuncType)
		if !ok {
			return incompatible(path, w, e, "expected a func")
		}
		return c.fn(wt, et, path)

	case *ServiceType:
		wt, ok := w.(*ServiceType)
		if !ok {
			return incompatible(path, w, e, "expected a service")
		}
		for _, m := range et.Methods {
			wf, ok := wt.Method(m.Name)
			if !ok {
				return errors.New(errors.PhaseDecode, errors.KindFieldMissing).
					Path(push(path, m.Name)...).
					Detail("service lacks method %q", m.Name).
					Build()
			}
			if err := c.fn(wf, m.Type, push(path, m.Name)); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Internal(errors.PhaseDecode, "unhandled type %T", e)
}

func (c *compat) fn(wire, expected *FuncType, path []string) error {
	if wire.Modes != expected.Modes {
		return incompatible(path, wire, expected, "mode %s does not match %s", wire.Modes, expected.Modes)
	}
	// arguments flow the other way
	if err := c.seq(expected.Args, wire.Args, path, "arg"); err != nil {
		return err
	}
	return c.seq(wire.Results, expected.Results, path, "result")
}
