package idl

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/principal"
)

// MaxDepth bounds value nesting during checking, encoding and decoding.
const MaxDepth = 512

// Check verifies that v structurally conforms to t. Records may carry
// extra fields; fields of opt, null or reserved type may be absent.
func Check(v any, t Type) error {
	c := checker{}
	return c.check(v, t, nil, 0)
}

// CheckArgs checks a value list against a type list, naming offending
// positions arg[i].
func CheckArgs(vals []any, types []Type) error {
	if len(vals) != len(types) {
		return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Detail("got %d value(s) for %d type(s)", len(vals), len(types)).
			Build()
	}
	c := checker{}
	for i := range vals {
		if err := c.check(vals[i], types[i], []string{argLabel(i)}, 0); err != nil {
			return err
		}
	}
	return nil
}

func argLabel(i int) string {
	return "arg[" + strconv.Itoa(i) + "]"
}

type checker struct{}

func mismatch(path []string, v any, t Type, detail string, args ...any) error {
	return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
		Path(path...).
		GoType(fmt.Sprintf("%T", v)).
		IDLType(t.String()).
		Value(v).
		Detail(detail, args...).
		Build()
}

func push(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

func (c *checker) check(v any, t Type, path []string, depth int) error {
	if depth > MaxDepth {
		return errors.Limit(errors.PhaseEncode, path, "nesting depth", depth, MaxDepth)
	}
	rt := Resolve(t)
	if rt == nil {
		return errors.New(errors.PhaseEncode, errors.KindSchema).
			Path(path...).
			Detail("unresolvable type %s", t).
			Build()
	}

	switch tt := rt.(type) {
	case PrimType:
		return checkPrim(v, tt, path)

	case *OptType:
		o, ok := AsOption(v)
		if !ok {
			return mismatch(path, v, tt, "expected idl.Option")
		}
		if !o.Valid {
			return nil
		}
		return c.check(o.Value, tt.Elem, path, depth+1)

	case *VecType:
		if IsBlob(tt) {
			if _, ok := AsBytes(v); ok {
				return nil
			}
		}
		elems, ok := AsSlice(v)
		if !ok {
			return mismatch(path, v, tt, "expected a slice")
		}
		for i, e := range elems {
			if err := c.check(e, tt.Elem, push(path, "["+strconv.Itoa(i)+"]"), depth+1); err != nil {
				return err
			}
		}
		return nil

	case *RecordType:
		rec, ok := AsRecord(v)
		if !ok {
			return mismatch(path, v, tt, "expected a record")
		}
		for _, f := range tt.Fields {
			fv, present := rec[f.ID]
			fp := push(path, f.Label())
			if !present {
				if IsOptional(f.Type) {
					continue
				}
				return mismatch(fp, v, f.Type, "required field %s is missing", f.Label())
			}
			if err := c.check(fv, f.Type, fp, depth+1); err != nil {
				return err
			}
		}
		return nil

	case *VariantType:
		switch vv := v.(type) {
		case Variant:
			f, _, ok := tt.Case(vv.Tag)
			if !ok {
				return mismatch(path, v, tt, "variant has no case with id %d", vv.Tag)
			}
			return c.check(vv.Value, f.Type, push(path, f.Label()), depth+1)
		case UnknownCase:
			return mismatch(path, v, tt, "unknown case %d cannot be encoded against a declared variant", vv.Tag)
		}
		return mismatch(path, v, tt, "expected idl.Variant")

	case *FuncType:
		if _, ok := v.(FuncRef); !ok {
			return mismatch(path, v, tt, "expected idl.FuncRef")
		}
		return nil

	case *ServiceType:
		if _, ok := v.(principal.Principal); !ok {
			return mismatch(path, v, tt, "expected principal.Principal")
		}
		return nil
	}
	return errors.Internal(errors.PhaseEncode, "unhandled type %T", rt)
}

func checkPrim(v any, p PrimType, path []string) error {
	k := Kind(p)
	switch {
	case k == KindReserved:
		return nil
	case k == KindNull:
		if v != nil {
			return mismatch(path, v, p, "expected nil")
		}
		return nil
	case k == KindEmpty:
		return mismatch(path, v, p, "empty has no values")
	case k == KindBool:
		if _, ok := v.(bool); !ok {
			return mismatch(path, v, p, "expected bool")
		}
		return nil
	case k.IsInteger():
		n, ok := AsBigInt(v)
		if !ok {
			return mismatch(path, v, p, "expected an integer")
		}
		if !InRange(n, k) {
			return mismatch(path, v, p, "value %s out of range", n)
		}
		return nil
	case k == KindFloat32:
		f, ok := AsFloat(v)
		if !ok {
			return mismatch(path, v, p, "expected a float")
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return mismatch(path, v, p, "value %g out of range", f)
		}
		return nil
	case k == KindFloat64:
		if _, ok := AsFloat(v); !ok {
			return mismatch(path, v, p, "expected a float")
		}
		return nil
	case k == KindText:
		s, ok := v.(string)
		if !ok {
			return mismatch(path, v, p, "expected string")
		}
		if !utf8.ValidString(s) {
			return errors.InvalidUTF8(errors.PhaseEncode, path, []byte(s))
		}
		return nil
	case k == KindPrincipal:
		if _, ok := v.(principal.Principal); !ok {
			return mismatch(path, v, p, "expected principal.Principal")
		}
		return nil
	}
	return errors.Internal(errors.PhaseEncode, "unhandled primitive %s", p)
}

// IsOptional reports whether a record field of type t may be absent.
func IsOptional(t Type) bool {
	switch rt := Resolve(t).(type) {
	case *OptType:
		return true
	case PrimType:
		return rt == Null || rt == Reserved
	}
	return false
}
