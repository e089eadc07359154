package idl

// Equal reports whether a and b describe the same type. References are
// compared by their definitions, so two arenas defining the same recursive
// shape under different names are equal.
func Equal(a, b Type) bool {
	e := equality{assumed: make(map[[2]Type]bool)}
	return e.eq(a, b)
}

type equality struct {
	assumed map[[2]Type]bool
}

func (e *equality) eq(a, b Type) bool {
	key := [2]Type{a, b}
	if e.assumed[key] {
		return true
	}
	_, aRef := a.(*RefType)
	_, bRef := b.(*RefType)
	if aRef || bRef {
		e.assumed[key] = true
	}

	ra, rb := Resolve(a), Resolve(b)
	if ra == nil || rb == nil {
		return false
	}
	if ra.Kind() != rb.Kind() {
		return false
	}

	switch at := ra.(type) {
	case PrimType:
		return at == rb.(PrimType)
	case *OptType:
		return e.eq(at.Elem, rb.(*OptType).Elem)
	case *VecType:
		return e.eq(at.Elem, rb.(*VecType).Elem)
	case *RecordType:
		return e.fields(at.Fields, rb.(*RecordType).Fields)
	case *VariantType:
		bt := rb.(*VariantType)
		return at.Open == bt.Open && e.fields(at.Cases, bt.Cases)
	case *FuncType:
		return e.fn(at, rb.(*FuncType))
	case *ServiceType:
		bt := rb.(*ServiceType)
		if len(at.Methods) != len(bt.Methods) {
			return false
		}
		for i := range at.Methods {
			if at.Methods[i].Name != bt.Methods[i].Name || !e.fn(at.Methods[i].Type, bt.Methods[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

func (e *equality) fields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !e.eq(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

func (e *equality) fn(a, b *FuncType) bool {
	if a.Modes != b.Modes || len(a.Args) != len(b.Args) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Args {
		if !e.eq(a.Args[i], b.Args[i]) {
			return false
		}
	}
	for i := range a.Results {
		if !e.eq(a.Results[i], b.Results[i]) {
			return false
		}
	}
	return true
}
