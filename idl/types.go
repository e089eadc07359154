package idl

import (
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/candid/errors"
)

// Type is a sealed interface for all IDL type descriptors.
// Descriptors are immutable once constructed.
type Type interface {
	Kind() Kind
	String() string
	isType()
}

// PrimType is a primitive type.
type PrimType Kind

const (
	Null      = PrimType(KindNull)
	Bool      = PrimType(KindBool)
	Nat       = PrimType(KindNat)
	Int       = PrimType(KindInt)
	Nat8      = PrimType(KindNat8)
	Nat16     = PrimType(KindNat16)
	Nat32     = PrimType(KindNat32)
	Nat64     = PrimType(KindNat64)
	Int8      = PrimType(KindInt8)
	Int16     = PrimType(KindInt16)
	Int32     = PrimType(KindInt32)
	Int64     = PrimType(KindInt64)
	Float32   = PrimType(KindFloat32)
	Float64   = PrimType(KindFloat64)
	Text      = PrimType(KindText)
	Reserved  = PrimType(KindReserved)
	Empty     = PrimType(KindEmpty)
	Principal = PrimType(KindPrincipal)
)

func (p PrimType) Kind() Kind     { return Kind(p) }
func (p PrimType) String() string { return Kind(p).String() }
func (PrimType) isType()          {}

// VecType is a homogeneous sequence. vec nat8 is also known as blob.
type VecType struct {
	Elem Type
}

// Vec returns the vector type of elem.
func Vec(elem Type) *VecType { return &VecType{Elem: elem} }

// Blob returns vec nat8.
func Blob() *VecType { return &VecType{Elem: Nat8} }

func (*VecType) Kind() Kind { return KindVec }
func (*VecType) isType()    {}

func (v *VecType) String() string {
	if IsBlob(v) {
		return "blob"
	}
	return "vec " + v.Elem.String()
}

// IsBlob reports whether t is vec nat8.
func IsBlob(t Type) bool {
	v, ok := t.(*VecType)
	if !ok {
		return false
	}
	p, ok := Resolve(v.Elem).(PrimType)
	return ok && p == Nat8
}

// OptType holds zero or one value of Elem.
type OptType struct {
	Elem Type
}

// Opt returns the option type of elem.
func Opt(elem Type) *OptType { return &OptType{Elem: elem} }

func (*OptType) Kind() Kind       { return KindOpt }
func (o *OptType) String() string { return "opt " + o.Elem.String() }
func (*OptType) isType()          {}

// Field is a record field or variant case.
type Field struct {
	Type Type
	Name string // empty for numeric labels
	ID   uint32
}

// NewField returns a field labelled by name.
func NewField(name string, t Type) Field {
	return Field{ID: Hash(name), Name: name, Type: t}
}

// NumField returns a field labelled by a numeric id.
func NumField(id uint32, t Type) Field {
	return Field{ID: id, Type: t}
}

// Label returns the field's name, or its id in decimal.
func (f Field) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return strconv.FormatUint(uint64(f.ID), 10)
}

func sortFields(kind string, fields []Field) ([]Field, error) {
	out := slices.Clone(fields)
	slices.SortFunc(out, func(a, b Field) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	for i, f := range out {
		if f.Type == nil {
			return nil, errors.Schema("%s field %s has no type", kind, f.Label())
		}
		if i > 0 && out[i-1].ID == f.ID {
			return nil, errors.Schema("%s has duplicate id %d (%s, %s)", kind, f.ID, out[i-1].Label(), f.Label())
		}
	}
	return out, nil
}

func findField(fields []Field, id uint32) (Field, int, bool) {
	i, ok := slices.BinarySearchFunc(fields, id, func(f Field, id uint32) int {
		switch {
		case f.ID < id:
			return -1
		case f.ID > id:
			return 1
		}
		return 0
	})
	if !ok {
		return Field{}, -1, false
	}
	return fields[i], i, true
}

// RecordType is a set of fields sorted by ascending id.
type RecordType struct {
	Fields []Field
	tuple  bool
}

// NewRecord builds a record type. Duplicate ids are a schema error.
func NewRecord(fields ...Field) (*RecordType, error) {
	sorted, err := sortFields("record", fields)
	if err != nil {
		return nil, err
	}
	return &RecordType{Fields: sorted}, nil
}

// MustRecord is like NewRecord but panics on error.
func MustRecord(fields ...Field) *RecordType {
	r, err := NewRecord(fields...)
	if err != nil {
		panic(err)
	}
	return r
}

// NewTuple builds a record whose fields are numbered 0..n-1.
func NewTuple(elems ...Type) *RecordType {
	fields := make([]Field, len(elems))
	for i, t := range elems {
		fields[i] = NumField(uint32(i), t)
	}
	return &RecordType{Fields: fields, tuple: true}
}

// Field looks up a field by id.
func (r *RecordType) Field(id uint32) (Field, bool) {
	f, _, ok := findField(r.Fields, id)
	return f, ok
}

// FieldByName looks up a field by label.
func (r *RecordType) FieldByName(name string) (Field, bool) {
	return r.Field(Hash(name))
}

// IsTuple reports whether the fields are numbered 0..n-1.
func (r *RecordType) IsTuple() bool {
	if r.tuple {
		return true
	}
	if len(r.Fields) == 0 {
		return false
	}
	for i, f := range r.Fields {
		if f.ID != uint32(i) || f.Name != "" {
			return false
		}
	}
	return true
}

func (*RecordType) Kind() Kind { return KindRecord }
func (*RecordType) isType()    {}

func (r *RecordType) String() string {
	return "record " + formatFields(r.Fields, r.IsTuple(), false)
}

// VariantType holds exactly one of its cases. An Open variant accepts
// undeclared cases as UnknownCase values.
type VariantType struct {
	Cases []Field
	Open  bool
}

// NewVariant builds a closed variant type. Duplicate ids are a schema error.
func NewVariant(cases ...Field) (*VariantType, error) {
	sorted, err := sortFields("variant", cases)
	if err != nil {
		return nil, err
	}
	return &VariantType{Cases: sorted}, nil
}

// NewOpenVariant builds a variant that tolerates undeclared cases.
func NewOpenVariant(cases ...Field) (*VariantType, error) {
	v, err := NewVariant(cases...)
	if err != nil {
		return nil, err
	}
	v.Open = true
	return v, nil
}

// MustVariant is like NewVariant but panics on error.
func MustVariant(cases ...Field) *VariantType {
	v, err := NewVariant(cases...)
	if err != nil {
		panic(err)
	}
	return v
}

// Case looks up a case by id, returning its position in Cases.
func (v *VariantType) Case(id uint32) (Field, int, bool) {
	return findField(v.Cases, id)
}

func (*VariantType) Kind() Kind { return KindVariant }
func (*VariantType) isType()    {}

func (v *VariantType) String() string {
	return "variant " + formatFields(v.Cases, false, true)
}

func formatFields(fields []Field, tuple, variant bool) string {
	if len(fields) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{ ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		if tuple {
			b.WriteString(f.Type.String())
			continue
		}
		b.WriteString(formatLabel(f))
		if variant {
			if p, ok := f.Type.(PrimType); ok && p == Null {
				continue
			}
		}
		b.WriteString(" : ")
		b.WriteString(f.Type.String())
	}
	b.WriteString(" }")
	return b.String()
}

func formatLabel(f Field) string {
	if f.Name == "" {
		return strconv.FormatUint(uint64(f.ID), 10)
	}
	if isIdent(f.Name) && !isKeyword(f.Name) {
		return f.Name
	}
	return strconv.Quote(f.Name)
}

// FuncType is a function signature.
type FuncType struct {
	Args    []Type
	Results []Type
	Modes   Mode
}

// NewFunc builds a function type. Oneway functions must have no results
// and cannot also be queries.
func NewFunc(args, results []Type, modes Mode) (*FuncType, error) {
	if modes.IsOneway() && len(results) > 0 {
		return nil, errors.Schema("oneway function declares %d result(s)", len(results))
	}
	if modes.IsOneway() && modes.IsQuery() {
		return nil, errors.Schema("function cannot be both oneway and query")
	}
	if modes&ModeQuery != 0 && modes&ModeCompositeQuery != 0 {
		return nil, errors.Schema("function cannot be both query and composite_query")
	}
	for i, t := range args {
		if t == nil {
			return nil, errors.Schema("argument %d has no type", i)
		}
	}
	for i, t := range results {
		if t == nil {
			return nil, errors.Schema("result %d has no type", i)
		}
	}
	return &FuncType{Args: slices.Clone(args), Results: slices.Clone(results), Modes: modes}, nil
}

// MustFunc is like NewFunc but panics on error.
func MustFunc(args, results []Type, modes Mode) *FuncType {
	f, err := NewFunc(args, results, modes)
	if err != nil {
		panic(err)
	}
	return f
}

func (*FuncType) Kind() Kind { return KindFunc }
func (*FuncType) isType()    {}

func (f *FuncType) String() string {
	return "func " + f.Signature()
}

// Signature renders the function without the func keyword.
func (f *FuncType) Signature() string {
	var b strings.Builder
	writeTypeList(&b, f.Args)
	b.WriteString(" -> ")
	writeTypeList(&b, f.Results)
	if f.Modes != 0 {
		b.WriteByte(' ')
		b.WriteString(f.Modes.String())
	}
	return b.String()
}

// FormatTypes renders a parenthesized type list such as (nat, opt text).
func FormatTypes(ts []Type) string {
	var b strings.Builder
	writeTypeList(&b, ts)
	return b.String()
}

func writeTypeList(b *strings.Builder, ts []Type) {
	b.WriteByte('(')
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
}

// Method is a named service entry.
type Method struct {
	Type *FuncType
	Name string
}

// ServiceType is a set of methods sorted by name.
type ServiceType struct {
	Methods []Method
}

// NewService builds a service type. Duplicate names are a schema error.
func NewService(methods ...Method) (*ServiceType, error) {
	out := slices.Clone(methods)
	slices.SortFunc(out, func(a, b Method) int { return strings.Compare(a.Name, b.Name) })
	for i, m := range out {
		if m.Type == nil {
			return nil, errors.Schema("method %q has no type", m.Name)
		}
		if i > 0 && out[i-1].Name == m.Name {
			return nil, errors.Schema("duplicate method %q", m.Name)
		}
	}
	return &ServiceType{Methods: out}, nil
}

// MustService is like NewService but panics on error.
func MustService(methods ...Method) *ServiceType {
	s, err := NewService(methods...)
	if err != nil {
		panic(err)
	}
	return s
}

// Method looks up a method by name.
func (s *ServiceType) Method(name string) (*FuncType, bool) {
	i, ok := slices.BinarySearchFunc(s.Methods, name, func(m Method, n string) int {
		return strings.Compare(m.Name, n)
	})
	if !ok {
		return nil, false
	}
	return s.Methods[i].Type, true
}

func (*ServiceType) Kind() Kind { return KindService }
func (*ServiceType) isType()    {}

func (s *ServiceType) String() string {
	if len(s.Methods) == 0 {
		return "service {}"
	}
	var b strings.Builder
	b.WriteString("service { ")
	for i, m := range s.Methods {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(quoteName(m.Name))
		b.WriteString(" : ")
		b.WriteString(m.Type.Signature())
	}
	b.WriteString(" }")
	return b.String()
}

func quoteName(s string) string {
	if isIdent(s) && !isKeyword(s) {
		return s
	}
	return strconv.Quote(s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var keywords = map[string]bool{
	"blob": true, "bool": true, "empty": true, "float32": true, "float64": true,
	"func": true, "import": true, "int": true, "int8": true, "int16": true,
	"int32": true, "int64": true, "nat": true, "nat8": true, "nat16": true,
	"nat32": true, "nat64": true, "null": true, "oneway": true, "opt": true,
	"principal": true, "query": true, "composite_query": true, "record": true,
	"reserved": true, "service": true, "text": true, "type": true,
	"variant": true, "vec": true,
}

func isKeyword(s string) bool { return keywords[s] }

// PrimByName returns the primitive named s.
func PrimByName(s string) (PrimType, bool) {
	for k := KindNull; k <= KindPrincipal; k++ {
		if k.String() == s {
			return PrimType(k), true
		}
	}
	return 0, false
}
