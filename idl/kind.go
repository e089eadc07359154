package idl

// Kind identifies the constructor of a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNat
	KindInt
	KindNat8
	KindNat16
	KindNat32
	KindNat64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindText
	KindReserved
	KindEmpty
	KindPrincipal
	KindOpt
	KindVec
	KindRecord
	KindVariant
	KindFunc
	KindService
	KindRef
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindNull:      "null",
	KindBool:      "bool",
	KindNat:       "nat",
	KindInt:       "int",
	KindNat8:      "nat8",
	KindNat16:     "nat16",
	KindNat32:     "nat32",
	KindNat64:     "nat64",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindText:      "text",
	KindReserved:  "reserved",
	KindEmpty:     "empty",
	KindPrincipal: "principal",
	KindOpt:       "opt",
	KindVec:       "vec",
	KindRecord:    "record",
	KindVariant:   "variant",
	KindFunc:      "func",
	KindService:   "service",
	KindRef:       "ref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// IsPrimitive reports whether k has no type parameters.
func (k Kind) IsPrimitive() bool {
	return k >= KindNull && k <= KindPrincipal
}

// IsInteger reports whether k is one of the nat or int kinds.
func (k Kind) IsInteger() bool {
	return k >= KindNat && k <= KindInt64
}

// IsUnsigned reports whether k is one of the nat kinds.
func (k Kind) IsUnsigned() bool {
	switch k {
	case KindNat, KindNat8, KindNat16, KindNat32, KindNat64:
		return true
	}
	return false
}

// Bits returns the width of a fixed-size numeric kind, or 0 for nat, int
// and non-numeric kinds.
func (k Kind) Bits() int {
	switch k {
	case KindNat8, KindInt8:
		return 8
	case KindNat16, KindInt16:
		return 16
	case KindNat32, KindInt32, KindFloat32:
		return 32
	case KindNat64, KindInt64, KindFloat64:
		return 64
	}
	return 0
}

// Mode is the set of call-mode annotations on a function type.
// The zero Mode is an update call.
type Mode uint8

const (
	ModeQuery Mode = 1 << iota
	ModeOneway
	ModeCompositeQuery
)

// IsQuery reports whether the call is side-effect-free.
func (m Mode) IsQuery() bool {
	return m&(ModeQuery|ModeCompositeQuery) != 0
}

// IsOneway reports whether the caller does not wait for a reply.
func (m Mode) IsOneway() bool {
	return m&ModeOneway != 0
}

// IsUpdate reports whether the call may mutate remote state.
func (m Mode) IsUpdate() bool {
	return !m.IsQuery()
}

func (m Mode) String() string {
	switch {
	case m&ModeCompositeQuery != 0:
		return "composite_query"
	case m&ModeQuery != 0:
		return "query"
	case m&ModeOneway != 0:
		return "oneway"
	}
	return "update"
}

// ParseMode converts a mode name back into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "update", "":
		return 0, true
	case "query":
		return ModeQuery, true
	case "oneway":
		return ModeOneway, true
	case "composite_query":
		return ModeCompositeQuery, true
	}
	return 0, false
}

// Hash computes the numeric id of a field or case label.
func Hash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*223 + uint32(name[i])
	}
	return h
}
