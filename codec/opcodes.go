package codec

import "github.com/wippyai/candid/idl"

// Magic prefixes every message.
const Magic = "DIDL"

// Type opcodes, written as SLEB128.
const (
	opNull      int64 = -1
	opBool      int64 = -2
	opNat       int64 = -3
	opInt       int64 = -4
	opNat8      int64 = -5
	opNat16     int64 = -6
	opNat32     int64 = -7
	opNat64     int64 = -8
	opInt8      int64 = -9
	opInt16     int64 = -10
	opInt32     int64 = -11
	opInt64     int64 = -12
	opFloat32   int64 = -13
	opFloat64   int64 = -14
	opText      int64 = -15
	opReserved  int64 = -16
	opEmpty     int64 = -17
	opOpt       int64 = -18
	opVec       int64 = -19
	opRecord    int64 = -20
	opVariant   int64 = -21
	opFunc      int64 = -22
	opService   int64 = -23
	opPrincipal int64 = -24
)

// Function annotation bytes.
const (
	annQuery          byte = 1
	annOneway         byte = 2
	annCompositeQuery byte = 3
)

var primOpcodes = map[idl.Kind]int64{
	idl.KindNull:      opNull,
	idl.KindBool:      opBool,
	idl.KindNat:       opNat,
	idl.KindInt:       opInt,
	idl.KindNat8:      opNat8,
	idl.KindNat16:     opNat16,
	idl.KindNat32:     opNat32,
	idl.KindNat64:     opNat64,
	idl.KindInt8:      opInt8,
	idl.KindInt16:     opInt16,
	idl.KindInt32:     opInt32,
	idl.KindInt64:     opInt64,
	idl.KindFloat32:   opFloat32,
	idl.KindFloat64:   opFloat64,
	idl.KindText:      opText,
	idl.KindReserved:  opReserved,
	idl.KindEmpty:     opEmpty,
	idl.KindPrincipal: opPrincipal,
}

var opcodePrims = func() map[int64]idl.PrimType {
	m := make(map[int64]idl.PrimType, len(primOpcodes))
	for k, op := range primOpcodes {
		m[op] = idl.PrimType(k)
	}
	return m
}()

func modeAnnotations(m idl.Mode) []byte {
	var out []byte
	if m&idl.ModeQuery != 0 {
		out = append(out, annQuery)
	}
	if m&idl.ModeOneway != 0 {
		out = append(out, annOneway)
	}
	if m&idl.ModeCompositeQuery != 0 {
		out = append(out, annCompositeQuery)
	}
	return out
}
