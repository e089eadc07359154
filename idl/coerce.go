package idl

import (
	"math"
	"math/big"
	"reflect"
)

// AsBigInt converts any Go integer (or *big.Int) to a *big.Int.
func AsBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return n, true
	case big.Int:
		return &n, true
	case int:
		return big.NewInt(int64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case uintptr:
		return new(big.Int).SetUint64(uint64(n)), true
	}
	return nil, false
}

var (
	bigZero = big.NewInt(0)
	limits  = map[Kind][2]*big.Int{
		KindNat8:  {bigZero, big.NewInt(math.MaxUint8)},
		KindNat16: {bigZero, big.NewInt(math.MaxUint16)},
		KindNat32: {bigZero, big.NewInt(math.MaxUint32)},
		KindNat64: {bigZero, new(big.Int).SetUint64(math.MaxUint64)},
		KindInt8:  {big.NewInt(math.MinInt8), big.NewInt(math.MaxInt8)},
		KindInt16: {big.NewInt(math.MinInt16), big.NewInt(math.MaxInt16)},
		KindInt32: {big.NewInt(math.MinInt32), big.NewInt(math.MaxInt32)},
		KindInt64: {big.NewInt(math.MinInt64), big.NewInt(math.MaxInt64)},
	}
)

// InRange reports whether n is representable in the integer kind k.
func InRange(n *big.Int, k Kind) bool {
	switch k {
	case KindInt:
		return true
	case KindNat:
		return n.Sign() >= 0
	}
	l, ok := limits[k]
	if !ok {
		return false
	}
	return n.Cmp(l[0]) >= 0 && n.Cmp(l[1]) <= 0
}

// NativeInt converts n, which must be in range for k, to the canonical
// Go value for k.
func NativeInt(n *big.Int, k Kind) any {
	switch k {
	case KindNat8:
		return uint8(n.Uint64())
	case KindNat16:
		return uint16(n.Uint64())
	case KindNat32:
		return uint32(n.Uint64())
	case KindNat64:
		return n.Uint64()
	case KindInt8:
		return int8(n.Int64())
	case KindInt16:
		return int16(n.Int64())
	case KindInt32:
		return int32(n.Int64())
	case KindInt64:
		return n.Int64()
	}
	return new(big.Int).Set(n)
}

// AsFloat converts a Go float to float64.
func AsFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// AsSlice returns the elements of any Go slice or array.
func AsSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// AsBytes returns v as a byte slice when it is one.
func AsBytes(v any) ([]byte, bool) {
	b, ok := v.([]byte)
	return b, ok
}

// AsRecord normalizes a record value to field-id keys. It accepts Record,
// map[uint32]any and map[string]any.
func AsRecord(v any) (Record, bool) {
	switch r := v.(type) {
	case Record:
		return r, true
	case map[uint32]any:
		return Record(r), true
	case map[string]any:
		out := make(Record, len(r))
		for k, val := range r {
			out[Hash(k)] = val
		}
		return out, true
	}
	return nil, false
}

// AsOption normalizes an opt value. nil is treated as none.
func AsOption(v any) (Option, bool) {
	switch o := v.(type) {
	case Option:
		return o, true
	case *Option:
		if o == nil {
			return Option{}, true
		}
		return *o, true
	case nil:
		return Option{}, true
	}
	return Option{}, false
}
