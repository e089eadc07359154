package idl

import (
	"fmt"

	"github.com/wippyai/candid/principal"
)

// Option is the value of an opt type.
type Option struct {
	Value any
	Valid bool
}

// Some returns a present option.
func Some(v any) Option { return Option{Value: v, Valid: true} }

// None returns an absent option.
func None() Option { return Option{} }

// Record is the value of a record or tuple, keyed by field id.
type Record map[uint32]any

// RecordOf builds a record from alternating label, value pairs.
func RecordOf(kv ...any) Record {
	if len(kv)%2 != 0 {
		panic("idl.RecordOf: odd number of arguments")
	}
	r := make(Record, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("idl.RecordOf: label %v is not a string", kv[i]))
		}
		r[Hash(name)] = kv[i+1]
	}
	return r
}

// TupleOf builds a record whose fields are numbered by position.
func TupleOf(vals ...any) Record {
	r := make(Record, len(vals))
	for i, v := range vals {
		r[uint32(i)] = v
	}
	return r
}

// Get returns the value of the field labelled name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r[Hash(name)]
	return v, ok
}

// Set assigns the field labelled name.
func (r Record) Set(name string, v any) {
	r[Hash(name)] = v
}

// Variant is the value of a variant type.
type Variant struct {
	Value any
	Tag   uint32
}

// Case builds a variant value for the case labelled name.
func Case(name string, v any) Variant {
	return Variant{Tag: Hash(name), Value: v}
}

// UnknownCase is produced when an open variant receives a case it does
// not declare. Raw holds the payload bytes exactly as received and Type
// describes them.
type UnknownCase struct {
	Type Type
	Raw  []byte
	Tag  uint32
}

// FuncRef is the value of a func type: a method on a remote service.
type FuncRef struct {
	Method  string
	Service principal.Principal
}
