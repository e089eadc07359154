package idl

import (
	"math/big"
	"testing"

	"github.com/wippyai/candid/principal"
)

func TestFormat(t *testing.T) {
	user := MustRecord(NewField("id", Nat32), NewField("name", Opt(Text)))
	result := MustVariant(NewField("ok", Nat), NewField("none", Null))

	tests := []struct {
		name string
		val  any
		typ  Type
		want string
	}{
		{"nat", big.NewInt(42), Nat, "42"},
		{"text", "hi\n", Text, `"hi\n"`},
		{"bool", true, Bool, "true"},
		{"none", None(), Opt(Text), "null"},
		{"some", Some("x"), Opt(Text), `opt "x"`},
		{"record", RecordOf("id", uint32(1), "name", Some("Alice")), user, `record { id = 1; name = opt "Alice" }`},
		{"tuple", TupleOf(big.NewInt(1), "a"), NewTuple(Nat, Text), `record { 1; "a" }`},
		{"vec", []any{uint8(1), uint8(2)}, Vec(Nat16), "vec { 1; 2 }"},
		{"empty vec", []any{}, Vec(Nat), "vec {}"},
		{"blob", []byte{'a', 0}, Blob(), `blob "a\00"`},
		{"variant", Case("ok", big.NewInt(3)), result, "variant { ok = 3 }"},
		{"variant null", Case("none", nil), result, "variant { none }"},
		{"principal", principal.Anonymous, Principal, `principal "2vxsx-fae"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.val, tt.typ); got != tt.want {
				t.Errorf("Format() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatArgs(t *testing.T) {
	got := FormatArgs([]any{"a", big.NewInt(2)}, []Type{Text, Nat})
	if got != `("a", 2)` {
		t.Errorf("FormatArgs() = %s", got)
	}
}
