package codec

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/principal"
)

var valueOpts = cmp.Options{
	cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 }),
	cmp.Comparer(func(a, b principal.Principal) bool { return a.Equal(b) }),
}

func userType() *idl.RecordType {
	return idl.MustRecord(
		idl.NewField("id", idl.Nat32),
		idl.NewField("name", idl.Opt(idl.Text)),
	)
}

func TestEncodeKnownBytes(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		types  []idl.Type
		want   []byte
	}{
		{"empty", nil, nil, []byte("DIDL\x00\x00")},
		{"nat", []any{42}, []idl.Type{idl.Nat}, []byte("DIDL\x00\x01\x7d\x2a")},
		{"int negative", []any{-1}, []idl.Type{idl.Int}, []byte("DIDL\x00\x01\x7c\x7f")},
		{"bool", []any{true}, []idl.Type{idl.Bool}, []byte("DIDL\x00\x01\x7e\x01")},
		{"text", []any{"hi"}, []idl.Type{idl.Text}, []byte("DIDL\x00\x01\x71\x02hi")},
		{"nat16", []any{0x0102}, []idl.Type{idl.Nat16}, []byte("DIDL\x00\x01\x7a\x02\x01")},
		{"int32", []any{-2}, []idl.Type{idl.Int32}, []byte("DIDL\x00\x01\x75\xfe\xff\xff\xff")},
		{"null", []any{nil}, []idl.Type{idl.Null}, []byte("DIDL\x00\x01\x7f")},
		{"opt nat8", []any{idl.Some(5)}, []idl.Type{idl.Opt(idl.Nat8)}, []byte("DIDL\x01\x6e\x7b\x01\x00\x01\x05")},
		{"opt none", []any{idl.None()}, []idl.Type{idl.Opt(idl.Nat8)}, []byte("DIDL\x01\x6e\x7b\x01\x00\x00")},
		{"blob", []any{[]byte{0xca, 0xfe}}, []idl.Type{idl.Blob()}, []byte("DIDL\x01\x6d\x7b\x01\x00\x02\xca\xfe")},
		{"variant", []any{idl.Case("b", nil)}, []idl.Type{idl.MustVariant(idl.NewField("a", idl.Null), idl.NewField("b", idl.Null))},
			[]byte("DIDL\x01\x6b\x02\x61\x7f\x62\x7f\x01\x00\x01")},
		{"principal", []any{principal.Anonymous}, []idl.Type{idl.Principal}, []byte("DIDL\x00\x01\x68\x01\x01\x04")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.values, tt.types)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	env := idl.NewEnv()
	list, _ := env.Declare("List")
	_ = env.Define(list, idl.Opt(idl.MustRecord(idl.NewField("head", idl.Int), idl.NewField("tail", list))))

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	svc := idl.MustService(idl.Method{Name: "ping", Type: idl.MustFunc(nil, nil, idl.ModeQuery)})
	pingRef := idl.MustFunc([]idl.Type{idl.Text}, nil, idl.ModeOneway)

	tests := []struct {
		name string
		val  any
		typ  idl.Type
	}{
		{"nat huge", huge, idl.Nat},
		{"int negative huge", new(big.Int).Neg(huge), idl.Int},
		{"nat8", uint8(255), idl.Nat8},
		{"nat64", uint64(1 << 63), idl.Nat64},
		{"int8", int8(-128), idl.Int8},
		{"int64", int64(-1 << 62), idl.Int64},
		{"float32", float32(1.5), idl.Float32},
		{"float64", 3.25, idl.Float64},
		{"text unicode", "héllo, 世界", idl.Text},
		{"bool", false, idl.Bool},
		{"null", nil, idl.Null},
		{"principal", principal.MustFromBytes([]byte{1, 2, 3}), idl.Principal},
		{"blob", []byte{0, 1, 2}, idl.Blob()},
		{"vec text", []any{"a", "b"}, idl.Vec(idl.Text)},
		{"vec empty", []any{}, idl.Vec(idl.Nat16)},
		{"opt some", idl.Some("x"), idl.Opt(idl.Text)},
		{"opt opt", idl.Some(idl.None()), idl.Opt(idl.Opt(idl.Text))},
		{"record", idl.RecordOf("id", uint32(7), "name", idl.Some("Bob")), userType()},
		{"tuple", idl.TupleOf(big.NewInt(1), "x"), idl.NewTuple(idl.Nat, idl.Text)},
		{"variant payload", idl.Case("ok", big.NewInt(9)), idl.MustVariant(idl.NewField("ok", idl.Nat), idl.NewField("err", idl.Text))},
		{"recursive list", idl.Some(idl.RecordOf("head", big.NewInt(1), "tail",
			idl.Some(idl.RecordOf("head", big.NewInt(2), "tail", idl.None())))), list},
		{"service ref", principal.MustFromBytes([]byte{9}), svc},
		{"func ref", idl.FuncRef{Service: principal.MustFromBytes([]byte{9}), Method: "log"}, pingRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode([]any{tt.val}, []idl.Type{tt.typ})
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data, []idl.Type{tt.typ})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff([]any{tt.val}, got, valueOpts); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAliceScenario(t *testing.T) {
	types := []idl.Type{userType()}
	in := []any{idl.RecordOf("id", 1, "name", idl.Some("Alice"))}

	data, err := Encode(in, types)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data, types)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []any{idl.RecordOf("id", uint32(1), "name", idl.Some("Alice"))}
	if diff := cmp.Diff(want, got, valueOpts); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDeterminism(t *testing.T) {
	types := []idl.Type{userType(), idl.Vec(idl.Nat)}
	a := []any{idl.RecordOf("name", idl.Some("x"), "id", 3), []any{1, 2, 3}}
	b := []any{map[string]any{"id": uint32(3), "name": idl.Some("x")}, []int{1, 2, 3}}

	first := MustEncode(a, types)
	for i := 0; i < 10; i++ {
		if again := MustEncode(a, types); !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs: %x vs %x", i, first, again)
		}
	}
	if other := MustEncode(b, types); !bytes.Equal(first, other) {
		t.Errorf("equal values in different Go shapes encode differently: %x vs %x", first, other)
	}
}

func TestTypeTableDedup(t *testing.T) {
	data := MustEncode(
		[]any{idl.RecordOf("id", 1), idl.RecordOf("id", 2)},
		[]idl.Type{userType(), userType()},
	)
	// opt text + record, shared by both arguments
	if data[4] != 2 {
		t.Errorf("table size = %d, want 2", data[4])
	}
}

func TestRecordExtension(t *testing.T) {
	wide := idl.MustRecord(
		idl.NewField("id", idl.Nat32),
		idl.NewField("name", idl.Opt(idl.Text)),
		idl.NewField("email", idl.Text),
	)
	data := MustEncode([]any{idl.RecordOf("id", 1, "name", idl.Some("A"), "email", "a@example.com")}, []idl.Type{wide})

	got, err := Decode(data, []idl.Type{userType()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []any{idl.RecordOf("id", uint32(1), "name", idl.Some("A"))}
	if diff := cmp.Diff(want, got, valueOpts); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestAbsentOptionalField(t *testing.T) {
	narrow := idl.MustRecord(idl.NewField("id", idl.Nat32))
	data := MustEncode([]any{idl.RecordOf("id", 1)}, []idl.Type{narrow})

	got, err := Decode(data, []idl.Type{userType()})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rec := got[0].(idl.Record)
	if name, _ := rec.Get("name"); name != idl.None() {
		t.Errorf("name = %v, want none", name)
	}
}

func TestMissingRequiredField(t *testing.T) {
	narrow := idl.MustRecord(idl.NewField("id", idl.Nat32))
	required := idl.MustRecord(idl.NewField("id", idl.Nat32), idl.NewField("name", idl.Text))
	data := MustEncode([]any{idl.RecordOf("id", 1)}, []idl.Type{narrow})

	vals, err := Decode(data, []idl.Type{required})
	if !errors.Is(err, cerrors.ErrMissingField) {
		t.Fatalf("got %v, want missing field", err)
	}
	if vals != nil {
		t.Errorf("partial values returned: %v", vals)
	}
}

func TestTruncation(t *testing.T) {
	data := MustEncode([]any{"hello"}, []idl.Type{idl.Text})
	if len(data) != 13 {
		t.Fatalf("len = %d, want 13", len(data))
	}

	_, err := Decode(data[:10], []idl.Type{idl.Text})
	if !errors.Is(err, cerrors.ErrUnexpectedEOF) {
		t.Fatalf("got %v, want unexpected eof", err)
	}
	var e *cerrors.Error
	if !errors.As(err, &e) || e.Offset != 8 {
		t.Errorf("offset = %d, want 8", e.Offset)
	}

	_, again := Decode(data[:10], []idl.Type{idl.Text})
	if again.Error() != err.Error() {
		t.Errorf("non-deterministic error: %v vs %v", err, again)
	}
}

func TestEveryPrefixFails(t *testing.T) {
	env := idl.NewEnv()
	list, _ := env.Declare("List")
	_ = env.Define(list, idl.Opt(idl.MustRecord(idl.NewField("head", idl.Int), idl.NewField("tail", list))))

	types := []idl.Type{userType(), list, idl.Vec(idl.Text)}
	data := MustEncode([]any{
		idl.RecordOf("id", 1, "name", idl.Some("Alice")),
		idl.Some(idl.RecordOf("head", -5, "tail", idl.None())),
		[]any{"x", "yz"},
	}, types)

	for n := 0; n < len(data); n++ {
		if _, err := Decode(data[:n], types); err == nil {
			t.Errorf("prefix of %d bytes decoded successfully", n)
		}
	}
}

func TestUnknownVariant(t *testing.T) {
	wire := idl.MustVariant(idl.NewField("a", idl.Null), idl.NewField("b", idl.Nat8))
	closed := idl.MustVariant(idl.NewField("a", idl.Null))
	open, _ := idl.NewOpenVariant(idl.NewField("a", idl.Null))

	data := MustEncode([]any{idl.Case("b", 7)}, []idl.Type{wire})

	if _, err := Decode(data, []idl.Type{closed}); !errors.Is(err, cerrors.ErrUnknownVariant) {
		t.Errorf("closed: got %v, want unknown variant", err)
	}

	got, err := Decode(data, []idl.Type{open})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	uc, ok := got[0].(idl.UnknownCase)
	if !ok {
		t.Fatalf("open: got %T, want UnknownCase", got[0])
	}
	if uc.Tag != idl.Hash("b") || !bytes.Equal(uc.Raw, []byte{7}) || uc.Type.String() != "nat8" {
		t.Errorf("UnknownCase = %+v", uc)
	}

	// a known case decodes normally against the narrower closed type
	known := MustEncode([]any{idl.Case("a", nil)}, []idl.Type{wire})
	if _, err := Decode(known, []idl.Type{closed}); err != nil {
		t.Errorf("known case: %v", err)
	}
}

func TestIntegerConversion(t *testing.T) {
	data := MustEncode([]any{200}, []idl.Type{idl.Nat8})
	got, err := Decode(data, []idl.Type{idl.Nat64})
	if err != nil || got[0] != uint64(200) {
		t.Errorf("widen: got %v, %v", got, err)
	}

	data = MustEncode([]any{300}, []idl.Type{idl.Nat})
	if _, err := Decode(data, []idl.Type{idl.Nat8}); !errors.Is(err, cerrors.ErrRangeOverflow) {
		t.Errorf("narrow: got %v, want overflow", err)
	}

	data = MustEncode([]any{-1}, []idl.Type{idl.Int})
	if _, err := Decode(data, []idl.Type{idl.Nat}); !errors.Is(err, cerrors.ErrRangeOverflow) {
		t.Errorf("negative into nat: got %v, want overflow", err)
	}

	data = MustEncode([]any{float32(0.5)}, []idl.Type{idl.Float32})
	got, err = Decode(data, []idl.Type{idl.Float64})
	if err != nil || got[0] != 0.5 {
		t.Errorf("float widen: got %v, %v", got, err)
	}
}

func TestArgumentCounts(t *testing.T) {
	data := MustEncode([]any{"a", 1}, []idl.Type{idl.Text, idl.Nat})

	got, err := Decode(data, []idl.Type{idl.Text})
	if err != nil || len(got) != 1 || got[0] != "a" {
		t.Errorf("extra wire value: got %v, %v", got, err)
	}

	_, err = Decode(data, []idl.Type{idl.Text, idl.Nat, idl.Nat})
	if !errors.Is(err, cerrors.ErrUnexpectedEOF) {
		t.Fatalf("excess expected: got %v", err)
	}
	var e *cerrors.Error
	if errors.As(err, &e) && e.Offset != len(data) {
		t.Errorf("offset = %d, want %d", e.Offset, len(data))
	}

	trailing := append(append([]byte(nil), data...), 0xff, 0xff)
	if _, err := Decode(trailing, []idl.Type{idl.Text, idl.Nat}); err != nil {
		t.Errorf("trailing bytes: %v", err)
	}
}

func TestEncodeRejectsMismatch(t *testing.T) {
	_, err := Encode([]any{idl.RecordOf("id", "one")}, []idl.Type{userType()})
	if !errors.Is(err, cerrors.ErrTypeMismatch) {
		t.Fatalf("got %v", err)
	}
	var e *cerrors.Error
	if errors.As(err, &e) && (len(e.Path) != 2 || e.Path[0] != "arg[0]" || e.Path[1] != "id") {
		t.Errorf("path = %v", e.Path)
	}

	if _, err := Encode([]any{1, 2}, []idl.Type{idl.Nat}); !errors.Is(err, cerrors.ErrTypeMismatch) {
		t.Errorf("count mismatch: got %v", err)
	}
}

func TestMalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind cerrors.Kind
	}{
		{"bad magic", []byte("DIDX\x00\x00"), cerrors.KindInvalidData},
		{"short magic", []byte("DI"), cerrors.KindUnexpectedEOF},
		{"index out of range", []byte("DIDL\x00\x01\x05"), cerrors.KindInvalidData},
		{"primitive in table", []byte("DIDL\x01\x7d\x01\x00"), cerrors.KindInvalidData},
		{"unsorted fields", []byte("DIDL\x01\x6c\x02\x02\x7d\x01\x7d\x01\x00\x00\x00"), cerrors.KindInvalidData},
		{"bad bool", []byte("DIDL\x00\x01\x7e\x02"), cerrors.KindInvalidData},
		{"bad utf8", []byte("DIDL\x00\x01\x71\x01\xff"), cerrors.KindInvalidUTF8},
		{"variant index", []byte("DIDL\x01\x6b\x01\x00\x7f\x01\x00\x05"), cerrors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Inspect(tt.data)
			var e *cerrors.Error
			if !errors.As(err, &e) || e.Kind != tt.kind {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	d := NewDecoder(WithLimits(Limits{
		MaxTableSize: 10, MaxArgs: 10, MaxFields: 10,
		MaxVecLen: 3, MaxTextSize: 4, MaxDepth: 8,
		MaxValues: 100, MaxLEBSize: 16,
	}))

	vec := MustEncode([]any{[]any{1, 2, 3, 4}}, []idl.Type{idl.Vec(idl.Nat)})
	if _, err := d.Decode(vec, []idl.Type{idl.Vec(idl.Nat)}); err == nil {
		t.Error("vector over limit decoded")
	}

	text := MustEncode([]any{"hello"}, []idl.Type{idl.Text})
	if _, err := d.Decode(text, []idl.Type{idl.Text}); err == nil {
		t.Error("text over limit decoded")
	}

	// a vec of null costs no bytes per element
	nulls := []byte("DIDL\x01\x6d\x7f\x01\x00\xff\xff\xff\xff\x0f")
	if _, err := Decode(nulls, []idl.Type{idl.Vec(idl.Null)}); err == nil {
		t.Error("4G-element vec null decoded")
	}

	// 50 inner vectors of 1M nulls each fit in a few hundred bytes
	nested := []byte("DIDL\x02\x6d\x7f\x6d\x00\x01\x01\x32")
	nested = append(nested, bytes.Repeat([]byte{0x80, 0x80, 0x40}, 50)...)
	for _, typ := range []idl.Type{idl.Vec(idl.Vec(idl.Null)), idl.Reserved} {
		if _, err := Decode(nested, []idl.Type{typ}); !errors.Is(err, cerrors.ErrLimit) {
			t.Errorf("vec vec null as %s: got %v, want limit error", typ, err)
		}
	}

	wide := append([]byte("DIDL\x00\x01\x7d"), bytes.Repeat([]byte{0xff}, 20)...)
	wide = append(wide, 0x01)
	if _, err := d.Decode(wide, []idl.Type{idl.Nat}); !errors.Is(err, cerrors.ErrLimit) {
		t.Errorf("wide nat: got %v, want limit error", err)
	}
}

func TestOverflowMessageIsBounded(t *testing.T) {
	d := NewDecoder(WithLimits(Limits{
		MaxTableSize: 10, MaxArgs: 10, MaxFields: 10,
		MaxVecLen: 10, MaxTextSize: 10, MaxDepth: 8,
		MaxValues: 10, MaxLEBSize: 0,
	}))
	data := append([]byte("DIDL\x00\x01\x7d"), bytes.Repeat([]byte{0xff}, 50_000)...)
	data = append(data, 0x01)

	_, err := d.Decode(data, []idl.Type{idl.Nat8})
	if !errors.Is(err, cerrors.ErrRangeOverflow) {
		t.Fatalf("got %v, want overflow", err)
	}
	if n := len(err.Error()); n > 200 {
		t.Errorf("error message is %d bytes long", n)
	}
}

func TestNamedTypesEncodeLikeInline(t *testing.T) {
	env := idl.NewEnv()
	profile, _ := env.Bind("Profile", idl.MustRecord(idl.NewField("name", idl.Opt(idl.Text))))
	point, _ := env.Bind("Point", idl.NewTuple(idl.Int32, idl.Int32))
	shape, _ := env.Bind("Shape", idl.MustRecord(idl.NewField("at", point), idl.NewField("tags", idl.Vec(idl.Text))))

	tests := []struct {
		name   string
		named  idl.Type
		inline idl.Type
		val    any
	}{
		{"record", profile, idl.MustRecord(idl.NewField("name", idl.Opt(idl.Text))), idl.RecordOf("name", idl.Some("a"))},
		{"nested refs", shape,
			idl.MustRecord(idl.NewField("at", idl.NewTuple(idl.Int32, idl.Int32)), idl.NewField("tags", idl.Vec(idl.Text))),
			idl.RecordOf("at", idl.TupleOf(int32(1), int32(2)), "tags", []any{"x"})},
		{"vec of ref", idl.Vec(point), idl.Vec(idl.NewTuple(idl.Int32, idl.Int32)), []any{idl.TupleOf(int32(3), int32(4))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !idl.Equal(tt.named, tt.inline) {
				t.Fatal("types are not equal")
			}
			a := MustEncode([]any{tt.val}, []idl.Type{tt.named})
			b := MustEncode([]any{tt.val}, []idl.Type{tt.inline})
			if !bytes.Equal(a, b) {
				t.Errorf("named %x, inline %x", a, b)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	data := MustEncode([]any{idl.RecordOf("id", 1, "name", idl.None())}, []idl.Type{userType()})
	types, vals, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(types) != 1 || !idl.Equal(types[0], idl.MustRecord(idl.NumField(idl.Hash("id"), idl.Nat32), idl.NumField(idl.Hash("name"), idl.Opt(idl.Text)))) {
		t.Errorf("types = %v", types)
	}
	rec := vals[0].(idl.Record)
	if rec[idl.Hash("id")] != uint32(1) {
		t.Errorf("id = %v", rec[idl.Hash("id")])
	}
}

func TestConcurrentUse(t *testing.T) {
	types := []idl.Type{userType()}
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			in := []any{idl.RecordOf("id", uint32(i), "name", idl.Some("n"))}
			data, err := Encode(in, types)
			if err != nil {
				return err
			}
			out, err := Decode(data, types)
			if err != nil {
				return err
			}
			if diff := cmp.Diff(in, out, valueOpts); diff != "" {
				return errors.New(diff)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
