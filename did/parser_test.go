package did

import (
	"errors"
	"strings"
	"testing"

	cerrors "github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
)

const helloDid = `
// address book
type address = record {
  street : text;
  city : text;
  zip : nat32;
  country : text;
};
type node = record { head : nat; tail : list };
type list = opt node;
type result = variant { ok : nat; err : text; pending };
type callback = func (text) -> () oneway;

service : {
  greet : (name : text) -> (text) query;
  add_address : (address) -> ();
  get_address : (text) -> (opt address) query;
  all_address : () -> (vec address) composite_query;
  notify : callback;
  "weird name" : () -> ();
}
`

func TestParseService(t *testing.T) {
	prog, err := Parse(helloDid)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if prog.Service == nil {
		t.Fatal("no service")
	}

	tests := []struct {
		method  string
		args    int
		results int
		mode    idl.Mode
	}{
		{"greet", 1, 1, idl.ModeQuery},
		{"add_address", 1, 0, 0},
		{"get_address", 1, 1, idl.ModeQuery},
		{"all_address", 0, 1, idl.ModeCompositeQuery},
		{"notify", 1, 0, idl.ModeOneway},
		{"weird name", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ft, ok := prog.Service.Method(tt.method)
			if !ok {
				t.Fatalf("method %q missing", tt.method)
			}
			if len(ft.Args) != tt.args || len(ft.Results) != tt.results {
				t.Errorf("signature %s", ft.Signature())
			}
			if ft.Modes != tt.mode {
				t.Errorf("mode = %v, want %v", ft.Modes, tt.mode)
			}
		})
	}
}

func TestParseTypes(t *testing.T) {
	prog := MustParse(helloDid)

	addr, ok := prog.Type("address")
	if !ok {
		t.Fatal("address not declared")
	}
	rt, ok := idl.Resolve(addr).(*idl.RecordType)
	if !ok {
		t.Fatalf("address resolves to %T", idl.Resolve(addr))
	}
	if len(rt.Fields) != 4 {
		t.Fatalf("address has %d fields", len(rt.Fields))
	}
	if f, ok := rt.FieldByName("zip"); !ok || f.Type != idl.Nat32 {
		t.Errorf("zip = %+v", f)
	}

	res, _ := prog.Type("result")
	vt := idl.Resolve(res).(*idl.VariantType)
	c, _, ok := vt.Case(idl.Hash("pending"))
	if !ok || c.Type != idl.Null {
		t.Errorf("pending case = %+v, %v", c, ok)
	}

	// recursive through opt
	list, _ := prog.Type("list")
	opt := idl.Resolve(list).(*idl.OptType)
	node := idl.Resolve(opt.Elem).(*idl.RecordType)
	tail, _ := node.FieldByName("tail")
	if r, ok := tail.Type.(*idl.RefType); !ok || r.Name() != "list" {
		t.Errorf("tail = %v", tail.Type)
	}
}

func TestParseFieldForms(t *testing.T) {
	prog := MustParse(`
		type tup = record { text; nat; 5 : bool; bool };
		type v = variant { 3 : text; a };
	`)
	tup, _ := prog.Type("tup")
	rt := idl.Resolve(tup).(*idl.RecordType)
	want := []uint32{0, 1, 5, 6}
	if len(rt.Fields) != len(want) {
		t.Fatalf("fields = %v", rt.Fields)
	}
	for i, id := range want {
		if rt.Fields[i].ID != id {
			t.Errorf("field %d id = %d, want %d", i, rt.Fields[i].ID, id)
		}
	}

	v, _ := prog.Type("v")
	vt := idl.Resolve(v).(*idl.VariantType)
	if _, _, ok := vt.Case(3); !ok {
		t.Error("numeric case 3 missing")
	}
}

func TestParseServiceReference(t *testing.T) {
	prog := MustParse(`
		type api = service { ping : () -> () query };
		service counter : (nat) -> api
	`)
	if _, ok := prog.Service.Method("ping"); !ok {
		t.Error("ping missing")
	}
	if len(prog.Init) != 1 || prog.Init[0] != idl.Nat {
		t.Errorf("Init = %v", prog.Init)
	}
}

func TestParseNoService(t *testing.T) {
	prog := MustParse(`type t = nat;`)
	if prog.Service != nil {
		t.Error("unexpected service")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined type", `type a = b;`, "undefined type"},
		{"duplicate type", `type a = nat; type a = int;`, "defined twice"},
		{"import", `import "x.did";`, "import"},
		{"two services", `service : {}; service : {};`, "more than one"},
		{"pure cycle", `type a = b; type b = a;`, "cycle"},
		{"duplicate field", `type r = record { a : nat; a : text };`, "duplicate"},
		{"oneway with results", `service : { f : () -> (nat) oneway }`, "oneway"},
		{"missing arrow", `service : { f : () (nat) }`, "->"},
		{"method not func", `type t = nat; service : { f : t }`, "not a function type"},
		{"method names enclosing type", `type s = service { f : s }; service : s`, "cycle"},
		{"unbalanced", `type r = record { a : nat;`, "unbalanced"},
		{"stray token", `nat;`, "top level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			var ce *cerrors.Error
			if !errors.As(err, &ce) {
				t.Errorf("error %T is not structured", err)
			}
		})
	}
}
