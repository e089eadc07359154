package idl

import (
	"errors"
	"testing"

	cerrors "github.com/wippyai/candid/errors"
)

func listEnv(t *testing.T) (*Env, *RefType) {
	t.Helper()
	env := NewEnv()
	list, err := env.Declare("List")
	if err != nil {
		t.Fatal(err)
	}
	node := MustRecord(NewField("head", Int), NewField("tail", list))
	if err := env.Define(list, Opt(node)); err != nil {
		t.Fatal(err)
	}
	return env, list
}

func TestEnvRecursiveDefinition(t *testing.T) {
	env, list := listEnv(t)
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := Resolve(list).(*OptType); !ok {
		t.Errorf("Resolve(List) = %T", Resolve(list))
	}
	if got, ok := env.Lookup("List"); !ok || got.Kind() != KindOpt {
		t.Errorf("Lookup(List) = %v, %v", got, ok)
	}
	if list.String() != "List" {
		t.Errorf("String() = %q", list.String())
	}
}

func TestEnvErrors(t *testing.T) {
	t.Run("declare twice", func(t *testing.T) {
		env := NewEnv()
		_, _ = env.Declare("A")
		if _, err := env.Declare("A"); !errors.Is(err, cerrors.ErrSchema) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("define twice", func(t *testing.T) {
		env := NewEnv()
		a, _ := env.Bind("A", Nat)
		if err := env.Define(a, Text); !errors.Is(err, cerrors.ErrSchema) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("undefined", func(t *testing.T) {
		env := NewEnv()
		_, _ = env.Declare("A")
		if err := env.Validate(); !errors.Is(err, cerrors.ErrSchema) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("pure cycle", func(t *testing.T) {
		env := NewEnv()
		a, _ := env.Declare("A")
		b, _ := env.Declare("B")
		_ = env.Define(a, b)
		_ = env.Define(b, a)
		if err := env.Validate(); !errors.Is(err, cerrors.ErrSchema) {
			t.Errorf("got %v", err)
		}
		if Resolve(a) != nil {
			t.Error("Resolve of a pure cycle should be nil")
		}
	})

	t.Run("foreign ref", func(t *testing.T) {
		a, _ := NewEnv().Declare("A")
		if err := NewEnv().Define(a, Nat); !errors.Is(err, cerrors.ErrSchema) {
			t.Errorf("got %v", err)
		}
	})
}

func TestEnvNames(t *testing.T) {
	env := NewEnv()
	_, _ = env.Bind("b", Nat)
	_, _ = env.Bind("a", Text)
	names := env.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v", names)
	}
}

func TestEqualAcrossEnvs(t *testing.T) {
	_, l1 := listEnv(t)
	_, l2 := listEnv(t)
	if !Equal(l1, l2) {
		t.Error("identically shaped recursive types should be equal")
	}
	if Equal(l1, Opt(Int)) {
		t.Error("List should not equal opt int")
	}
	if !Equal(NewTuple(Nat, Text), MustRecord(NumField(0, Nat), NumField(1, Text))) {
		t.Error("tuple should equal its numbered record")
	}
	if Equal(MustRecord(NewField("a", Nat)), MustRecord(NewField("b", Nat))) {
		t.Error("records with different labels should differ")
	}
}
