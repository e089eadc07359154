package idl

import (
	"slices"

	"github.com/wippyai/candid/errors"
)

// TypeID is a stable index into an Env.
type TypeID uint32

type envEntry struct {
	typ  Type
	name string
}

// Env is an arena of named type definitions. Recursive types are built by
// declaring a name first and referring to it through its RefType.
//
// An Env is populated once and then only read; it is safe for concurrent
// readers after construction.
type Env struct {
	names   map[string]TypeID
	entries []envEntry
}

// NewEnv creates an empty Env.
func NewEnv() *Env {
	return &Env{names: make(map[string]TypeID)}
}

// RefType refers to a named definition in an Env.
type RefType struct {
	env *Env
	id  TypeID
}

func (*RefType) Kind() Kind { return KindRef }
func (*RefType) isType()    {}

// String returns the referenced name.
func (r *RefType) String() string { return r.env.entries[r.id].name }

// Name returns the referenced name.
func (r *RefType) Name() string { return r.env.entries[r.id].name }

// ID returns the arena index.
func (r *RefType) ID() TypeID { return r.id }

// Env returns the owning arena.
func (r *RefType) Env() *Env { return r.env }

// Definition returns the type bound to the ref, or nil when undefined.
func (r *RefType) Definition() Type { return r.env.entries[r.id].typ }

// Declare reserves name and returns a reference to it.
func (e *Env) Declare(name string) (*RefType, error) {
	if _, ok := e.names[name]; ok {
		return nil, errors.Schema("type %q declared twice", name)
	}
	id := TypeID(len(e.entries))
	e.entries = append(e.entries, envEntry{name: name})
	e.names[name] = id
	return &RefType{env: e, id: id}, nil
}

// Define binds a declared ref to its definition.
func (e *Env) Define(ref *RefType, t Type) error {
	if ref == nil || ref.env != e {
		return errors.Schema("reference does not belong to this environment")
	}
	if t == nil {
		return errors.Schema("type %q defined as nil", ref.Name())
	}
	if e.entries[ref.id].typ != nil {
		return errors.Schema("type %q defined twice", ref.Name())
	}
	e.entries[ref.id].typ = t
	return nil
}

// Bind declares and defines name in one step.
func (e *Env) Bind(name string, t Type) (*RefType, error) {
	ref, err := e.Declare(name)
	if err != nil {
		return nil, err
	}
	if err := e.Define(ref, t); err != nil {
		return nil, err
	}
	return ref, nil
}

// Ref returns the reference for a declared name.
func (e *Env) Ref(name string) (*RefType, bool) {
	id, ok := e.names[name]
	if !ok {
		return nil, false
	}
	return &RefType{env: e, id: id}, true
}

// Lookup returns the definition bound to name.
func (e *Env) Lookup(name string) (Type, bool) {
	id, ok := e.names[name]
	if !ok || e.entries[id].typ == nil {
		return nil, false
	}
	return e.entries[id].typ, true
}

// Names returns all declared names in sorted order.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, ent.name)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of declared names.
func (e *Env) Len() int {
	return len(e.entries)
}

// Validate reports undefined names and definitions that are pure
// reference cycles (type A = B; type B = A).
func (e *Env) Validate() error {
	for id, ent := range e.entries {
		if ent.typ == nil {
			return errors.Schema("type %q is declared but never defined", ent.name)
		}
		seen := map[TypeID]bool{TypeID(id): true}
		t := ent.typ
		for {
			r, ok := t.(*RefType)
			if !ok {
				break
			}
			if seen[r.id] {
				return errors.Schema("type %q is a cycle of references with no structure", ent.name)
			}
			seen[r.id] = true
			t = r.Definition()
			if t == nil {
				return errors.Schema("type %q refers to undefined %q", ent.name, r.Name())
			}
		}
	}
	return nil
}

// Resolve follows references until a non-reference type is reached.
// It returns nil for undefined or cyclic references.
func Resolve(t Type) Type {
	for i := 0; ; i++ {
		r, ok := t.(*RefType)
		if !ok {
			return t
		}
		if i > len(r.env.entries) {
			return nil
		}
		t = r.Definition()
		if t == nil {
			return nil
		}
	}
}
