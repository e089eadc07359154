// Package hello is a small in-memory service with an address book, a
// profile store and a counter. The candid command serves it and the
// integration tests call it.
package hello

import (
	"context"
	"crypto/rand"
	_ "embed"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wippyai/candid/did"
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/principal"
	"github.com/wippyai/candid/server"
)

// Interface is the service description in Candid text.
//
//go:embed hello.did
var Interface string

var program = sync.OnceValue(func() *did.Program {
	return did.MustParse(Interface)
})

// Program returns the parsed interface.
func Program() *did.Program {
	return program()
}

// CanisterID is the principal the service reports for itself.
var CanisterID = principal.MustFromBytes([]byte{0, 0, 0, 0, 0, 0, 0, 1, 1, 1})

// Balance is the fixed cycle balance reported by balance and balance128.
const Balance = 3_000_000_000_000

type address struct {
	id   *big.Int
	name *string
}

// Service holds the state behind the hello interface.
type Service struct {
	addresses map[string]address
	profiles  map[string]idl.Record
	counter   *big.Int
	now       func() time.Time
	mu        sync.RWMutex
}

// New returns an empty service.
func New() *Service {
	return &Service{
		addresses: make(map[string]address),
		profiles:  make(map[string]idl.Record),
		counter:   new(big.Int),
		now:       time.Now,
	}
}

// NewDispatcher returns a dispatcher serving a fresh Service.
func NewDispatcher(opts ...server.Option) *server.Dispatcher {
	d := server.New(Program().Service, opts...)
	if err := New().Register(d); err != nil {
		panic(err)
	}
	return d
}

// Counter returns the current counter value.
func (s *Service) Counter() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.counter)
}

// Register installs every method on d.
func (s *Service) Register(d *server.Dispatcher) error {
	methods := map[string]server.HandlerFunc{
		"add_address": s.addAddress,
		"all_address": s.allAddress,
		"balance":     s.balance,
		"balance128":  s.balance,
		"get":         s.get,
		"getSelf":     s.getSelf,
		"get_address": s.getAddress,
		"greet":       s.greet,
		"increment":   s.increment,
		"m_caller":    s.caller,
		"m_id":        s.canisterID,
		"m_time":      s.clock,
		"raw_rand":    s.rawRand,
		"search":      s.search,
		"set":         s.set,
		"update":      s.update,
	}
	for name, fn := range methods {
		if err := d.Handle(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) greet(_ context.Context, args []any) ([]any, error) {
	return []any{"Hello, " + args[0].(string) + "!"}, nil
}

// addAddress inserts an address, or updates the name of an existing one.
// An absent name never clears a stored one.
func (s *Service) addAddress(_ context.Context, args []any) ([]any, error) {
	rec := args[0].(idl.Record)
	id, _ := rec.Get("id")
	nameVal, _ := rec.Get("name")

	a := address{id: new(big.Int).Set(id.(*big.Int))}
	if opt, ok := nameVal.(idl.Option); ok && opt.Valid {
		name := opt.Value.(string)
		a.name = &name
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.id.String()
	if old, ok := s.addresses[key]; ok && a.name == nil {
		a.name = old.name
	}
	s.addresses[key] = a
	return nil, nil
}

func (s *Service) getAddress(_ context.Context, args []any) ([]any, error) {
	id := args[0].(*big.Int)
	s.mu.RLock()
	a, ok := s.addresses[id.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseServe, "address", id.String())
	}
	return []any{a.record()}, nil
}

func (s *Service) allAddress(_ context.Context, _ []any) ([]any, error) {
	s.mu.RLock()
	list := make([]address, 0, len(s.addresses))
	for _, a := range s.addresses {
		list = append(list, a)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b address) int { return a.id.Cmp(b.id) })
	out := make([]any, len(list))
	for i, a := range list {
		out[i] = a.record()
	}
	return []any{out}, nil
}

func (a address) record() idl.Record {
	name := idl.None()
	if a.name != nil {
		name = idl.Some(*a.name)
	}
	return idl.RecordOf("id", new(big.Int).Set(a.id), "name", name)
}

func (s *Service) update(_ context.Context, args []any) ([]any, error) {
	rec := args[0].(idl.Record)
	name, _ := rec.Get("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[name.(string)] = rec
	return nil, nil
}

func (s *Service) get(_ context.Context, args []any) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[args[0].(string)]; ok {
		return []any{p}, nil
	}
	return []any{emptyProfile()}, nil
}

func (s *Service) getSelf(ctx context.Context, _ []any) ([]any, error) {
	return s.get(ctx, []any{principal.Anonymous.String()})
}

// search returns the first profile, by name order, whose name, description
// or keywords contain text.
func (s *Service) search(_ context.Context, args []any) ([]any, error) {
	text := args[0].(string)
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		p := s.profiles[n]
		desc, _ := p.Get("description")
		kw, _ := p.Get("keywords")
		if strings.Contains(n, text) || strings.Contains(desc.(string), text) || containsKeyword(kw, text) {
			return []any{idl.Some(p)}, nil
		}
	}
	return []any{idl.None()}, nil
}

func containsKeyword(v any, text string) bool {
	kws, _ := v.([]any)
	for _, k := range kws {
		if s, ok := k.(string); ok && strings.Contains(s, text) {
			return true
		}
	}
	return false
}

func emptyProfile() idl.Record {
	return idl.RecordOf("name", "", "description", "", "keywords", []any{})
}

func (s *Service) set(_ context.Context, args []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter.Set(args[0].(*big.Int))
	return nil, nil
}

func (s *Service) increment(_ context.Context, _ []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter.Add(s.counter, big.NewInt(1))
	return nil, nil
}

func (s *Service) balance(_ context.Context, _ []any) ([]any, error) {
	return []any{big.NewInt(Balance)}, nil
}

func (s *Service) caller(_ context.Context, _ []any) ([]any, error) {
	return []any{principal.Anonymous.String()}, nil
}

func (s *Service) canisterID(_ context.Context, _ []any) ([]any, error) {
	return []any{CanisterID.String()}, nil
}

func (s *Service) clock(_ context.Context, _ []any) ([]any, error) {
	return []any{new(big.Int).SetInt64(s.now().UnixNano())}, nil
}

func (s *Service) rawRand(_ context.Context, _ []any) ([]any, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return []any{idl.TupleOf(buf)}, nil
}
