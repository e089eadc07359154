package proxy

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/candid/codec"
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

// Proxy exposes one Stub per method of a service.
type Proxy struct {
	svc   *idl.ServiceType
	stubs map[string]*Stub
	list  []*Stub
}

// Bind builds a proxy for svc that sends calls through tr. A service whose
// types cannot be resolved is rejected with a schema error.
func Bind(svc *idl.ServiceType, tr transport.Transport, opts ...Option) (*Proxy, error) {
	if svc == nil {
		return nil, errors.Schema("nil service type")
	}
	if tr == nil {
		return nil, errors.InvalidInput(errors.PhaseSchema, "nil transport")
	}
	o := newOptions(opts)
	tr = transport.Chain(tr, o.middlewares...)
	dec := codec.NewDecoder(codec.WithLimits(o.limits))

	p := &Proxy{
		svc:   svc,
		stubs: make(map[string]*Stub, len(svc.Methods)),
		list:  make([]*Stub, 0, len(svc.Methods)),
	}
	for _, m := range svc.Methods {
		if err := checkResolvable(m.Type); err != nil {
			return nil, errors.WithPrefix(err, m.Name)
		}
		s := &Stub{
			name:    m.Name,
			typ:     m.Type,
			tr:      tr,
			decoder: dec,
			log:     o.log.With(zap.String("method", m.Name), zap.String("mode", m.Type.Modes.String())),
		}
		p.stubs[m.Name] = s
		p.list = append(p.list, s)
	}
	return p, nil
}

// Service returns the bound service type.
func (p *Proxy) Service() *idl.ServiceType {
	return p.svc
}

// Method returns the stub for name.
func (p *Proxy) Method(name string) (*Stub, bool) {
	s, ok := p.stubs[name]
	return s, ok
}

// Methods returns every stub, sorted by name.
func (p *Proxy) Methods() []*Stub {
	return append([]*Stub(nil), p.list...)
}

// Call invokes the method name.
func (p *Proxy) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	s, ok := p.stubs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCall, "method", name)
	}
	return s.Call(ctx, args...)
}

// Stub performs calls to one method.
type Stub struct {
	typ     *idl.FuncType
	tr      transport.Transport
	decoder *codec.Decoder
	log     *zap.Logger
	name    string
	calls   atomic.Uint64
}

// Name returns the method name.
func (s *Stub) Name() string { return s.name }

// Type returns the method signature.
func (s *Stub) Type() *idl.FuncType { return s.typ }

// NumCalls returns how many times Call has been invoked.
func (s *Stub) NumCalls() uint64 { return s.calls.Load() }

// Call encodes args, sends them with the method's mode and decodes the
// reply against the declared results. Oneway methods return nil results
// once the transport accepts the request.
//
// Transport errors are returned unmodified. The proxy never retries.
func (s *Stub) Call(ctx context.Context, args ...any) ([]any, error) {
	s.calls.Add(1)
	log := s.log.With(zap.String("call_id", uuid.NewString()))

	arg, err := codec.Encode(args, s.typ.Args)
	if err != nil {
		return nil, err
	}
	log.Debug("sending", zap.Int("bytes", len(arg)))

	reply, err := s.tr.Send(ctx, &transport.Request{Method: s.name, Arg: arg, Mode: s.typ.Modes})
	if err != nil {
		log.Debug("transport failed", zap.Error(err))
		return nil, err
	}
	if s.typ.Modes.IsOneway() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := s.decoder.Decode(reply, s.typ.Results)
	if err != nil {
		log.Debug("bad reply", zap.Int("bytes", len(reply)), zap.Error(err))
		return nil, err
	}
	log.Debug("done", zap.Int("bytes", len(reply)))
	return results, nil
}

// checkResolvable reports a schema error for any reference in ft that
// does not lead to a definition.
func checkResolvable(ft *idl.FuncType) error {
	seen := make(map[idl.Type]bool)
	var walk func(t idl.Type, path string) error
	walk = func(t idl.Type, path string) error {
		if t == nil {
			return errors.Schema("%s has no type", path)
		}
		if seen[t] {
			return nil
		}
		seen[t] = true
		rt := idl.Resolve(t)
		if rt == nil {
			return errors.Schema("%s refers to undefined type %s", path, t)
		}
		switch x := rt.(type) {
		case *idl.OptType:
			return walk(x.Elem, path)
		case *idl.VecType:
			return walk(x.Elem, path)
		case *idl.RecordType:
			for _, f := range x.Fields {
				if err := walk(f.Type, path+"."+f.Label()); err != nil {
					return err
				}
			}
		case *idl.VariantType:
			for _, f := range x.Cases {
				if err := walk(f.Type, path+"."+f.Label()); err != nil {
					return err
				}
			}
		case *idl.FuncType:
			return walkFunc(x, path, walk)
		case *idl.ServiceType:
			for _, m := range x.Methods {
				if err := walkFunc(m.Type, path+"."+m.Name, walk); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walkFunc(ft, "", walk)
}

func walkFunc(ft *idl.FuncType, path string, walk func(idl.Type, string) error) error {
	if ft == nil {
		return errors.Schema("%s has no function type", path)
	}
	if path != "" {
		path += "."
	}
	for i, t := range ft.Args {
		if err := walk(t, path+"arg["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	for i, t := range ft.Results {
		if err := walk(t, path+"result["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	return nil
}
