// Package server is the receiving side of a Candid service: it decodes
// requests against a service type, runs the registered implementation
// and encodes the results.
//
// A Dispatcher implements transport.Handler, so it can be served by any
// transport:
//
//	d := server.New(svc)
//	d.MustHandle("greet", func(ctx context.Context, args []any) ([]any, error) {
//		return []any{"Hello, " + args[0].(string) + "!"}, nil
//	})
//	tr := loopback.New(d)
package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/candid/codec"
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

// HandlerFunc implements one method. It receives decoded arguments and
// returns values matching the method's result types.
type HandlerFunc func(ctx context.Context, args []any) ([]any, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger. The default is Logger().
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithLimits sets the decoder safety limits.
func WithLimits(l codec.Limits) Option {
	return func(d *Dispatcher) { d.decoder = codec.NewDecoder(codec.WithLimits(l)) }
}

// Dispatcher routes requests to method implementations.
type Dispatcher struct {
	svc     *idl.ServiceType
	decoder *codec.Decoder
	log     *zap.Logger
	methods map[string]HandlerFunc
	mu      sync.RWMutex
}

// New returns a Dispatcher for svc with no methods implemented.
func New(svc *idl.ServiceType, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:     svc,
		decoder: codec.NewDecoder(),
		log:     Logger(),
		methods: make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Service returns the served service type.
func (d *Dispatcher) Service() *idl.ServiceType {
	return d.svc
}

// Handle registers fn as the implementation of method.
func (d *Dispatcher) Handle(method string, fn HandlerFunc) error {
	if _, ok := d.svc.Method(method); !ok {
		return errors.NotFound(errors.PhaseServe, "method", method)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[method] = fn
	return nil
}

// MustHandle is like Handle but panics on error.
func (d *Dispatcher) MustHandle(method string, fn HandlerFunc) {
	if err := d.Handle(method, fn); err != nil {
		panic(err)
	}
}

// Serve implements transport.Handler.
func (d *Dispatcher) Serve(ctx context.Context, req *transport.Request) ([]byte, error) {
	ft, ok := d.svc.Method(req.Method)
	if !ok {
		return nil, errors.NotFound(errors.PhaseServe, "method", req.Method)
	}
	d.mu.RLock()
	fn, ok := d.methods[req.Method]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.Rejected(req.Method, "method is not implemented")
	}

	if req.Mode.IsQuery() && ft.Modes.IsUpdate() {
		return nil, errors.Rejected(req.Method, "query call to an update method")
	}
	if req.Mode.IsOneway() != ft.Modes.IsOneway() {
		return nil, errors.Rejected(req.Method, "call mode "+req.Mode.String()+" does not match declared "+ft.Modes.String())
	}

	args, err := d.decoder.Decode(req.Arg, ft.Args)
	if err != nil {
		d.log.Debug("bad arguments", zap.String("method", req.Method), zap.Error(err))
		return nil, err
	}

	results, err := fn(ctx, args)
	if err != nil {
		d.log.Debug("method failed", zap.String("method", req.Method), zap.Error(err))
		return nil, err
	}
	if ft.Modes.IsOneway() {
		return nil, nil
	}

	out, err := codec.Encode(results, ft.Results)
	if err != nil {
		d.log.Error("bad results", zap.String("method", req.Method), zap.Error(err))
		return nil, err
	}
	d.log.Debug("served",
		zap.String("method", req.Method),
		zap.String("mode", req.Mode.String()),
		zap.Int("bytes", len(out)))
	return out, nil
}

var _ transport.Handler = (*Dispatcher)(nil)
