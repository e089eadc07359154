// Package loopback delivers requests to an in-process Handler.
//
// Argument and reply bytes are copied across the boundary so neither side
// can observe the other mutating a buffer, which matches what a network
// transport would give.
package loopback

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

// Transport calls a Handler directly.
type Transport struct {
	handler transport.Handler
	log     *zap.Logger
	wg      sync.WaitGroup
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger used for oneway failures.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// New returns a transport that serves every request with h.
func New(h transport.Handler, opts ...Option) *Transport {
	t := &Transport{handler: h, log: transport.Logger()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send implements transport.Transport. Oneway requests run in their own
// goroutine and Send returns immediately.
func (t *Transport) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := &transport.Request{
		Method: req.Method,
		Arg:    bytes.Clone(req.Arg),
		Mode:   req.Mode,
	}

	if req.Mode.IsOneway() {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if _, err := t.handler.Serve(context.WithoutCancel(ctx), in); err != nil {
				t.log.Debug("oneway call failed", zap.String("method", in.Method), zap.Error(err))
			}
		}()
		return nil, nil
	}

	out, err := t.handler.Serve(ctx, in)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(out), nil
}

// Wait blocks until every oneway request has been served.
func (t *Transport) Wait() {
	t.wg.Wait()
}
