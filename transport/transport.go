package transport

import (
	"context"

	"github.com/wippyai/candid/idl"
)

// Request is one encoded call.
type Request struct {
	Method string
	Arg    []byte
	Mode   idl.Mode
}

// Transport delivers an encoded request and returns the encoded reply.
// For oneway requests Send returns once the request is handed off, with a
// nil reply.
type Transport interface {
	Send(ctx context.Context, req *Request) ([]byte, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) ([]byte, error)

// Send calls f.
func (f Func) Send(ctx context.Context, req *Request) ([]byte, error) {
	return f(ctx, req)
}

// Handler serves requests on the receiving side of a transport.
type Handler interface {
	Serve(ctx context.Context, req *Request) ([]byte, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) ([]byte, error)

// Serve calls f.
func (f HandlerFunc) Serve(ctx context.Context, req *Request) ([]byte, error) {
	return f(ctx, req)
}

// Middleware decorates a Transport.
type Middleware func(Transport) Transport

// Chain wraps t with mws, the first middleware outermost.
func Chain(t Transport, mws ...Middleware) Transport {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// Error is a failure reported by the remote side, as opposed to a failure
// to deliver the request.
type Error struct {
	Method  string
	Message string
}

func (e *Error) Error() string {
	return "remote " + e.Method + ": " + e.Message
}
