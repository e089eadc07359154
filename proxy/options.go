package proxy

import (
	"go.uber.org/zap"

	"github.com/wippyai/candid/codec"
	"github.com/wippyai/candid/transport"
)

type options struct {
	log         *zap.Logger
	limits      codec.Limits
	middlewares []transport.Middleware
}

// Option configures Bind.
type Option func(*options)

// WithLogger sets the logger for calls made through the proxy.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLimits sets the decoder safety limits for replies.
func WithLimits(l codec.Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithMiddleware wraps the transport, first middleware outermost.
func WithMiddleware(mws ...transport.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

func newOptions(opts []Option) options {
	o := options{limits: codec.DefaultLimits}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}
	return o
}
