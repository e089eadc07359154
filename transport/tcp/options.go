package tcp

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

type options struct {
	log      *zap.Logger
	timeout  time.Duration
	maxFrame int
}

// Option configures a Client or Server.
type Option func(*options)

// WithLogger sets the logger. The default is transport.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTimeout bounds calls whose context has no deadline. Client only.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMaxFrameSize bounds the size of a received frame.
func WithMaxFrameSize(n int) Option {
	return func(o *options) { o.maxFrame = n }
}

func newOptions(opts []Option) options {
	o := options{maxFrame: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = transport.Logger()
	}
	return o
}
