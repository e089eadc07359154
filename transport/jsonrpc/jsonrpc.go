// Package jsonrpc carries Candid calls over JSON-RPC 2.0 on HTTP.
//
// Every call is the JSON-RPC method "Canister.Call" whose params hold the
// Candid method name, the call mode and the argument bytes (base64 in
// JSON). The reply carries the result bytes the same way.
package jsonrpc

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

// RPCMethod is the JSON-RPC method every call is sent as.
const RPCMethod = "Canister.Call"

// CallArgs is the JSON-RPC params object.
type CallArgs struct {
	Method string `json:"method"`
	Mode   string `json:"mode"`
	Arg    []byte `json:"arg"`
}

// CallReply is the JSON-RPC result object.
type CallReply struct {
	Result []byte `json:"result"`
}

const (
	defaultRetries = 3
	defaultBackoff = 100 * time.Millisecond
	defaultTimeout = 30 * time.Second
)

// Option configures a Client or Server.
type Option func(*options)

type options struct {
	log     *zap.Logger
	client  *http.Client
	retries int
	backoff time.Duration
}

// WithLogger sets the logger. The default is transport.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRetries sets how many times a query call is retried after a
// transient failure. Update calls are never retried.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

// WithBackoff sets the wait before the first retry. It doubles on each
// further attempt.
func WithBackoff(d time.Duration) Option {
	return func(o *options) { o.backoff = d }
}

func newOptions(opts []Option) options {
	o := options{retries: defaultRetries, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = transport.Logger()
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: defaultTimeout}
	}
	return o
}
