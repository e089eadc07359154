// Package cache memoizes replies to query calls.
//
// Queries do not change service state, so a reply can be reused for an
// identical request (same method and argument bytes) until it expires.
// Update and oneway calls always go to the wrapped transport.
package cache

import (
	"bytes"
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wippyai/candid/transport"
)

const (
	DefaultSize = 1024
	DefaultTTL  = 30 * time.Second
)

// Option configures a Transport.
type Option func(*config)

type config struct {
	size int
	ttl  time.Duration
}

// WithSize sets the maximum number of cached replies.
func WithSize(n int) Option {
	return func(c *config) { c.size = n }
}

// WithTTL sets how long a reply stays valid. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Transport is a caching decorator.
type Transport struct {
	next   transport.Transport
	lru    *expirable.LRU[string, []byte]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New wraps next.
func New(next transport.Transport, opts ...Option) *Transport {
	cfg := config{size: DefaultSize, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Transport{
		next: next,
		lru:  expirable.NewLRU[string, []byte](cfg.size, nil, cfg.ttl),
	}
}

// Middleware returns a transport.Middleware that applies New.
func Middleware(opts ...Option) transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		return New(next, opts...)
	}
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	if !req.Mode.IsQuery() {
		return t.next.Send(ctx, req)
	}

	key := cacheKey(req)
	if out, ok := t.lru.Get(key); ok {
		t.hits.Add(1)
		return bytes.Clone(out), nil
	}
	t.misses.Add(1)

	out, err := t.next.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	t.lru.Add(key, bytes.Clone(out))
	return out, nil
}

// Purge drops every cached reply.
func (t *Transport) Purge() {
	t.lru.Purge()
}

// Len returns the number of cached replies.
func (t *Transport) Len() int {
	return t.lru.Len()
}

// Stats returns lookup counters.
func (t *Transport) Stats() Stats {
	return Stats{Hits: t.hits.Load(), Misses: t.misses.Load()}
}

func cacheKey(req *transport.Request) string {
	return strconv.Itoa(len(req.Method)) + ":" + req.Method + string(req.Arg)
}
