package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

type counting struct {
	calls int
	err   error
}

func (c *counting) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte(req.Method), req.Arg...), nil
}

func TestCachesQueries(t *testing.T) {
	tests := []struct {
		name      string
		mode      idl.Mode
		wantCalls int
	}{
		{"query", idl.ModeQuery, 1},
		{"composite query", idl.ModeCompositeQuery, 1},
		{"update", 0, 3},
		{"oneway", idl.ModeOneway, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &counting{}
			c := New(next)
			for range 3 {
				if _, err := c.Send(context.Background(), &transport.Request{Method: "get", Arg: []byte{1}, Mode: tt.mode}); err != nil {
					t.Fatal(err)
				}
			}
			if next.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", next.calls, tt.wantCalls)
			}
		})
	}
}

func TestKeyIncludesArgs(t *testing.T) {
	next := &counting{}
	c := New(next)
	ctx := context.Background()

	c.Send(ctx, &transport.Request{Method: "get", Arg: []byte{1}, Mode: idl.ModeQuery})
	c.Send(ctx, &transport.Request{Method: "get", Arg: []byte{2}, Mode: idl.ModeQuery})
	c.Send(ctx, &transport.Request{Method: "ge", Arg: []byte("t\x01"), Mode: idl.ModeQuery})
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
	if s := c.Stats(); s.Hits != 0 || s.Misses != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestReturnsCopies(t *testing.T) {
	c := New(&counting{})
	req := &transport.Request{Method: "m", Arg: []byte{7}, Mode: idl.ModeQuery}

	first, _ := c.Send(context.Background(), req)
	first[0] = 'X'
	second, _ := c.Send(context.Background(), req)
	if second[0] != 'm' {
		t.Errorf("cached reply was mutated: %q", second)
	}
	second[0] = 'Y'
	third, _ := c.Send(context.Background(), req)
	if third[0] != 'm' {
		t.Errorf("cached reply was mutated: %q", third)
	}
}

func TestErrorsNotCached(t *testing.T) {
	next := &counting{err: errors.New("down")}
	c := New(next)
	req := &transport.Request{Method: "m", Mode: idl.ModeQuery}
	for range 2 {
		if _, err := c.Send(context.Background(), req); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, len = %d", next.calls, c.Len())
	}
}

func TestExpiry(t *testing.T) {
	next := &counting{}
	c := New(next, WithTTL(20*time.Millisecond))
	req := &transport.Request{Method: "m", Mode: idl.ModeQuery}

	c.Send(context.Background(), req)
	time.Sleep(60 * time.Millisecond)
	c.Send(context.Background(), req)
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}

func TestEviction(t *testing.T) {
	next := &counting{}
	c := New(next, WithSize(1), WithTTL(0))
	ctx := context.Background()
	a := &transport.Request{Method: "a", Mode: idl.ModeQuery}
	b := &transport.Request{Method: "b", Mode: idl.ModeQuery}

	c.Send(ctx, a)
	c.Send(ctx, b)
	c.Send(ctx, a)
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestPurge(t *testing.T) {
	next := &counting{}
	c := transport.Chain(next, Middleware()).(*Transport)
	req := &transport.Request{Method: "m", Mode: idl.ModeQuery}
	c.Send(context.Background(), req)
	c.Purge()
	c.Send(context.Background(), req)
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}
