package loopback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

func echo() transport.HandlerFunc {
	return func(ctx context.Context, req *transport.Request) ([]byte, error) {
		return req.Arg, nil
	}
}

func TestSendCopies(t *testing.T) {
	var seen []byte
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		seen = req.Arg
		return req.Arg, nil
	})
	tr := New(h)

	arg := []byte("DIDL\x00\x00")
	out, err := tr.Send(context.Background(), &transport.Request{Method: "m", Arg: arg})
	if err != nil {
		t.Fatal(err)
	}
	arg[0] = 'X'
	if seen[0] != 'D' {
		t.Error("handler observed caller mutation")
	}
	out[1] = 'X'
	if seen[1] != 'I' {
		t.Error("caller mutation reached handler buffer")
	}
}

func TestSendCanceled(t *testing.T) {
	var calls atomic.Int32
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(h).Send(ctx, &transport.Request{Method: "m"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 0 {
		t.Error("handler ran for a canceled context")
	}
}

func TestSendOneway(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		<-release
		calls.Add(1)
		return []byte("ignored"), nil
	})
	tr := New(h)

	out, err := tr.Send(context.Background(), &transport.Request{Method: "notify", Mode: idl.ModeOneway})
	if err != nil || out != nil {
		t.Fatalf("Send = %q, %v", out, err)
	}
	close(release)
	tr.Wait()
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestSendError(t *testing.T) {
	want := &transport.Error{Method: "m", Message: "nope"}
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		return nil, want
	})
	_, err := New(h).Send(context.Background(), &transport.Request{Method: "m"})
	if !errors.Is(err, want) {
		t.Errorf("err = %v", err)
	}
}

func TestEcho(t *testing.T) {
	out, err := New(echo()).Send(context.Background(), &transport.Request{Method: "m", Arg: []byte{1, 2}})
	if err != nil || len(out) != 2 {
		t.Errorf("Send = %v, %v", out, err)
	}
}
