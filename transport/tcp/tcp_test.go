package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

// startServer returns a connected client and a func that tears both
// sides down.
func startServer(t *testing.T, h transport.Handler) (*Client, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(lis, h)
	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	c, err := Dial(context.Background(), srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return c, func() {
		c.Close()
		srv.Close()
		if err := <-served; err != nil {
			t.Errorf("Serve: %v", err)
		}
	}
}

var echo = transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
	return append([]byte(req.Method+":"), req.Arg...), nil
})

func TestFrameRoundTrip(t *testing.T) {
	in := &frame{typ: frameRequest, id: 7, mode: idl.ModeQuery, method: "greet", payload: bytes.Repeat([]byte("DIDL"), 100)}
	buf, err := encodeFrame(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := readFrame(bytes.NewReader(buf), DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	if out.typ != in.typ || out.id != in.id || out.mode != in.mode || out.method != in.method || !bytes.Equal(out.payload, in.payload) {
		t.Errorf("got %+v", out)
	}
}

func TestFrameErrors(t *testing.T) {
	good, _ := encodeFrame(&frame{typ: frameResponse, id: 1, payload: []byte("abc")})

	corrupt := bytes.Clone(good)
	corrupt[len(corrupt)-1] ^= 0xff

	badType := bytes.Clone(good)
	badType[4] = 9

	tests := []struct {
		name string
		data []byte
		max  int
		kind cerrors.Kind
	}{
		{"checksum", corrupt, DefaultMaxFrameSize, cerrors.KindInvalidData},
		{"too large", good, 8, cerrors.KindLimit},
		{"unknown type", badType, DefaultMaxFrameSize, cerrors.KindInvalidData},
		{"short", []byte{2, 0, 0, 0, 1, 2}, DefaultMaxFrameSize, cerrors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readFrame(bytes.NewReader(tt.data), tt.max)
			var ce *cerrors.Error
			if !errors.As(err, &ce) || ce.Kind != tt.kind {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func TestCallConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, stop := startServer(t, echo)
	defer stop()

	g, ctx := errgroup.WithContext(context.Background())
	for i := range 32 {
		g.Go(func() error {
			arg := []byte(fmt.Sprintf("arg-%d", i))
			out, err := c.Send(ctx, &transport.Request{Method: "m", Arg: arg})
			if err != nil {
				return err
			}
			if want := "m:" + string(arg); string(out) != want {
				return fmt.Errorf("reply %q, want %q", out, want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestRemoteError(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		return nil, errors.New("no such method")
	})
	c, stop := startServer(t, h)
	defer stop()

	_, err := c.Send(context.Background(), &transport.Request{Method: "nope"})
	var re *transport.Error
	if !errors.As(err, &re) {
		t.Fatalf("err = %v", err)
	}
	if re.Method != "nope" || re.Message != "no such method" {
		t.Errorf("got %+v", re)
	}
}

func TestOneway(t *testing.T) {
	defer goleak.VerifyNone(t)
	got := make(chan *transport.Request, 1)
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		got <- req
		return nil, nil
	})
	c, stop := startServer(t, h)
	defer stop()

	out, err := c.Send(context.Background(), &transport.Request{Method: "notify", Arg: []byte("x"), Mode: idl.ModeOneway})
	if err != nil || out != nil {
		t.Fatalf("Send = %q, %v", out, err)
	}
	select {
	case req := <-got:
		if req.Method != "notify" || !req.Mode.IsOneway() || string(req.Arg) != "x" {
			t.Errorf("got %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("oneway request never arrived")
	}
}

func TestCallCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)
	release := make(chan struct{})
	h := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) ([]byte, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return []byte("late"), nil
	})
	c, stop := startServer(t, h)
	defer stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, &transport.Request{Method: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, stop := startServer(t, echo)
	defer stop()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := c.Send(context.Background(), &transport.Request{Method: "m"})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v", err)
	}
}
