package server

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/candid/codec"
	cerrors "github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

func testService() *idl.ServiceType {
	return idl.MustService(
		idl.Method{Name: "greet", Type: idl.MustFunc([]idl.Type{idl.Text}, []idl.Type{idl.Text}, idl.ModeQuery)},
		idl.Method{Name: "set", Type: idl.MustFunc([]idl.Type{idl.Nat32}, nil, 0)},
		idl.Method{Name: "notify", Type: idl.MustFunc([]idl.Type{idl.Text}, nil, idl.ModeOneway)},
		idl.Method{Name: "missing", Type: idl.MustFunc(nil, nil, 0)},
	)
}

func newDispatcher(t *testing.T) (*Dispatcher, *[]any) {
	t.Helper()
	var last []any
	d := New(testService())
	d.MustHandle("greet", func(ctx context.Context, args []any) ([]any, error) {
		return []any{"Hello, " + args[0].(string) + "!"}, nil
	})
	d.MustHandle("set", func(ctx context.Context, args []any) ([]any, error) {
		last = args
		return nil, nil
	})
	d.MustHandle("notify", func(ctx context.Context, args []any) ([]any, error) {
		last = args
		return nil, nil
	})
	return d, &last
}

func TestServe(t *testing.T) {
	d, last := newDispatcher(t)
	ctx := context.Background()

	arg := codec.MustEncode([]any{"world"}, []idl.Type{idl.Text})
	out, err := d.Serve(ctx, &transport.Request{Method: "greet", Arg: arg, Mode: idl.ModeQuery})
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.Decode(out, []idl.Type{idl.Text})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"Hello, world!"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	// an update call may target a query method
	if _, err := d.Serve(ctx, &transport.Request{Method: "greet", Arg: arg}); err != nil {
		t.Errorf("update call to query method: %v", err)
	}

	arg = codec.MustEncode([]any{uint32(7)}, []idl.Type{idl.Nat32})
	out, err = d.Serve(ctx, &transport.Request{Method: "set", Arg: arg})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := codec.Decode(out, nil); err != nil {
		t.Errorf("empty reply does not decode: %v", err)
	}
	if diff := cmp.Diff([]any{uint32(7)}, *last); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	arg = codec.MustEncode([]any{"ping"}, []idl.Type{idl.Text})
	out, err = d.Serve(ctx, &transport.Request{Method: "notify", Arg: arg, Mode: idl.ModeOneway})
	if err != nil || out != nil {
		t.Errorf("oneway Serve = %q, %v", out, err)
	}
}

func TestServeErrors(t *testing.T) {
	d, _ := newDispatcher(t)
	textArg := codec.MustEncode([]any{"x"}, []idl.Type{idl.Text})

	tests := []struct {
		name string
		req  *transport.Request
		want error
	}{
		{"unknown method", &transport.Request{Method: "nope", Arg: textArg}, &cerrors.Error{Phase: cerrors.PhaseServe, Kind: cerrors.KindNotFound}},
		{"not implemented", &transport.Request{Method: "missing", Arg: codec.MustEncode(nil, nil)}, cerrors.ErrRejected},
		{"query to update", &transport.Request{Method: "set", Arg: textArg, Mode: idl.ModeQuery}, cerrors.ErrRejected},
		{"oneway mismatch", &transport.Request{Method: "set", Arg: textArg, Mode: idl.ModeOneway}, cerrors.ErrRejected},
		{"bad args", &transport.Request{Method: "set", Arg: textArg}, cerrors.ErrTypeMismatch},
		{"truncated", &transport.Request{Method: "greet", Arg: textArg[:len(textArg)-1]}, cerrors.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Serve(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBadResults(t *testing.T) {
	d := New(testService())
	d.MustHandle("greet", func(ctx context.Context, args []any) ([]any, error) {
		return []any{42}, nil
	})
	arg := codec.MustEncode([]any{"x"}, []idl.Type{idl.Text})
	_, err := d.Serve(context.Background(), &transport.Request{Method: "greet", Arg: arg, Mode: idl.ModeQuery})
	if !errors.Is(err, cerrors.ErrTypeMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestHandleUnknown(t *testing.T) {
	d := New(testService())
	err := d.Handle("nope", nil)
	var ce *cerrors.Error
	if !errors.As(err, &ce) || ce.Kind != cerrors.KindNotFound {
		t.Errorf("err = %v", err)
	}
}
