package jsonrpc

import (
	"context"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

// Canister is the JSON-RPC service receiving calls. It is exported only
// because gorilla/rpc registers services by reflection.
type Canister struct {
	handler transport.Handler
	log     *zap.Logger
}

// Call serves Canister.Call.
func (c *Canister) Call(r *http.Request, args *CallArgs, reply *CallReply) error {
	mode, ok := idl.ParseMode(args.Mode)
	if !ok {
		return errors.InvalidInput(errors.PhaseServe, "unknown call mode "+args.Mode)
	}
	req := &transport.Request{Method: args.Method, Arg: args.Arg, Mode: mode}

	if mode.IsOneway() {
		go func() {
			if _, err := c.handler.Serve(context.WithoutCancel(r.Context()), req); err != nil {
				c.log.Debug("oneway call failed", zap.String("method", args.Method), zap.Error(err))
			}
		}()
		return nil
	}

	out, err := c.handler.Serve(r.Context(), req)
	if err != nil {
		c.log.Debug("call failed", zap.String("method", args.Method), zap.Error(err))
		return err
	}
	reply.Result = out
	return nil
}

// NewServer returns an http.Handler serving h as JSON-RPC 2.0.
func NewServer(h transport.Handler, opts ...Option) (http.Handler, error) {
	o := newOptions(opts)
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&Canister{handler: h, log: o.log}, "Canister"); err != nil {
		return nil, err
	}
	return s, nil
}
