// Package grpc carries Candid calls as unary gRPC requests.
//
// Each method maps to "/candid.Service/<method>". Request and reply
// bodies are the raw Candid message bytes, and the call mode travels in
// the "candid-mode" metadata key. No protobuf schema is involved.
package grpc

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/transport"
)

const (
	servicePrefix = "/candid.Service/"
	modeKey       = "candid-mode"
)

// Option configures a Client or Server.
type Option func(*options)

type options struct {
	log        *zap.Logger
	serverOpts []grpc.ServerOption
}

// WithLogger sets the logger. The default is transport.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithServerOptions passes extra options to grpc.NewServer. Server only.
func WithServerOptions(so ...grpc.ServerOption) Option {
	return func(o *options) { o.serverOpts = append(o.serverOpts, so...) }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = transport.Logger()
	}
	return o
}

// Client sends requests over a gRPC connection.
type Client struct {
	conn  *grpc.ClientConn
	opts  options
	owned bool
}

// Dial creates an insecure connection to addr.
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", addr, err)
	}
	c := NewClient(conn, opts...)
	c.owned = true
	return c, nil
}

// NewClient uses an existing connection. Close does not close it.
func NewClient(conn *grpc.ClientConn, opts ...Option) *Client {
	return &Client{conn: conn, opts: newOptions(opts)}
}

// Send implements transport.Transport.
func (c *Client) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, modeKey, req.Mode.String())
	var reply []byte
	err := c.conn.Invoke(ctx, servicePrefix+req.Method, req.Arg, &reply, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.FailedPrecondition, codes.Unimplemented:
				return nil, &transport.Error{Method: req.Method, Message: st.Message()}
			case codes.Canceled:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
			case codes.DeadlineExceeded:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
			}
		}
		return nil, fmt.Errorf("grpc: %s: %w", req.Method, err)
	}
	if req.Mode.IsOneway() {
		return nil, nil
	}
	return reply, nil
}

// Close closes the connection if Dial created it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

// Server serves every "/candid.Service/*" method with a Handler.
type Server struct {
	*grpc.Server
	handler transport.Handler
	opts    options
}

// NewServer returns a gRPC server routing every call to h. Start it with
// Serve(lis).
func NewServer(h transport.Handler, opts ...Option) *Server {
	s := &Server{handler: h, opts: newOptions(opts)}
	serverOpts := append(s.opts.serverOpts,
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handle),
	)
	s.Server = grpc.NewServer(serverOpts...)
	return s
}

func (s *Server) handle(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok || !strings.HasPrefix(full, servicePrefix) {
		return status.Errorf(codes.Unimplemented, "unknown method %s", full)
	}
	method := strings.TrimPrefix(full, servicePrefix)

	var arg []byte
	if err := stream.RecvMsg(&arg); err != nil {
		return err
	}

	ctx := stream.Context()
	mode := idl.Mode(0)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(modeKey); len(v) > 0 {
			m, ok := idl.ParseMode(v[0])
			if !ok {
				return status.Errorf(codes.InvalidArgument, "unknown call mode %q", v[0])
			}
			mode = m
		}
	}
	req := &transport.Request{Method: method, Arg: arg, Mode: mode}

	if mode.IsOneway() {
		go func() {
			if _, err := s.handler.Serve(context.WithoutCancel(ctx), req); err != nil {
				s.opts.log.Debug("oneway call failed", zap.String("method", method), zap.Error(err))
			}
		}()
		return stream.SendMsg([]byte{})
	}

	out, err := s.handler.Serve(ctx, req)
	if err != nil {
		s.opts.log.Debug("call failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	if out == nil {
		out = []byte{}
	}
	return stream.SendMsg(out)
}
