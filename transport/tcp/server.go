package tcp

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

// Server accepts connections and serves framed requests with a Handler.
// Requests on one connection are served concurrently.
type Server struct {
	lis     net.Listener
	handler transport.Handler
	ctx     context.Context
	cancel  context.CancelFunc
	conns   map[net.Conn]struct{}
	opts    options
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewServer returns a server for lis. Call Serve to start accepting.
func NewServer(lis net.Listener, h transport.Handler, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		lis:     lis,
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
		opts:    newOptions(opts),
	}
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("tcp: accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting, cancels running handlers and waits for every
// connection to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	err := s.lis.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) serveConn(conn net.Conn) {
	var (
		calls sync.WaitGroup
		wmu   sync.Mutex
	)
	defer func() {
		conn.Close()
		calls.Wait()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.wg.Done()
	}()

	log := s.opts.log.With(zap.String("remote", conn.RemoteAddr().String()))
	r := bufio.NewReader(conn)
	for {
		f, err := readFrame(r, s.opts.maxFrame)
		if err != nil {
			if !stderrors.Is(err, io.EOF) && !s.isClosed() {
				log.Debug("closing connection", zap.Error(err))
			}
			return
		}
		if f.typ != frameRequest && f.typ != frameOneway {
			log.Debug("unexpected frame", zap.Uint8("type", uint8(f.typ)))
			return
		}
		calls.Add(1)
		go func() {
			defer calls.Done()
			s.dispatch(conn, &wmu, f, log)
		}()
	}
}

func (s *Server) dispatch(conn net.Conn, wmu *sync.Mutex, f *frame, log *zap.Logger) {
	req := &transport.Request{Method: f.method, Arg: f.payload, Mode: f.mode}
	out, err := s.handler.Serve(s.ctx, req)
	if f.typ == frameOneway {
		if err != nil {
			log.Debug("oneway call failed", zap.String("method", f.method), zap.Error(err))
		}
		return
	}

	resp := &frame{typ: frameResponse, id: f.id, mode: f.mode, payload: out}
	if err != nil {
		resp.typ = frameError
		resp.payload = []byte(err.Error())
	}
	buf, err := encodeFrame(resp)
	if err != nil {
		log.Error("encode reply", zap.String("method", f.method), zap.Error(err))
		return
	}

	wmu.Lock()
	defer wmu.Unlock()
	if _, err := conn.Write(buf); err != nil {
		log.Debug("write reply", zap.String("method", f.method), zap.Error(err))
	}
}
