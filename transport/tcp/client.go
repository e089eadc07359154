package tcp

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

// ErrClosed is returned by calls on a closed Client.
var ErrClosed = stderrors.New("tcp: client closed")

// Client multiplexes calls over one TCP connection. It is safe for
// concurrent use.
type Client struct {
	conn    net.Conn
	pending map[uint32]chan *frame
	err     error
	done    chan struct{}
	opts    options
	nextID  uint32
	mu      sync.Mutex
	wmu     sync.Mutex
	once    sync.Once
}

// Dial connects to a Server at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient takes ownership of conn.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		opts:    newOptions(opts),
		pending: make(map[uint32]chan *frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send implements transport.Transport.
func (c *Client) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &frame{typ: frameRequest, mode: req.Mode, method: req.Method, payload: req.Arg}
	if req.Mode.IsOneway() {
		f.typ = frameOneway
		if err := c.checkOpen(); err != nil {
			return nil, err
		}
		return nil, c.write(f)
	}

	ch := make(chan *frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	f.id = c.nextID
	c.pending[f.id] = ch
	c.mu.Unlock()

	if err := c.write(f); err != nil {
		c.forget(f.id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.typ == frameError {
			return nil, &transport.Error{Method: req.Method, Message: string(resp.payload)}
		}
		return resp.payload, nil
	case <-ctx.Done():
		c.forget(f.id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.checkOpen()
	}
}

// Close closes the connection and fails pending calls with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = ErrClosed
		}
		c.mu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) forget(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(f *frame) error {
	buf, err := encodeFrame(f)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("tcp: write %s: %w", f.method, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	r := bufio.NewReader(c.conn)
	for {
		f, err := readFrame(r, c.opts.maxFrame)
		if err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = fmt.Errorf("tcp: connection lost: %w", err)
				c.opts.log.Debug("connection lost", zap.Error(err))
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[f.id]
		delete(c.pending, f.id)
		c.mu.Unlock()
		if !ok {
			c.opts.log.Debug("reply for unknown call", zap.Uint32("id", f.id))
			continue
		}
		ch <- f
	}
}
