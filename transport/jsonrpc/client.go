package jsonrpc

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/wippyai/candid/transport"
)

// Client posts calls to a JSON-RPC endpoint.
type Client struct {
	url  string
	opts options
}

// NewClient returns a client for the endpoint url.
func NewClient(url string, opts ...Option) *Client {
	return &Client{url: url, opts: newOptions(opts)}
}

// Send implements transport.Transport. Query calls are retried on
// transient connection failures; other calls are attempted once.
func (c *Client) Send(ctx context.Context, req *transport.Request) ([]byte, error) {
	body, err := json2.EncodeClientRequest(RPCMethod, &CallArgs{
		Method: req.Method,
		Mode:   req.Mode.String(),
		Arg:    req.Arg,
	})
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: encode request: %w", err)
	}

	attempts := 1
	if req.Mode.IsQuery() {
		attempts += c.opts.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.opts.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			c.opts.log.Debug("retrying query",
				zap.String("method", req.Method),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
		}

		reply, err := c.post(ctx, req.Method, body)
		if err == nil {
			if req.Mode.IsOneway() {
				return nil, nil
			}
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("jsonrpc: %s failed after %d attempt(s): %w", req.Method, attempts, lastErr)
}

func (c *Client) post(ctx context.Context, method string, body []byte) ([]byte, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: %s: %w", method, err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var reply CallReply
	if err := json2.DecodeClientResponse(resp.Body, &reply); err != nil {
		var je *json2.Error
		if stderrors.As(err, &je) {
			return nil, &transport.Error{Method: method, Message: je.Message}
		}
		return nil, fmt.Errorf("jsonrpc: decode reply: %w", err)
	}
	return reply.Result, nil
}

// closeBody drains the body so the connection can be reused.
func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("jsonrpc: unexpected HTTP status %d", e.code)
}

// isTransient reports whether a failed attempt is worth repeating.
func isTransient(err error) bool {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.code == http.StatusServiceUnavailable || se.code == http.StatusBadGateway
	}
	var te *transport.Error
	if stderrors.As(err, &te) {
		return false
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe")
}
