// Package transport defines how encoded calls travel between a proxy and
// a service.
//
// A Transport carries a Request (method name, encoded argument bytes and
// call mode) and returns the encoded reply. It never interprets the bytes.
// Handler is the receiving side. The subpackages provide implementations:
//
//   - loopback: in-process delivery to a Handler
//   - tcp: length-framed TCP with snappy compression
//   - grpc: unary gRPC calls with a raw bytes codec
//   - jsonrpc: JSON-RPC 2.0 over HTTP
//
// and decorators that wrap any Transport:
//
//   - cache: caches replies to query calls
//   - metrics: Prometheus request counters and latency
//
// Errors reported by the remote side are *Error. Everything else is a
// delivery failure and is returned as is.
package transport
