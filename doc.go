// Package candid provides a Go implementation of the Candid interface
// description language and a dynamic proxy for calling Candid services.
//
// The library encodes and decodes Candid's self-describing binary format,
// parses .did interface files, and binds service types to transports so
// methods can be called without generated code.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	candid/              Root package (documentation only)
//	├── idl/             Type model, value model, subtyping and value checks
//	├── codec/           DIDL binary encoder and decoder with resource limits
//	├── did/             .did schema parser and Candid text value parser
//	├── principal/       Principal identifiers in binary and textual form
//	├── proxy/           Dynamic service proxy: one stub per method
//	├── server/          Dispatcher serving a service type over any transport
//	├── transport/       Transport and Handler contracts plus implementations
//	│   ├── loopback/    In-process transport
//	│   ├── tcp/         Framed TCP with snappy payloads
//	│   ├── grpc/        gRPC unary calls with a raw bytes codec
//	│   ├── jsonrpc/     JSON-RPC 2.0 over HTTP
//	│   ├── cache/       Query response cache middleware
//	│   └── metrics/     Prometheus middleware
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Parse an interface and call it through a transport:
//
//	prog, err := did.Parse(src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := proxy.Bind(prog.Service, tcpClient)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := p.Call(ctx, "greet", "World")
//	fmt.Println(out[0]) // "Hello, World!"
//
// # Value Mapping
//
// Decoded values use a fixed set of Go types:
//
//   - nat, int: *big.Int
//   - nat8..nat64, int8..int64: uint8..uint64, int8..int64
//   - float32, float64, bool, text: float32, float64, bool, string
//   - null, reserved: nil
//   - blob: []byte; vec T: []any
//   - opt T: idl.Option; record: idl.Record; variant: idl.Variant
//   - func: idl.FuncRef; service, principal: principal.Principal
//
// The encoder accepts any Go integer type for integer positions as long as
// the value fits.
//
// # Thread Safety
//
// Types, Proxy and Stub are safe for concurrent use once built. A Decoder
// may be shared; each Decode call keeps its own state.
package candid
