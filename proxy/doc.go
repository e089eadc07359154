// Package proxy turns a service type into callable stubs.
//
// Bind takes an *idl.ServiceType and a transport.Transport and returns a
// Proxy holding one Stub per method. A stub call checks the arguments
// against the method signature, encodes them, sends the bytes with the
// method's call mode and decodes the reply:
//
//	p, err := proxy.Bind(prog.Service, tr)
//	if err != nil {
//		return err
//	}
//	res, err := p.Call(ctx, "greet", "world")
//
// Query and update calls encode identically; only the mode handed to the
// transport differs, and any caching or fast-path policy for queries
// belongs to the transport (see transport/cache).
//
// The proxy never retries. Whether an update may be delivered twice is
// for the caller to decide. Each Proxy is independent: there is no global
// registry, and a Proxy and its stubs are safe for concurrent use.
package proxy
