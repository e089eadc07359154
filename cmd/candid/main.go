package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/candid/did"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/internal/config"
	"github.com/wippyai/candid/internal/hello"
	"github.com/wippyai/candid/proxy"
	"github.com/wippyai/candid/server"
	"github.com/wippyai/candid/transport"
	"github.com/wippyai/candid/transport/cache"
	candidgrpc "github.com/wippyai/candid/transport/grpc"
	"github.com/wippyai/candid/transport/jsonrpc"
	"github.com/wippyai/candid/transport/loopback"
	"github.com/wippyai/candid/transport/metrics"
	"github.com/wippyai/candid/transport/tcp"
)

func main() {
	var (
		configFile  = flag.String("config", "", "YAML config file")
		didFile     = flag.String("did", "", "Candid interface file (default: built-in hello service)")
		kind        = flag.String("transport", config.TransportLoopback, "Transport: loopback, tcp, grpc, jsonrpc")
		addr        = flag.String("addr", config.DefaultAddr, "Address to dial or listen on")
		cacheSize   = flag.Int("cache", 0, "Query cache size (0 disables)")
		timeout     = flag.Duration("timeout", 30*time.Second, "Per-call timeout")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
		repeat      = flag.Int("repeat", 1, "Issue the call this many times concurrently")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fail(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "did":
			cfg.DID = *didFile
		case "transport":
			cfg.Transport = *kind
		case "addr":
			cfg.Addr = *addr
		case "cache":
			cfg.Cache.Size = *cacheSize
		case "timeout":
			cfg.Timeout = *timeout
		case "metrics":
			cfg.Metrics = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fail(err)
		}
		defer func() { _ = log.Sync() }()
		proxy.SetLogger(log)
		server.SetLogger(log)
		transport.SetLogger(log)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fail(stderrors.New("interactive mode needs a terminal"))
		}
		if err := runInteractive(cfg); err != nil {
			fail(err)
		}
		return
	}

	var err error
	switch flag.Arg(0) {
	case "list":
		err = list(cfg)
	case "call":
		if flag.NArg() < 2 {
			usage()
		}
		err = call(cfg, flag.Arg(1), flag.Arg(2), *repeat)
	case "serve":
		err = serve(cfg)
	default:
		usage()
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: candid [flags] list")
	fmt.Fprintln(os.Stderr, "       candid [flags] call <method> '<args>'")
	fmt.Fprintln(os.Stderr, "       candid [flags] serve")
	fmt.Fprintln(os.Stderr, "       candid [flags] -i  (interactive mode)")
	flag.PrintDefaults()
	os.Exit(1)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func loadProgram(cfg config.Config) (*did.Program, error) {
	if cfg.DID == "" {
		return hello.Program(), nil
	}
	src, err := os.ReadFile(cfg.DID)
	if err != nil {
		return nil, fmt.Errorf("read interface: %w", err)
	}
	prog, err := did.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfg.DID, err)
	}
	if prog.Service == nil {
		return nil, fmt.Errorf("%s declares no service", cfg.DID)
	}
	return prog, nil
}

func list(cfg config.Config) error {
	prog, err := loadProgram(cfg)
	if err != nil {
		return err
	}
	for _, m := range prog.Service.Methods {
		fmt.Printf("%s : %s\n", m.Name, m.Type.Signature())
	}
	return nil
}

// connect builds the proxy for cfg. The returned func releases the
// connection and waits for in-flight oneway calls.
func connect(ctx context.Context, cfg config.Config) (*proxy.Proxy, func(), error) {
	prog, err := loadProgram(cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		tr      transport.Transport
		release = func() {}
	)
	switch cfg.Transport {
	case config.TransportLoopback:
		if cfg.DID != "" {
			return nil, nil, fmt.Errorf("loopback transport only hosts the built-in service")
		}
		lb := loopback.New(hello.NewDispatcher())
		tr, release = lb, lb.Wait
	case config.TransportTCP:
		c, err := tcp.Dial(ctx, cfg.Addr, tcp.WithTimeout(cfg.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
		}
		tr, release = c, func() { _ = c.Close() }
	case config.TransportGRPC:
		c, err := candidgrpc.Dial(cfg.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
		}
		tr, release = c, func() { _ = c.Close() }
	case config.TransportJSONRPC:
		tr = jsonrpc.NewClient("http://" + cfg.Addr + "/")
	}

	var mws []transport.Middleware
	if cfg.Cache.Size > 0 {
		copts := []cache.Option{cache.WithSize(cfg.Cache.Size)}
		if cfg.Cache.TTL > 0 {
			copts = append(copts, cache.WithTTL(cfg.Cache.TTL))
		}
		mws = append(mws, cache.Middleware(copts...))
	}

	p, err := proxy.Bind(prog.Service, tr, proxy.WithMiddleware(mws...))
	if err != nil {
		release()
		return nil, nil, err
	}
	return p, release, nil
}

func call(cfg config.Config, method, argText string, repeat int) error {
	ctx := context.Background()

	p, release, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	stub, ok := p.Method(method)
	if !ok {
		return fmt.Errorf("method %q not found", method)
	}
	args, err := did.ParseValues(argText, stub.Type().Args)
	if err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if repeat < 1 {
		repeat = 1
	}
	results := make([][]any, repeat)
	g, gctx := errgroup.WithContext(ctx)
	for i := range repeat {
		g.Go(func() error {
			out, err := stub.Call(gctx, args...)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	for _, out := range results {
		fmt.Println(idl.FormatArgs(out, stub.Type().Results))
	}
	return nil
}

func serve(cfg config.Config) error {
	if cfg.DID != "" {
		return fmt.Errorf("serve only hosts the built-in service")
	}
	if cfg.Transport == config.TransportLoopback {
		return fmt.Errorf("cannot serve over %s", cfg.Transport)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var h transport.Handler = hello.NewDispatcher()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics != "" {
		collector := metrics.NewCollector()
		reg := prometheus.NewRegistry()
		if err := reg.Register(collector); err != nil {
			return err
		}
		h = transport.HandlerFunc(collector.Wrap(transport.Func(h.Serve)).Send)

		ms := &http.Server{
			Addr:              cfg.Metrics,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := ms.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return ms.Close()
		})
	}

	switch cfg.Transport {
	case config.TransportTCP:
		lis, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return err
		}
		srv := tcp.NewServer(lis, h, tcp.WithTimeout(cfg.Timeout))
		g.Go(srv.Serve)
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	case config.TransportGRPC:
		lis, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return err
		}
		srv := candidgrpc.NewServer(h)
		g.Go(func() error { return srv.Serve(lis) })
		g.Go(func() error {
			<-ctx.Done()
			srv.GracefulStop()
			return nil
		})
	case config.TransportJSONRPC:
		rh, err := jsonrpc.NewServer(h)
		if err != nil {
			return err
		}
		hs := &http.Server{Addr: cfg.Addr, Handler: rh, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := hs.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdown)
		})
	}

	fmt.Fprintf(os.Stderr, "serving %s on %s\n", cfg.Transport, cfg.Addr)
	return g.Wait()
}
