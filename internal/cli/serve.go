package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/internal/config"
	httpAdapter "github.com/aretw0/tempo/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/tempo/pkg/adapters/mcp"
	redisAdapter "github.com/aretw0/tempo/pkg/adapters/redis"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/observability"
	"github.com/aretw0/tempo/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// ShutdownTimeout bounds how long in-flight requests get after a signal.
const ShutdownTimeout = 5 * time.Second

// Runtime is the shared wiring behind the long-running surfaces.
type Runtime struct {
	Sessions *session.Manager
	Metrics  *observability.Metrics // nil unless enabled
	Logger   *slog.Logger

	closers []func() error
}

// NewRuntime builds the session manager from cfg. When a Redis address is
// configured, snapshots are fanned out to Redis and session commands are
// serialized with a Redis lock.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Logger: logger}

	hooks := observability.LogHooks(logger)
	if cfg.Metrics.Enabled {
		rt.Metrics = observability.NewMetrics()
		hooks = hooks.Merge(rt.Metrics.Hooks())
	}

	engine := tempo.New(
		tempo.WithLogger(logger),
		tempo.WithSpeed(cfg.SpeedMS),
		tempo.WithWindow(cfg.Window),
		tempo.WithLifecycleHooks(hooks),
	)

	var opts []session.Option
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		publisher := redisAdapter.NewPublisher(client,
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTTL(cfg.Redis.TTL),
			redisAdapter.WithHistory(cfg.Window),
			redisAdapter.WithDropHook(rt.dropped("redis")),
			redisAdapter.WithLogger(logger),
		)
		pubCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := publisher.Run(pubCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis publisher stopped", "error", err)
			}
		}()
		rt.closers = append(rt.closers, func() error {
			stop()
			<-done
			return client.Close()
		})

		opts = append(opts,
			session.WithLocker(redisAdapter.NewLocker(client, cfg.Redis.Prefix+"lock:")),
			session.WithObserver(publisher.For),
		)
		logger.Info("redis fan-out enabled", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	}

	rt.Sessions = engine.Sessions(opts...)
	return rt, nil
}

func (rt *Runtime) dropped(sink string) func() {
	return func() {
		if rt.Metrics != nil {
			rt.Metrics.Dropped(sink)
		}
	}
}

// Close cancels every session, then releases Redis.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Sessions != nil {
		errs = append(errs, rt.Sessions.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// ServeOptions configures the HTTP surface.
type ServeOptions struct {
	Config config.Config
	Addr   string // overrides Config.HTTP.Addr
	Debug  bool
	Out    io.Writer
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	logger, err := NewLogger(opts.Out, opts.Config, opts.Debug)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(ctx, opts.Config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	serverOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	if rt.Metrics != nil {
		serverOpts = append(serverOpts, httpAdapter.WithMetrics(rt.Metrics))
	}
	handler, err := httpAdapter.NewHandler(rt.Sessions, serverOpts...)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.HTTP.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("tempo server listening", "addr", addr, "version", tempo.Version)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down")
		// Running runs are cancelled first so open event streams end.
		_ = rt.Sessions.Close()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "error", err)
			return srv.Close()
		}
		logger.Info("tempo server stopped gracefully")
		return nil
	}
}

// MCPOptions configures the MCP surface.
type MCPOptions struct {
	Config    config.Config
	Transport string // "stdio" or "sse"
	Addr      string
	Debug     bool
	Out       io.Writer // logs only; stdout belongs to the stdio transport
}

// ServeMCP runs the MCP server on the chosen transport.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	logger, err := NewLogger(opts.Out, opts.Config, opts.Debug)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(ctx, opts.Config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcpAdapter.NewServer(rt.Sessions, mcpAdapter.WithLogger(logger))
	switch opts.Transport {
	case "", "stdio":
		return srv.ServeStdio()
	case "sse":
		addr := opts.Addr
		if addr == "" {
			addr = opts.Config.HTTP.Addr
		}
		return srv.ServeSSE(ctx, addr)
	default:
		return domain.Invalid("transport", "unknown transport %q (want stdio or sse)", opts.Transport)
	}
}
