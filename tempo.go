package tempo

import (
	"context"
	"log/slog"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/session"
)

// Engine is the high-level entry point for the library.
// It binds the algorithm catalog to preconfigured playback controllers.
type Engine struct {
	catalog *algorithms.Catalog
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	speed   int
	window  int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *algorithms.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithLifecycleHooks registers observability hooks on every controller.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSpeed sets the initial delay between steps in milliseconds.
func WithSpeed(ms int) Option {
	return func(e *Engine) {
		e.speed = domain.ClampSpeed(ms)
	}
}

// WithWindow sets how many recent snapshots each controller keeps.
func WithWindow(n int) Option {
	return func(e *Engine) {
		e.window = n
	}
}

// New creates an Engine with the built-in algorithms.
func New(opts ...Option) *Engine {
	e := &Engine{
		speed: domain.DefaultSpeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = algorithms.Default()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	return e
}

// Catalog returns the algorithm catalog.
func (e *Engine) Catalog() *algorithms.Catalog {
	return e.catalog
}

func (e *Engine) controllerOptions() []playback.Option {
	opts := []playback.Option{
		playback.WithLogger(e.logger),
		playback.WithLifecycleHooks(e.hooks),
		playback.WithSpeed(e.speed),
	}
	if e.window > 0 {
		opts = append(opts, playback.WithWindow(e.window))
	}
	return opts
}

// Controller returns a new idle controller for algorithm.
func (e *Engine) Controller(algorithm string) (*playback.Controller, error) {
	def, err := e.catalog.Get(algorithm)
	if err != nil {
		return nil, err
	}
	return playback.New(def, e.controllerOptions()...), nil
}

// Sessions returns a session manager whose controllers share the Engine's
// configuration.
func (e *Engine) Sessions(opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(e.logger),
		session.WithControllerOptions(e.controllerOptions()...),
	}
	return session.NewManager(e.catalog, append(base, opts...)...)
}

// Play runs algorithm on input to its end, delivering every snapshot to obs
// (which may be nil). Cancelling ctx cancels the run and returns ctx.Err(). A definition failure is
// returned as the error alongside its outcome.
func (e *Engine) Play(ctx context.Context, algorithm string, input map[string]any, obs ports.Observer) (domain.Outcome, error) {
	c, err := e.Controller(algorithm)
	if err != nil {
		return domain.Outcome{}, err
	}
	if obs != nil {
		defer c.Subscribe(obs)()
	}
	if _, err := c.Start(ctx, input); err != nil {
		return domain.Outcome{}, err
	}

	outcome, err := c.Wait(ctx)
	if err != nil {
		c.Cancel()
		cancelled, _ := c.Wait(context.WithoutCancel(ctx))
		return cancelled, err
	}
	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}
