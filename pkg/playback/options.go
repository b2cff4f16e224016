package playback

import (
	"log/slog"

	"github.com/aretw0/tempo/pkg/domain"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithSpeed sets the initial delay in milliseconds (clamped).
func WithSpeed(ms int) Option {
	return func(c *Controller) {
		c.speed = ms
	}
}

// WithWindow sets how many recent snapshots History can return.
func WithWindow(n int) Option {
	return func(c *Controller) {
		c.window = n
	}
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// WithIDGenerator overrides how run IDs are generated (default: UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Controller) {
		c.ids = g
	}
}

// StartOption tunes a single Start call.
type StartOption func(*startConfig)

type startConfig struct {
	speed *int
}

// WithStartSpeed sets the delay for the new run. It takes effect only when
// the input is accepted, and before the run's first suspension.
func WithStartSpeed(ms int) StartOption {
	return func(sc *startConfig) {
		sc.speed = &ms
	}
}
