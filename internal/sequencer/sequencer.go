// Package sequencer drives one run: it pulls steps from a source, applies
// them to the working state, publishes a snapshot after each one and
// suspends on the pacer before pulling the next.
//
// The loop is flat. Recursive algorithms reach it already flattened by their
// step source.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/internal/token"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Status is how a run ended from the sequencer's point of view.
type Status string

const (
	StatusCompleted Status = "completed" // Source exhausted
	StatusAborted   Status = "aborted"   // Token went stale or ctx was cancelled
	StatusFailed    Status = "failed"    // Definition error or panic
)

// Result reports the end of a run.
type Result struct {
	Status Status
	Steps  int
	Err    error
}

// Publisher receives snapshots on behalf of observers.
type Publisher interface {
	Begin(tok *token.Token) error
	Publish(tok *token.Token, snap domain.Snapshot) error
	Finalize(tok *token.Token) error
}

// Suspender holds the run between steps.
type Suspender interface {
	Suspend(ctx context.Context, tok *token.Token) error
}

// Sequencer runs step sources. A zero-configured Sequencer is reusable across
// runs; per-run identity travels in the token.
type Sequencer struct {
	store     Publisher
	pacer     Suspender
	algorithm string
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithAlgorithm names the algorithm in snapshots and errors.
func WithAlgorithm(name string) Option {
	return func(s *Sequencer) {
		s.algorithm = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHooks sets the lifecycle hooks fired per snapshot and per stale write.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Sequencer) {
		s.hooks = hooks
	}
}

// New creates a Sequencer.
func New(store Publisher, pacer Suspender, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:  store,
		pacer:  pacer,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives src over ws until the source is exhausted, fails, or tok goes stale.
//
// The token is checked before every pull and again before every mutation, so
// a stale run never touches ws or the store. An aborted run reports no
// terminal signal of its own: whoever invalidated the token already knows.
func (s *Sequencer) Run(ctx context.Context, tok *token.Token, src ports.StepSource, ws ports.WorkingState) (res Result) {
	defer src.Stop()

	steps := 0
	defer func() {
		if r := recover(); r != nil {
			res = s.failed(tok, steps, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.store.Begin(tok); err != nil {
		return Result{Status: StatusAborted}
	}

	counters := make(map[string]int)
	for {
		if tok.Stale() {
			return Result{Status: StatusAborted, Steps: steps}
		}
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusAborted, Steps: steps, Err: err}
		}

		began := time.Now()
		step, ok, err := src.Next()
		if err != nil {
			return s.failed(tok, steps, err)
		}
		if !ok {
			break
		}

		// Pulling may have taken a while; recheck before mutating.
		if tok.Stale() {
			return Result{Status: StatusAborted, Steps: steps}
		}
		if err := ws.Apply(step); err != nil {
			return s.failed(tok, steps, fmt.Errorf("apply %s: %w", step, err))
		}
		steps++
		counters["steps"]++
		counters[string(step.Op)]++

		snap := domain.Snapshot{
			RunID:      tok.RunID(),
			Generation: tok.Generation(),
			Seq:        uint64(steps),
			Algorithm:  s.algorithm,
			Op:         step.Op,
			Phase:      step.Phase,
			Marks:      step.Marks.Clone(),
			Counters:   maps.Clone(counters),
			State:      ws.Clone(),
		}
		if err := s.store.Publish(tok, snap); err != nil {
			if errors.Is(err, domain.ErrStaleToken) {
				ev := s.event(domain.EventStaleWrite, tok, snap.Seq)
				s.hooks.Emit(ctx, ev)
				return Result{Status: StatusAborted, Steps: steps}
			}
			return s.failed(tok, steps, err)
		}

		ev := s.event(domain.EventSnapshot, tok, snap.Seq)
		ev.Elapsed = time.Since(began)
		s.hooks.Emit(ctx, ev)

		if err := s.pacer.Suspend(ctx, tok); err != nil {
			if errors.Is(err, domain.ErrStaleToken) {
				return Result{Status: StatusAborted, Steps: steps}
			}
			return Result{Status: StatusAborted, Steps: steps, Err: err}
		}
	}

	if err := s.store.Finalize(tok); err != nil {
		return Result{Status: StatusAborted, Steps: steps}
	}
	s.logger.Debug("step source exhausted", "run_id", tok.RunID(), "algorithm", s.algorithm, "steps", steps)
	return Result{Status: StatusCompleted, Steps: steps}
}

func (s *Sequencer) failed(tok *token.Token, steps int, err error) Result {
	derr := &domain.DefinitionError{Algorithm: s.algorithm, Seq: uint64(steps + 1), Err: err}
	s.logger.Error("algorithm definition failed",
		"run_id", tok.RunID(),
		"generation", tok.Generation(),
		"algorithm", s.algorithm,
		"err", derr,
	)
	return Result{Status: StatusFailed, Steps: steps, Err: derr}
}

func (s *Sequencer) event(t domain.EventType, tok *token.Token, seq uint64) *domain.RunEvent {
	ev := domain.NewRunEvent(t, tok.RunID(), tok.Generation())
	ev.Algorithm = s.algorithm
	ev.Seq = seq
	return ev
}
