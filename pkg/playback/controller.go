package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/internal/pacing"
	"github.com/aretw0/tempo/internal/sequencer"
	"github.com/aretw0/tempo/internal/snapshot"
	"github.com/aretw0/tempo/internal/token"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// run is the bookkeeping of one started run.
type run struct {
	tok       *token.Token
	algorithm string
	started   time.Time
	cancel    context.CancelFunc
	settled   chan struct{} // closed once outcome is final and reported
	outcome   domain.Outcome
}

// Controller owns the playback state of one algorithm view.
// It is safe for concurrent use.
type Controller struct {
	def    ports.Definition
	tokens *token.Source
	pacer  *pacing.Pacer
	store  *snapshot.Store
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	speed  int
	window int
	ids    IDGenerator

	mu    sync.Mutex
	state domain.PlaybackState
	run   *run
	last  *domain.Outcome
}

// New creates an idle Controller for def.
func New(def ports.Definition, opts ...Option) *Controller {
	c := &Controller{
		def:    def,
		logger: logging.NewNop(),
		speed:  domain.DefaultSpeed,
		window: snapshot.DefaultWindow,
		state:  domain.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	var tokenOpts []token.Option
	if c.ids != nil {
		tokenOpts = append(tokenOpts, token.WithIDGenerator(c.ids))
	}
	c.tokens = token.NewSource(tokenOpts...)
	c.pacer = pacing.New(c.speed)
	c.store = snapshot.New(snapshot.WithWindow(c.window), snapshot.WithLogger(c.logger))
	return c
}

// Definition returns the definition Start uses.
func (c *Controller) Definition() ports.Definition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.def
}

// Start validates input, cancels any active run and launches a new one with
// the controller's definition. Invalid input returns an error wrapping
// domain.ErrInvalidInput and changes nothing.
func (c *Controller) Start(ctx context.Context, input map[string]any, opts ...StartOption) (string, error) {
	return c.StartDefinition(ctx, c.Definition(), input, opts...)
}

// StartDefinition is Start with another definition, which becomes the
// controller's definition for later Starts. It returns the new run ID.
func (c *Controller) StartDefinition(ctx context.Context, def ports.Definition, input map[string]any, opts ...StartOption) (string, error) {
	if def == nil {
		return "", fmt.Errorf("%w: no algorithm definition", domain.ErrUnknownAlgorithm)
	}
	ws, src, err := def.Prepare(input)
	if err != nil {
		return "", err
	}
	var sc startConfig
	for _, opt := range opts {
		opt(&sc)
	}

	c.mu.Lock()
	prev := c.stopLocked()
	tok := c.tokens.Mint()
	c.pacer.Reset()
	if sc.speed != nil {
		c.pacer.SetSpeed(*sc.speed)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		tok:       tok,
		algorithm: def.Name(),
		started:   time.Now(),
		cancel:    cancel,
		settled:   make(chan struct{}),
	}
	c.def = def
	c.run = r
	c.state = domain.StateRunning
	c.mu.Unlock()

	if prev != nil {
		c.finishCancelled(ctx, prev)
	}

	c.logger.Info("run started", "run_id", tok.RunID(), "generation", tok.Generation(), "algorithm", r.algorithm)
	ev := c.event(domain.EventStart, r)
	ev.Speed = c.pacer.Speed()
	c.hooks.Emit(ctx, ev)

	seq := sequencer.New(c.store, c.pacer,
		sequencer.WithAlgorithm(r.algorithm),
		sequencer.WithLogger(c.logger),
		sequencer.WithHooks(c.hooks),
	)
	go c.drive(runCtx, r, seq, src, ws)
	return tok.RunID(), nil
}

func (c *Controller) drive(ctx context.Context, r *run, seq *sequencer.Sequencer, src ports.StepSource, ws ports.WorkingState) {
	defer r.cancel()

	res := seq.Run(ctx, r.tok, src, ws)

	c.mu.Lock()
	if c.run != r || r.tok.Stale() {
		// Cancelled or superseded; the canceller reported the outcome.
		c.mu.Unlock()
		return
	}

	switch res.Status {
	case sequencer.StatusCompleted:
		c.state = domain.StateCompleted
		r.outcome = c.outcome(r, domain.StateCompleted, res.Steps, nil)
	case sequencer.StatusFailed:
		c.state = domain.StateIdle
		r.outcome = c.outcome(r, domain.StateCompleted, res.Steps, res.Err)
	default:
		// Context cancelled with the token still current.
		c.state = domain.StateIdle
		r.outcome = c.outcome(r, domain.StateCancelled, res.Steps, nil)
	}
	c.tokens.Invalidate(r.tok)
	c.run = nil
	c.last = &r.outcome
	c.mu.Unlock()

	c.report(ctx, r)
	close(r.settled)
}

// stopLocked invalidates the active run, if any, and returns it so the
// caller can report its outcome after releasing the lock.
func (c *Controller) stopLocked() *run {
	r := c.run
	if r == nil {
		return nil
	}
	c.tokens.Invalidate(r.tok)
	r.cancel()
	r.outcome = c.outcome(r, domain.StateCancelled, 0, nil)
	c.run = nil
	c.last = &r.outcome
	c.state = domain.StateIdle
	return r
}

// finishCancelled waits out in-flight deliveries of r, counts what it
// published, then reports it.
func (c *Controller) finishCancelled(ctx context.Context, r *run) {
	c.store.Fence()
	steps := 0
	if snap, ok := c.store.Current(); ok && snap.Generation == r.tok.Generation() {
		steps = int(snap.Seq)
	}
	c.mu.Lock()
	r.outcome.Steps = steps
	c.mu.Unlock()

	c.logger.Info("run cancelled", "run_id", r.tok.RunID(), "generation", r.tok.Generation(), "algorithm", r.algorithm)
	c.report(ctx, r)
	close(r.settled)
}

func (c *Controller) report(ctx context.Context, r *run) {
	c.store.NotifyOutcome(r.outcome)

	var t domain.EventType
	switch {
	case r.outcome.Failed():
		t = domain.EventFail
		c.logger.Error("run failed", "run_id", r.tok.RunID(), "algorithm", r.algorithm, "err", r.outcome.Err)
	case r.outcome.Status == domain.StateCompleted:
		t = domain.EventComplete
		c.logger.Info("run completed", "run_id", r.tok.RunID(), "algorithm", r.algorithm, "steps", r.outcome.Steps)
	default:
		t = domain.EventCancel
	}
	ev := c.event(t, r)
	ev.Seq = uint64(r.outcome.Steps)
	ev.Elapsed = time.Since(r.started)
	ev.Err = r.outcome.Err
	c.hooks.Emit(ctx, ev)
}

func (c *Controller) outcome(r *run, status domain.PlaybackState, steps int, err error) domain.Outcome {
	o := domain.Outcome{
		RunID:      r.tok.RunID(),
		Generation: r.tok.Generation(),
		Algorithm:  r.algorithm,
		Status:     status,
		Steps:      steps,
		Err:        err,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func (c *Controller) event(t domain.EventType, r *run) *domain.RunEvent {
	ev := domain.NewRunEvent(t, r.tok.RunID(), r.tok.Generation())
	ev.Algorithm = r.algorithm
	return ev
}

// Pause closes the pacing gate; the run parks at its next suspension.
// Pausing while paused is a no-op. Without an active run it returns
// domain.ErrNotRunning.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.StatePaused:
		return nil
	case domain.StateRunning:
	default:
		return domain.ErrNotRunning
	}
	c.pacer.Pause()
	c.state = domain.StatePaused
	c.logger.Debug("run paused", "run_id", c.run.tok.RunID())
	c.hooks.Emit(context.Background(), c.event(domain.EventPause, c.run))
	return nil
}

// Resume reopens the gate. Resuming when not paused is a no-op.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.StatePaused {
		return nil
	}
	c.pacer.Resume()
	c.state = domain.StateRunning
	c.logger.Debug("run resumed", "run_id", c.run.tok.RunID())
	c.hooks.Emit(context.Background(), c.event(domain.EventResume, c.run))
	return nil
}

// StepOnce lets a paused run advance exactly one step and park again.
func (c *Controller) StepOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case domain.StatePaused:
		c.pacer.StepOnce()
		return nil
	case domain.StateRunning:
		return domain.ErrNotPaused
	}
	return domain.ErrNotRunning
}

// Cancel stops the active run and returns to Idle, also from Completed.
// The last snapshot stays readable. When Cancel returns, no observer will
// see the cancelled run again. Without an active run nothing is reported.
func (c *Controller) Cancel() {
	c.mu.Lock()
	prev := c.stopLocked()
	c.pacer.Reset()
	c.state = domain.StateIdle
	c.mu.Unlock()

	if prev != nil {
		c.finishCancelled(context.Background(), prev)
	}
}

// Reset cancels any active run, drops its snapshots and returns to Idle.
// Calling it twice in a row changes nothing the second time.
func (c *Controller) Reset() {
	c.mu.Lock()
	prev := c.stopLocked()
	c.pacer.Reset()
	c.state = domain.StateIdle
	gen := c.tokens.Generation()
	c.mu.Unlock()

	if prev != nil {
		c.finishCancelled(context.Background(), prev)
	}
	c.store.Retire(gen)
}

// SetSpeed changes the delay between steps, effective at the next
// suspension. It returns the clamped value.
func (c *Controller) SetSpeed(ms int) int {
	ms = c.pacer.SetSpeed(ms)

	c.mu.Lock()
	r := c.run
	c.mu.Unlock()

	ev := domain.NewRunEvent(domain.EventSpeed, "", 0)
	if r != nil {
		ev = c.event(domain.EventSpeed, r)
	}
	ev.Speed = ms
	c.hooks.Emit(context.Background(), ev)
	return ms
}

// Speed returns the current delay in milliseconds.
func (c *Controller) Speed() int {
	return c.pacer.Speed()
}

// State returns the current playback state.
func (c *Controller) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunID returns the ID of the active run, or "" when idle.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.tok.RunID()
}

// CurrentSnapshot returns the latest published snapshot.
func (c *Controller) CurrentSnapshot() (domain.Snapshot, bool) {
	return c.store.Current()
}

// History returns up to limit recent snapshots of the latest run, oldest first.
func (c *Controller) History(limit int) []domain.Snapshot {
	return c.store.Window(limit)
}

// Subscribe registers an observer for snapshots (and outcomes, if obs
// implements ports.OutcomeObserver). It returns a function that removes it.
func (c *Controller) Subscribe(obs ports.Observer) func() {
	return c.store.Subscribe(obs)
}

// LastOutcome returns the terminal report of the most recent finished run.
func (c *Controller) LastOutcome() (domain.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return domain.Outcome{}, false
	}
	return *c.last, true
}

// Wait blocks until the run active at call time has ended and its outcome
// has been reported, and returns that outcome. Without an active run it returns the last outcome immediately.
func (c *Controller) Wait(ctx context.Context) (domain.Outcome, error) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()

	if r == nil {
		o, ok := c.LastOutcome()
		if !ok {
			return domain.Outcome{}, domain.ErrNotRunning
		}
		return o, nil
	}

	select {
	case <-r.settled:
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return r.outcome, nil
}

// Close cancels any active run. The controller stays usable.
func (c *Controller) Close() error {
	c.Cancel()
	return nil
}
