// Package pacing converts the speed setting into inter-step delays and holds
// runs at a pause gate.
//
// Every wait is event driven: timers for the delay, a replaceable wake channel
// for the gate and the token's Done channel for cancellation. Nothing polls.
package pacing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tempo/internal/token"
	"github.com/aretw0/tempo/pkg/domain"
)

// Pacer is the suspension point shared by the sequencer and the controller.
// It is safe for concurrent use.
type Pacer struct {
	speed atomic.Int64

	mu      sync.Mutex
	paused  bool
	credits int
	wake    chan struct{}
	parked  int
}

// New creates an unpaused pacer with the given speed (clamped).
func New(speedMs int) *Pacer {
	p := &Pacer{wake: make(chan struct{})}
	p.speed.Store(int64(domain.ClampSpeed(speedMs)))
	return p
}

// SetSpeed stores a new delay, effective at the next suspension.
// It returns the clamped value actually stored.
func (p *Pacer) SetSpeed(ms int) int {
	ms = domain.ClampSpeed(ms)
	p.speed.Store(int64(ms))
	return ms
}

// Speed returns the current delay setting in milliseconds.
func (p *Pacer) Speed() int {
	return int(p.speed.Load())
}

// Pause closes the gate. It reports false if already paused.
func (p *Pacer) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return false
	}
	p.paused = true
	p.credits = 0
	return true
}

// Resume opens the gate. It reports false if not paused.
func (p *Pacer) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return false
	}
	p.paused = false
	p.credits = 0
	p.broadcastLocked()
	return true
}

// StepOnce lets exactly one parked suspension through while paused.
// It reports false (and does nothing) when not paused.
func (p *Pacer) StepOnce() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return false
	}
	p.credits++
	p.broadcastLocked()
	return true
}

// Paused reports whether the gate is closed.
func (p *Pacer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Parked reports how many suspensions are currently held at the gate.
func (p *Pacer) Parked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}

// Reset reopens the gate and drops pending step credits, ready for a new run.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = false
	p.credits = 0
	p.broadcastLocked()
}

func (p *Pacer) broadcastLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

// Suspend waits for the current delay and then for the gate to open.
//
// The token is checked before and after the wait; a stale token returns
// domain.ErrStaleToken as soon as it is invalidated, even mid-delay or while
// parked. Cancellation of ctx returns ctx.Err().
func (p *Pacer) Suspend(ctx context.Context, tok *token.Token) error {
	if tok.Stale() {
		return domain.ErrStaleToken
	}

	// Read fresh on every suspension; changes during this wait apply to the next one.
	if delay := domain.SpeedToDelay(p.Speed()); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-tok.Done():
			timer.Stop()
			return domain.ErrStaleToken
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if err := p.gate(ctx, tok); err != nil {
		return err
	}

	if tok.Stale() {
		return domain.ErrStaleToken
	}
	return nil
}

func (p *Pacer) gate(ctx context.Context, tok *token.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.paused {
		if p.credits > 0 {
			p.credits--
			return nil
		}
		wake := p.wake
		p.parked++
		p.mu.Unlock()

		var err error
		select {
		case <-wake:
		case <-tok.Done():
			err = domain.ErrStaleToken
		case <-ctx.Done():
			err = ctx.Err()
		}

		p.mu.Lock()
		p.parked--
		if err != nil {
			return err
		}
	}
	return nil
}
