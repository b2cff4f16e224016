package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStart      EventType = "run_start"
	EventSnapshot   EventType = "snapshot"
	EventPause      EventType = "pause"
	EventResume     EventType = "resume"
	EventCancel     EventType = "cancel"
	EventComplete   EventType = "complete"
	EventFail       EventType = "fail"
	EventStaleWrite EventType = "stale_write"
	EventSpeed      EventType = "speed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// RunEvent describes a lifecycle transition of one run.
type RunEvent struct {
	EventBase
	RunID      string        `json:"run_id"`
	Generation uint64        `json:"generation"`
	Algorithm  string        `json:"algorithm,omitempty"`
	Seq        uint64        `json:"seq,omitempty"`
	Speed      int           `json:"speed,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	Err        error         `json:"-"`
}

// NewRunEvent stamps a RunEvent with the current time.
func NewRunEvent(t EventType, runID string, gen uint64) *RunEvent {
	return &RunEvent{
		EventBase:  EventBase{Timestamp: time.Now(), Type: t},
		RunID:      runID,
		Generation: gen,
	}
}

// LifecycleHooks defines callbacks for playback observability.
// Hooks run synchronously on the acting goroutine and must not block.
type LifecycleHooks struct {
	OnStart      func(context.Context, *RunEvent)
	OnSnapshot   func(context.Context, *RunEvent)
	OnPause      func(context.Context, *RunEvent)
	OnResume     func(context.Context, *RunEvent)
	OnCancel     func(context.Context, *RunEvent)
	OnComplete   func(context.Context, *RunEvent)
	OnFail       func(context.Context, *RunEvent)
	OnStaleWrite func(context.Context, *RunEvent)
	OnSpeed      func(context.Context, *RunEvent)
}

// Emit dispatches ev to the matching hook, if any.
func (h LifecycleHooks) Emit(ctx context.Context, ev *RunEvent) {
	var fn func(context.Context, *RunEvent)
	switch ev.Type {
	case EventStart:
		fn = h.OnStart
	case EventSnapshot:
		fn = h.OnSnapshot
	case EventPause:
		fn = h.OnPause
	case EventResume:
		fn = h.OnResume
	case EventCancel:
		fn = h.OnCancel
	case EventComplete:
		fn = h.OnComplete
	case EventFail:
		fn = h.OnFail
	case EventStaleWrite:
		fn = h.OnStaleWrite
	case EventSpeed:
		fn = h.OnSpeed
	}
	if fn != nil {
		fn(ctx, ev)
	}
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	chain := func(a, b func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
		if a == nil {
			return b
		}
		if b == nil {
			return a
		}
		return func(ctx context.Context, ev *RunEvent) {
			a(ctx, ev)
			b(ctx, ev)
		}
	}
	return LifecycleHooks{
		OnStart:      chain(h.OnStart, other.OnStart),
		OnSnapshot:   chain(h.OnSnapshot, other.OnSnapshot),
		OnPause:      chain(h.OnPause, other.OnPause),
		OnResume:     chain(h.OnResume, other.OnResume),
		OnCancel:     chain(h.OnCancel, other.OnCancel),
		OnComplete:   chain(h.OnComplete, other.OnComplete),
		OnFail:       chain(h.OnFail, other.OnFail),
		OnStaleWrite: chain(h.OnStaleWrite, other.OnStaleWrite),
		OnSpeed:      chain(h.OnSpeed, other.OnSpeed),
	}
}
