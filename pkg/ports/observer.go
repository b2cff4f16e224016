package ports

import "github.com/aretw0/tempo/pkg/domain"

// Observer receives snapshots as they are published.
// Implementations must be non-blocking and side-effect-light (typically they
// just trigger a render or enqueue the snapshot).
type Observer interface {
	OnSnapshot(snap domain.Snapshot)
}

// OutcomeObserver is optionally implemented by observers that want the single
// terminal notification of each run, including definition errors.
type OutcomeObserver interface {
	OnOutcome(outcome domain.Outcome)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(domain.Snapshot)

// OnSnapshot calls the underlying function.
func (f ObserverFunc) OnSnapshot(snap domain.Snapshot) {
	if f == nil {
		return
	}
	f(snap)
}
