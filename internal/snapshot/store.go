// Package snapshot holds the latest published snapshot of a run, a short
// rolling window of its predecessors, and the observers watching them.
package snapshot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/internal/token"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// DefaultWindow is the number of snapshots retained when no window is configured.
const DefaultWindow = 16

type subscriber struct {
	id  uint64
	obs ports.Observer
}

// Store publishes snapshots to observers.
//
// Publish checks the token and dispatches while holding the publish lock, so
// a snapshot from a stale token can never be observed after the token was
// invalidated and Fence returned. Observers are called on the publishing
// goroutine and may call back into the read-side methods.
type Store struct {
	pub sync.Mutex // serializes every write and dispatch

	mu      sync.RWMutex
	current domain.Snapshot
	window  []domain.Snapshot
	size    int
	subs    []subscriber
	nextSub uint64

	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithWindow sets how many recent snapshots are retained (minimum 1).
func WithWindow(n int) Option {
	return func(s *Store) {
		if n < 1 {
			n = 1
		}
		s.size = n
	}
}

// WithLogger configures the logger used for discarded writes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		size:   DefaultWindow,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.window = make([]domain.Snapshot, 0, s.size)
	return s
}

// Publish records snap as the latest snapshot of tok's run and notifies observers.
//
// A stale token returns domain.ErrStaleToken and nothing is recorded or
// observed. Snapshots of one generation must arrive in strictly increasing
// Seq order.
func (s *Store) Publish(tok *token.Token, snap domain.Snapshot) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	if tok.Stale() {
		s.logger.Warn("discarding snapshot from stale run",
			"run_id", tok.RunID(),
			"generation", tok.Generation(),
			"seq", snap.Seq,
		)
		return domain.ErrStaleToken
	}

	s.mu.Lock()
	last := s.current
	if !last.IsZero() {
		if snap.Generation < last.Generation {
			s.mu.Unlock()
			return domain.ErrStaleToken
		}
		if snap.Generation == last.Generation && snap.Seq <= last.Seq {
			s.mu.Unlock()
			return fmt.Errorf("snapshot out of order: seq %d after %d", snap.Seq, last.Seq)
		}
	}
	s.current = snap
	if len(s.window) == s.size {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size-1]
	}
	s.window = append(s.window, snap)
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.obs.OnSnapshot(snap.Clone())
	}
	return nil
}

// NotifyOutcome delivers the terminal report of a run to observers that
// implement ports.OutcomeObserver.
func (s *Store) NotifyOutcome(outcome domain.Outcome) {
	s.pub.Lock()
	defer s.pub.Unlock()

	for _, sub := range s.subscribers() {
		if oo, ok := sub.obs.(ports.OutcomeObserver); ok {
			oo.OnOutcome(outcome)
		}
	}
}

// Fence waits for any in-flight Publish to finish. After a token has been
// invalidated, Fence guarantees no observer is still handling its snapshots.
func (s *Store) Fence() {
	s.pub.Lock()
	s.pub.Unlock()
}

// Begin clears the snapshots of earlier runs so tok's run starts from an
// empty window. It fails with domain.ErrStaleToken if tok is already stale,
// leaving a newer run's snapshots untouched.
func (s *Store) Begin(tok *token.Token) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	if tok.Stale() {
		return domain.ErrStaleToken
	}
	s.reset()
	return nil
}

// Finalize flags the latest snapshot of tok's run as final.
func (s *Store) Finalize(tok *token.Token) error {
	s.pub.Lock()
	defer s.pub.Unlock()

	if tok.Stale() {
		return domain.ErrStaleToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.IsZero() || s.current.Generation != tok.Generation() {
		return nil
	}
	s.current.Final = true
	if n := len(s.window); n > 0 && s.window[n-1].Seq == s.current.Seq {
		s.window[n-1].Final = true
	}
	return nil
}

// Retire drops the held snapshots if they belong to generation gen or an
// older one. Snapshots of a newer run are kept.
func (s *Store) Retire(gen uint64) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.RLock()
	held := s.current.Generation
	s.mu.RUnlock()
	if held <= gen {
		s.reset()
	}
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = domain.Snapshot{}
	s.window = s.window[:0]
}

// Current returns the latest snapshot, or ok=false if none is held.
func (s *Store) Current() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current.IsZero() {
		return domain.Snapshot{}, false
	}
	return s.current.Clone(), true
}

// Window returns up to limit of the most recent snapshots, oldest first.
// A limit <= 0 returns the whole window.
func (s *Store) Window(limit int) []domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.window) {
		start = len(s.window) - limit
	}
	out := make([]domain.Snapshot, 0, len(s.window)-start)
	for _, snap := range s.window[start:] {
		out = append(out, snap.Clone())
	}
	return out
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(obs ports.Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, obs: obs})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Observers returns the number of registered observers.
func (s *Store) Observers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Store) subscribers() []subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]subscriber(nil), s.subs...)
}
