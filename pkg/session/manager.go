package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Session is one named controller.
type Session struct {
	ID         string
	Controller *playback.Controller
	Created    time.Time

	unsubscribe []func()
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	catalog *algorithms.Catalog

	mu    sync.Mutex            // Global lock for the lock map
	locks map[string]*lockEntry // Map of active locks

	smu      sync.RWMutex
	sessions map[string]*Session

	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	observers []func(sessionID string) ports.Observer
	ctrlOpts  []playback.Option
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL (default DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithControllerOptions applies opts to every controller the Manager creates.
func WithControllerOptions(opts ...playback.Option) Option {
	return func(m *Manager) {
		m.ctrlOpts = append(m.ctrlOpts, opts...)
	}
}

// WithObserver subscribes an observer built by fn to every new session.
// It is unsubscribed when the session is deleted.
func WithObserver(fn func(sessionID string) ports.Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, fn)
	}
}

// NewManager creates a Manager resolving algorithm names through catalog.
func NewManager(catalog *algorithms.Catalog, opts ...Option) *Manager {
	m := &Manager{
		catalog:  catalog,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*Session),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the algorithm catalog.
func (m *Manager) Catalog() *algorithms.Catalog {
	return m.catalog
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Open returns the session with the given ID, creating it for algorithm
// (or the default algorithm) if it does not exist.
func (m *Manager) Open(ctx context.Context, sessionID, algorithm string) (*Session, error) {
	var s *Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.openLocked(sessionID, algorithm)
		return err
	})
	return s, err
}

func (m *Manager) openLocked(sessionID, algorithm string) (*Session, error) {
	if s, err := m.Get(sessionID); err == nil {
		return s, nil
	}
	s, err := m.newSession(sessionID, algorithm)
	if err != nil {
		return nil, err
	}
	m.register(s)
	return s, nil
}

// newSession builds an unregistered session with its observers attached.
func (m *Manager) newSession(sessionID, algorithm string) (*Session, error) {
	if sessionID == "" {
		return nil, domain.Invalid("session", "id must not be empty")
	}

	def, err := m.catalog.Get(algorithm)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         sessionID,
		Controller: playback.New(def, m.ctrlOpts...),
		Created:    time.Now(),
	}
	for _, fn := range m.observers {
		if obs := fn(sessionID); obs != nil {
			s.unsubscribe = append(s.unsubscribe, s.Controller.Subscribe(obs))
		}
	}
	return s, nil
}

func (m *Manager) register(s *Session) {
	m.smu.Lock()
	m.sessions[s.ID] = s
	m.smu.Unlock()

	m.logger.Debug("session opened", "session_id", s.ID, "algorithm", s.Controller.Definition().Name())
}

// Get returns an existing session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.smu.RLock()
	defer m.smu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Start opens the session if needed and starts a run. An empty algorithm
// reuses the session's current definition. A rejected start leaves the
// manager as it was: no session is created and opts are not applied.
func (m *Manager) Start(ctx context.Context, sessionID, algorithm string, input map[string]any, opts ...playback.StartOption) (string, error) {
	var runID string
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.Get(sessionID)
		created := false
		if err != nil {
			if s, err = m.newSession(sessionID, algorithm); err != nil {
				return err
			}
			created = true
		}
		def := s.Controller.Definition()
		if algorithm != "" && algorithm != def.Name() {
			if def, err = m.catalog.Get(algorithm); err != nil {
				return err
			}
		}
		runID, err = s.Controller.StartDefinition(ctx, def, input, opts...)
		if err != nil {
			if created {
				s.close()
			}
			return err
		}
		if created {
			m.register(s)
		}
		return nil
	})
	return runID, err
}

// Control runs fn against an existing session's controller under the session lock.
func (m *Manager) Control(ctx context.Context, sessionID string, fn func(*playback.Controller) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.Get(sessionID)
		if err != nil {
			return err
		}
		return fn(s.Controller)
	})
}

// Delete cancels the session's run and forgets the session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.smu.Lock()
		s, ok := m.sessions[sessionID]
		delete(m.sessions, sessionID)
		m.smu.Unlock()

		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		s.close()
		m.logger.Debug("session deleted", "session_id", sessionID)
		return nil
	})
}

// List returns the IDs of open sessions, sorted.
func (m *Manager) List() []string {
	m.smu.RLock()
	defer m.smu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close cancels every session's run and forgets all sessions.
func (m *Manager) Close() error {
	m.smu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.smu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	return nil
}

func (s *Session) close() {
	s.Controller.Cancel()
	for _, unsub := range s.unsubscribe {
		unsub()
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
