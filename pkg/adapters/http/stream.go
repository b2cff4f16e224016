package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// DefaultStreamBuffer is the per-client event backlog before a client is dropped.
const DefaultStreamBuffer = 64

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

// Source is where a stream attaches for a session; *playback.Controller satisfies it.
type Source interface {
	Subscribe(obs ports.Observer) func()
}

// StreamManager fans snapshots of a session out to its SSE clients.
// It observes a session only while at least one client is connected.
type StreamManager struct {
	mu          sync.Mutex
	subscribers map[string]map[chan Event]struct{} // SessionID -> Set of Channels
	detach      map[string]func()
	buffer      int
	onDrop      func()
	logger      *slog.Logger
}

// StreamOption configures a StreamManager.
type StreamOption func(*StreamManager)

// WithStreamBuffer sets the per-client backlog.
func WithStreamBuffer(n int) StreamOption {
	return func(sm *StreamManager) {
		if n > 0 {
			sm.buffer = n
		}
	}
}

// WithDropHook is called each time a slow client is dropped.
func WithDropHook(fn func()) StreamOption {
	return func(sm *StreamManager) {
		sm.onDrop = fn
	}
}

// WithStreamLogger sets the logger.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(sm *StreamManager) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

func NewStreamManager(opts ...StreamOption) *StreamManager {
	sm := &StreamManager{
		subscribers: make(map[string]map[chan Event]struct{}),
		detach:      make(map[string]func()),
		buffer:      DefaultStreamBuffer,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Subscribe registers a client for sessionID, attaching to src if this is
// the session's first client. The channel is closed when the client is
// dropped for falling behind or when cancel is called.
func (sm *StreamManager) Subscribe(sessionID string, src Source) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, sm.buffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan Event]struct{})
		sm.detach[sessionID] = src.Subscribe(&streamObserver{sm: sm, sessionID: sessionID})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.removeLocked(sessionID, ch)
	}
}

func (sm *StreamManager) removeLocked(sessionID string, ch chan Event) {
	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(sm.subscribers, sessionID)
		if detach := sm.detach[sessionID]; detach != nil {
			detach()
		}
		delete(sm.detach, sessionID)
	}
}

// Clients returns the number of connected clients for sessionID.
func (sm *StreamManager) Clients(sessionID string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast delivers ev to every client of sessionID without blocking.
func (sm *StreamManager) Broadcast(sessionID string, ev Event) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- ev:
		default:
			// Slow client: drop it rather than stall the run.
			sm.logger.Warn("SSE: client buffer full, dropping client", "session_id", sessionID)
			sm.removeLocked(sessionID, ch)
			if sm.onDrop != nil {
				sm.onDrop()
			}
		}
	}
}

type streamObserver struct {
	sm        *StreamManager
	sessionID string
}

func (o *streamObserver) OnSnapshot(snap domain.Snapshot) {
	o.send("snapshot", snap)
}

func (o *streamObserver) OnOutcome(outcome domain.Outcome) {
	o.send("outcome", outcome)
}

func (o *streamObserver) send(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		o.sm.logger.Error("SSE: encode failed", "session_id", o.sessionID, "event", name, "err", err)
		return
	}
	o.sm.Broadcast(o.sessionID, Event{Name: name, Data: data})
}
