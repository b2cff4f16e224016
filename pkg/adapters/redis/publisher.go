package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Envelope is the JSON payload written to Redis.
type Envelope struct {
	Type      string           `json:"type"` // "snapshot" or "outcome"
	SessionID string           `json:"session_id"`
	Snapshot  *domain.Snapshot `json:"snapshot,omitempty"`
	Outcome   *domain.Outcome  `json:"outcome,omitempty"`
}

// Publisher writes snapshots and outcomes to Redis from a background loop.
// Observers it hands out never block the run: when the queue is full the
// event is dropped and counted.
type Publisher struct {
	client  backend.UniversalClient
	prefix  string
	ttl     time.Duration
	history int64
	queue   chan Envelope
	onDrop  func()
	logger  *slog.Logger

	// Generation last written to each history list; owned by Run.
	generations map[string]uint64
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPrefix sets the key prefix (default "tempo:").
func WithPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithTTL sets the expiration of latest, history and outcome keys (0 keeps them).
func WithTTL(ttl time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.ttl = ttl
	}
}

// WithHistory sets how many envelopes the history list keeps (default 16).
func WithHistory(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.history = int64(n)
		}
	}
}

// WithBuffer sets the queue capacity (default 256).
func WithBuffer(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan Envelope, n)
		}
	}
}

// WithDropHook is called once per dropped event.
func WithDropHook(fn func()) PublisherOption {
	return func(p *Publisher) {
		p.onDrop = fn
	}
}

// WithLogger configures the logger for write failures.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a Publisher. Nothing is written until Run is started.
func NewPublisher(client backend.UniversalClient, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		prefix:  "tempo:",
		history: 16,
		queue:   make(chan Envelope, 256),
		logger:  logging.NewNop(),

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// For returns an observer that publishes under sessionID.
func (p *Publisher) For(sessionID string) ports.Observer {
	return &sessionObserver{pub: p, id: sessionID}
}

// Run writes queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-p.queue:
			if err := p.write(ctx, env); err != nil {
				p.logger.Warn("failed to publish to redis", "session_id", env.SessionID, "err", err)
			}
		}
	}
}

func (p *Publisher) enqueue(env Envelope) {
	select {
	case p.queue <- env:
	default:
		if p.onDrop != nil {
			p.onDrop()
		}
	}
}

func (p *Publisher) key(kind, sessionID string) string {
	return p.prefix + kind + ":" + sessionID
}

// Channel returns the pub/sub channel of sessionID.
func (p *Publisher) Channel(sessionID string) string {
	return p.key("events", sessionID)
}

func (p *Publisher) write(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", env.Type, err)
	}

	_, err = p.client.Pipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Publish(ctx, p.Channel(env.SessionID), data)
		if env.Outcome != nil {
			pipe.Set(ctx, p.key("outcome", env.SessionID), data, p.ttl)
			return nil
		}
		pipe.Set(ctx, p.key("latest", env.SessionID), data, p.ttl)
		history := p.key("history", env.SessionID)
		// The list holds one run at a time.
		if gen := env.Snapshot.Generation; env.Snapshot.Seq == 1 || p.generations[env.SessionID] != gen {
			pipe.Del(ctx, history)
			p.generations[env.SessionID] = gen
		}
		pipe.RPush(ctx, history, data)
		pipe.LTrim(ctx, history, -p.history, -1)
		if p.ttl > 0 {
			pipe.Expire(ctx, history, p.ttl)
		}
		return nil
	})
	return err
}

// Latest returns the latest snapshot envelope of sessionID.
func (p *Publisher) Latest(ctx context.Context, sessionID string) (Envelope, error) {
	var env Envelope
	data, err := p.client.Get(ctx, p.key("latest", sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return env, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return env, nil
}

// History returns the retained envelopes of sessionID, oldest first.
func (p *Publisher) History(ctx context.Context, sessionID string) ([]Envelope, error) {
	items, err := p.client.LRange(ctx, p.key("history", sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Envelope, 0, len(items))
	for _, item := range items {
		var env Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		out = append(out, env)
	}
	return out, nil
}

type sessionObserver struct {
	pub *Publisher
	id  string
}

func (o *sessionObserver) OnSnapshot(s domain.Snapshot) {
	o.pub.enqueue(Envelope{Type: "snapshot", SessionID: o.id, Snapshot: &s})
}

func (o *sessionObserver) OnOutcome(out domain.Outcome) {
	o.pub.enqueue(Envelope{Type: "outcome", SessionID: o.id, Outcome: &out})
}
