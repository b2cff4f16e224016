// Package token implements per-run cancellation tokens.
//
// A Source mints tokens in strictly increasing generations. At most one token
// is current at a time: minting a new token, or invalidating the current one,
// makes the previous token stale forever. Staleness is observable both by
// polling (Stale) and by waiting (Done), so blocked runs wake immediately
// instead of polling on an interval.
package token

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Token is the identity of one run.
type Token struct {
	gen   uint64
	runID string
	done  chan struct{}
}

// Generation returns the monotonically increasing mint number.
func (t *Token) Generation() uint64 {
	if t == nil {
		return 0
	}
	return t.gen
}

// RunID returns the unique run identifier carried by the token.
func (t *Token) RunID() string {
	if t == nil {
		return ""
	}
	return t.runID
}

// Done returns a channel that is closed once the token is stale.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Stale reports whether the token has been superseded or invalidated.
// A nil token is always stale.
func (t *Token) Stale() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Token) String() string {
	if t == nil {
		return "token(nil)"
	}
	return fmt.Sprintf("token(%d/%s)", t.gen, t.runID)
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... for deterministic tests.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a deterministic ID generator.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next ID in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Source mints tokens. It is safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	current *Token
	gen     uint64
	ids     IDGenerator
}

// Option configures a Source.
type Option func(*Source)

// WithIDGenerator overrides the run ID generator (default: UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Source) {
		s.ids = g
	}
}

// NewSource creates a Source with no current token.
func NewSource(opts ...Option) *Source {
	s := &Source{ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint creates the new current token, making the previous one stale.
func (s *Source) Mint() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		close(s.current.done)
	}
	s.gen++
	s.current = &Token{
		gen:   s.gen,
		runID: s.ids.Generate(),
		done:  make(chan struct{}),
	}
	return s.current
}

// Invalidate makes t stale if it is the current token.
// It reports whether anything changed; invalidating a stale token is a no-op.
func (s *Source) Invalidate(t *Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t == nil || s.current != t {
		return false
	}
	close(t.done)
	s.current = nil
	return true
}

// InvalidateCurrent makes whichever token is current stale.
func (s *Source) InvalidateCurrent() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.current
	if t != nil {
		close(t.done)
		s.current = nil
	}
	return t
}

// IsStale reports whether t is no longer the current token.
func (s *Source) IsStale(t *Token) bool {
	return t.Stale()
}

// Current returns the current token, or nil when none is active.
func (s *Source) Current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Generation returns the number of tokens minted so far.
func (s *Source) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
