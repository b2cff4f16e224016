package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(opts ...session.Option) *session.Manager {
	opts = append([]session.Option{session.WithControllerOptions(playback.WithSpeed(0))}, opts...)
	return session.NewManager(algorithms.Default(), opts...)
}

func TestManager_OpenGetDelete(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	s, err := m.Open(ctx, "alice", "quick")
	require.NoError(t, err)
	assert.Equal(t, "quick", s.Controller.Definition().Name())

	again, err := m.Open(ctx, "alice", "")
	require.NoError(t, err)
	assert.Same(t, s, again)

	_, err = m.Open(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, m.List())

	require.NoError(t, m.Delete(ctx, "alice"))
	_, err = m.Get("alice")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "alice"), domain.ErrSessionNotFound)
}

func TestManager_OpenValidates(t *testing.T) {
	m := newManager()
	_, err := m.Open(context.Background(), "x", "bogosort")
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)
	_, err = m.Open(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, m.List())
}

func TestManager_StartSwitchesAlgorithm(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	runID, err := m.Start(ctx, "s1", "bubble", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	s, err := m.Get("s1")
	require.NoError(t, err)
	o, err := s.Controller.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, o.Status)
	assert.Equal(t, "bubble", o.Algorithm)

	_, err = m.Start(ctx, "s1", "kmp", nil)
	require.NoError(t, err)
	o, err = s.Controller.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kmp", o.Algorithm)

	_, err = m.Start(ctx, "s1", "", map[string]any{"text": "abc", "pattern": "b"})
	require.NoError(t, err)
	o, err = s.Controller.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kmp", o.Algorithm, "empty algorithm keeps the current one")
}

func TestManager_RejectedStartLeavesNoSession(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", "bubble", map[string]any{"values": []int{}}, playback.WithStartSpeed(900))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = m.Get("s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Empty(t, m.List())

	_, err = m.Start(ctx, "s1", "bubble", map[string]any{"values": []int{2, 1}}, playback.WithStartSpeed(25))
	require.NoError(t, err)
	s, err := m.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, 25, s.Controller.Speed())
	_, err = s.Controller.Wait(ctx)
	require.NoError(t, err)

	_, err = m.Start(ctx, "s1", "", map[string]any{"values": "nope"}, playback.WithStartSpeed(900))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 25, s.Controller.Speed())
	assert.Equal(t, []string{"s1"}, m.List())
}

func TestManager_Control(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	err := m.Control(ctx, "ghost", func(*playback.Controller) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = m.Open(ctx, "s1", "")
	require.NoError(t, err)
	err = m.Control(ctx, "s1", func(c *playback.Controller) error { return c.Pause() })
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

type countingObserver struct {
	mu sync.Mutex
	n  int
}

func (o *countingObserver) OnSnapshot(domain.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.n++
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.n
}

func TestManager_ObserversFollowSessions(t *testing.T) {
	obs := &countingObserver{}
	var opened []string
	m := newManager(session.WithObserver(func(id string) ports.Observer {
		opened = append(opened, id)
		return obs
	}))
	ctx := context.Background()

	_, err := m.Start(ctx, "s1", "bubble", map[string]any{"values": []int{2, 1}})
	require.NoError(t, err)
	s, _ := m.Get("s1")
	_, err = s.Controller.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, opened)
	assert.Equal(t, 3, obs.count(), "compare, swap, done")

	require.NoError(t, m.Delete(ctx, "s1"))
	_, err = s.Controller.Start(ctx, map[string]any{"values": []int{2, 1}})
	require.NoError(t, err)
	_, err = s.Controller.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, obs.count(), "deleted sessions are unsubscribed")
}

func TestManager_Locking(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, id, func(context.Context) error {
				mu.Lock()
				inside++
				maxInside = max(maxInside, inside)
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside, "WithLock must serialize a session")
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked int
	err      error
	ttl      time.Duration
}

func (l *fakeLocker) Lock(_ context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, key)
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked++
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &fakeLocker{}
	m := newManager(session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	ctx := context.Background()

	_, err := m.Open(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)
	assert.Equal(t, 5*time.Second, locker.ttl)

	locker.err = errors.New("redis down")
	_, err = m.Open(ctx, "s2", "")
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.Equal(t, []string{"s1"}, m.List())
}

func TestManager_Close(t *testing.T) {
	m := session.NewManager(algorithms.Default(), session.WithControllerOptions(playback.WithSpeed(50)))
	ctx := context.Background()
	_, err := m.Start(ctx, "s1", "merge", nil)
	require.NoError(t, err)
	s, _ := m.Get("s1")

	require.NoError(t, m.Close())
	assert.Empty(t, m.List())
	assert.Equal(t, domain.StateIdle, s.Controller.State())
}
