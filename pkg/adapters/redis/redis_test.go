package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tempo/pkg/adapters/redis"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func snapshot(seq uint64) domain.Snapshot {
	return domain.Snapshot{
		RunID:      "run-1",
		Generation: 1,
		Seq:        seq,
		Algorithm:  "bubble",
		Op:         domain.OpCompare,
		State:      map[string]any{"values": []int{2, 1}},
	}
}

func TestPublisher_WritesSnapshots(t *testing.T) {
	mr, client := setup(t)
	pub := redis.NewPublisher(client, redis.WithPrefix("test:"), redis.WithHistory(2), redis.WithTTL(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := client.Subscribe(ctx, pub.Channel("s1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	go func() { _ = pub.Run(ctx) }()

	obs := pub.For("s1")
	for seq := uint64(1); seq <= 3; seq++ {
		obs.OnSnapshot(snapshot(seq))
	}

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"type":"snapshot"`)
	assert.Contains(t, msg.Payload, `"session_id":"s1"`)

	require.Eventually(t, func() bool {
		env, err := pub.Latest(ctx, "s1")
		return err == nil && env.Snapshot.Seq == 3
	}, time.Second, 5*time.Millisecond)

	history, err := pub.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2, "history is trimmed")
	assert.Equal(t, uint64(2), history[0].Snapshot.Seq)
	assert.Equal(t, uint64(3), history[1].Snapshot.Seq)

	assert.Equal(t, time.Minute, mr.TTL("test:latest:s1"))
	assert.Equal(t, time.Minute, mr.TTL("test:history:s1"))
}

func TestPublisher_HistoryHoldsOneRun(t *testing.T) {
	_, client := setup(t)
	pub := redis.NewPublisher(client, redis.WithHistory(8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	obs := pub.For("s1")
	for seq := uint64(1); seq <= 3; seq++ {
		obs.OnSnapshot(snapshot(seq))
	}
	next := snapshot(1)
	next.RunID, next.Generation = "run-2", 2
	obs.OnSnapshot(next)

	var history []redis.Envelope
	require.Eventually(t, func() bool {
		var err error
		history, err = pub.History(ctx, "s1")
		return err == nil && len(history) > 0 && history[len(history)-1].Snapshot.RunID == "run-2"
	}, time.Second, 5*time.Millisecond)
	require.Len(t, history, 1, "a new run starts a fresh history")
}

func TestPublisher_Outcome(t *testing.T) {
	mr, client := setup(t)
	pub := redis.NewPublisher(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	obs := pub.For("s1").(ports.OutcomeObserver)
	obs.OnOutcome(domain.Outcome{RunID: "run-1", Status: domain.StateCompleted, Steps: 4})

	require.Eventually(t, func() bool { return mr.Exists("tempo:outcome:s1") }, time.Second, 5*time.Millisecond)
	value, err := mr.Get("tempo:outcome:s1")
	require.NoError(t, err)
	assert.Contains(t, value, `"status":"completed"`)
	assert.False(t, mr.Exists("tempo:latest:s1"))
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	_, client := setup(t)
	dropped := 0
	pub := redis.NewPublisher(client, redis.WithBuffer(2), redis.WithDropHook(func() { dropped++ }))

	obs := pub.For("s1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for seq := uint64(1); seq <= 5; seq++ {
			obs.OnSnapshot(snapshot(seq))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer blocked on a full queue")
	}
	assert.Equal(t, 3, dropped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()
	require.Eventually(t, func() bool {
		history, err := pub.History(ctx, "s1")
		return err == nil && len(history) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_LatestMissing(t *testing.T) {
	_, client := setup(t)
	pub := redis.NewPublisher(client)
	_, err := pub.Latest(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestPublisher_FollowsControllerRun(t *testing.T) {
	_, client := setup(t)
	pub := redis.NewPublisher(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	m := session.NewManager(algorithms.Default(),
		session.WithObserver(func(id string) ports.Observer { return pub.For(id) }),
	)
	s, err := m.Open(ctx, "live", "bubble")
	require.NoError(t, err)
	s.Controller.SetSpeed(0)
	_, err = m.Start(ctx, "live", "", map[string]any{"values": []int{2, 1}})
	require.NoError(t, err)
	_, err = s.Controller.Wait(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		env, err := pub.Latest(ctx, "live")
		return err == nil && env.Snapshot.Seq == 3
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return client.Exists(ctx, "tempo:outcome:live").Val() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLocker(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:", redis.WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:s1"))

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "s1", time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:s1"))

	again, err := locker.Lock(ctx, "s1", time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocker_ExpiredLockIsNotStolen(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:", redis.WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	first, err := locker.Lock(ctx, "s1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	second, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	err = first(ctx)
	assert.True(t, errors.Is(err, redis.ErrLockLost))
	assert.True(t, mr.Exists("test:lock:s1"), "the new holder keeps its lock")
	require.NoError(t, second(ctx))
}

func TestLocker_SerializesSessions(t *testing.T) {
	_, client := setup(t)
	locker := redis.NewLocker(client, "test:", redis.WithRetryInterval(2*time.Millisecond))
	m := session.NewManager(algorithms.Default(), session.WithLocker(locker))
	ctx := context.Background()

	_, err := m.Open(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, m.List())
}
