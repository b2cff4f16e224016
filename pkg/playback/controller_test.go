package playback_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/playback"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/aretw0/tempo/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDefinition builds an Array run from input["values"] and a fixed step list.
type fakeDefinition struct {
	name  string
	build func(values []int) steps.Seq
}

func (d *fakeDefinition) Name() string     { return d.name }
func (d *fakeDefinition) Describe() string { return "test definition " + d.name }

func (d *fakeDefinition) Prepare(input map[string]any) (ports.WorkingState, ports.StepSource, error) {
	values, ok := input["values"].([]int)
	if !ok {
		return nil, nil, domain.Invalid("values", "must be a list of integers")
	}
	return workspace.NewArray(values), steps.FromSeq(d.build(values)), nil
}

// threeSteps is the comparison-step definition from the playback examples:
// it sorts [5,3,1,4] in exactly three steps.
func threeSteps() *fakeDefinition {
	return &fakeDefinition{name: "three", build: func([]int) steps.Seq {
		return steps.Of(
			domain.Step{Op: domain.OpCompare, Indices: []int{0, 1}, Marks: domain.Marks{"compare": {0, 1}}},
			domain.Step{Op: domain.OpSwap, Indices: []int{0, 2}},
			domain.Step{Op: domain.OpSwap, Indices: []int{2, 3}},
		)
	}}
}

// compares emits n compare steps over the first two items.
func compares(name string, n int) *fakeDefinition {
	return &fakeDefinition{name: name, build: func([]int) steps.Seq {
		list := make([]domain.Step, n)
		for i := range list {
			list[i] = domain.Step{Op: domain.OpCompare, Indices: []int{0, 1}}
		}
		return steps.Of(list...)
	}}
}

type recorder struct {
	mu       sync.Mutex
	snaps    []domain.Snapshot
	outcomes []domain.Outcome
	onSnap   func(domain.Snapshot)
}

func (r *recorder) OnSnapshot(s domain.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	hook := r.onSnap
	r.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

func (r *recorder) OnOutcome(o domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) snapshots() []domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Snapshot(nil), r.snaps...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) results() []domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Outcome(nil), r.outcomes...)
}

func input(values ...int) map[string]any {
	return map[string]any{"values": values}
}

func waitOutcome(t *testing.T, c *playback.Controller) domain.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := c.Wait(ctx)
	require.NoError(t, err)
	return o
}

func TestController_PauseAfterFirstSnapshotThenResume(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0))
	rec := &recorder{}
	rec.onSnap = func(s domain.Snapshot) {
		if s.Seq == 1 {
			assert.NoError(t, c.Pause())
		}
	}
	c.Subscribe(rec)

	_, err := c.Start(context.Background(), input(5, 3, 1, 4))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.StatePaused, c.State())
	assert.Equal(t, 1, rec.count(), "no step may run while paused")

	snap, ok := c.CurrentSnapshot()
	require.True(t, ok)
	assert.Equal(t, domain.Marks{"compare": {0, 1}}, snap.Marks)
	assert.Equal(t, 1, snap.Counters["compare"])

	require.NoError(t, c.Resume())
	o := waitOutcome(t, c)

	assert.Equal(t, domain.StateCompleted, o.Status)
	assert.False(t, o.Failed())
	assert.Equal(t, 3, o.Steps)
	assert.Equal(t, domain.StateCompleted, c.State())

	snaps := rec.snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, domain.OpSwap, snaps[1].Op)
	assert.Equal(t, []int{1, 3, 5, 4}, snaps[1].State.(*workspace.Array).Values)
	assert.Equal(t, []int{1, 3, 4, 5}, snaps[2].State.(*workspace.Array).Values)

	final, _ := c.CurrentSnapshot()
	assert.True(t, final.Final)
}

func TestController_StartSupersedesActiveRun(t *testing.T) {
	const total = 200
	c := playback.New(compares("a", total), playback.WithSpeed(2))
	rec := &recorder{}
	c.Subscribe(rec)

	runA, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)

	runB, err := c.StartDefinition(context.Background(), threeSteps(), input(5, 3, 1, 4))
	require.NoError(t, err)
	mark := rec.count()
	assert.Equal(t, "three", c.Definition().Name())

	waitOutcome(t, c)
	snaps := rec.snapshots()
	for _, s := range snaps[mark:] {
		assert.Equal(t, runB, s.RunID, "only the new run may be observed after Start returns")
	}

	fromA := 0
	var lastGen uint64
	for _, s := range snaps {
		if s.RunID == runA {
			fromA++
		}
		assert.GreaterOrEqual(t, s.Generation, lastGen, "generations never go backwards")
		lastGen = s.Generation
	}
	assert.Less(t, fromA, total)

	outcomes := rec.results()
	require.Len(t, outcomes, 2)
	assert.Equal(t, runA, outcomes[0].RunID)
	assert.Equal(t, domain.StateCancelled, outcomes[0].Status)
	assert.Equal(t, domain.StateCompleted, outcomes[1].Status)
}

func TestController_NoZombieWritesAfterCancel(t *testing.T) {
	c := playback.New(compares("long", 1000), playback.WithSpeed(5))
	rec := &recorder{}
	c.Subscribe(rec)

	runID, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)

	c.Cancel()
	seen := rec.count()
	assert.Equal(t, domain.StateIdle, c.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, rec.count(), "cancelled run published after Cancel returned")

	o, ok := c.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, runID, o.RunID)
	assert.Equal(t, domain.StateCancelled, o.Status)
	assert.Equal(t, seen, o.Steps)

	snap, ok := c.CurrentSnapshot()
	require.True(t, ok, "cancel keeps the last snapshot readable")
	assert.Equal(t, runID, snap.RunID)
}

func TestController_CancelWhilePaused(t *testing.T) {
	c := playback.New(compares("long", 100), playback.WithSpeed(0))
	rec := &recorder{}
	rec.onSnap = func(s domain.Snapshot) {
		if s.Seq == 2 {
			_ = c.Pause()
		}
	}
	c.Subscribe(rec)

	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State() == domain.StatePaused }, time.Second, time.Millisecond)

	c.Cancel()
	o := waitOutcome(t, c)
	assert.Equal(t, domain.StateCancelled, o.Status)
	assert.Equal(t, 2, rec.count())

	// The next run starts unpaused.
	rec.mu.Lock()
	rec.onSnap = nil
	rec.mu.Unlock()
	_, err = c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	o = waitOutcome(t, c)
	assert.Equal(t, domain.StateCompleted, o.Status)
}

func TestController_PauseHoldsSnapshot(t *testing.T) {
	c := playback.New(compares("long", 10), playback.WithSpeed(0))
	rec := &recorder{}
	rec.onSnap = func(s domain.Snapshot) {
		if s.Seq == 4 {
			_ = c.Pause()
		}
	}
	c.Subscribe(rec)

	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State() == domain.StatePaused }, time.Second, time.Millisecond)

	before, _ := c.CurrentSnapshot()
	require.NoError(t, c.Pause(), "pausing twice is a no-op")
	time.Sleep(20 * time.Millisecond)
	after, _ := c.CurrentSnapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(4), after.Seq)
	assert.Len(t, c.History(0), 4)

	require.NoError(t, c.Resume())
	require.NoError(t, c.Resume(), "resuming twice is a no-op")
	assert.Equal(t, domain.StateCompleted, waitOutcome(t, c).Status)
}

func TestController_StepOnce(t *testing.T) {
	c := playback.New(compares("long", 1000), playback.WithSpeed(5))
	assert.ErrorIs(t, c.StepOnce(), domain.ErrNotRunning)

	rec := &recorder{}
	rec.onSnap = func(s domain.Snapshot) {
		if s.Seq == 1 {
			_ = c.Pause()
		}
	}
	c.Subscribe(rec)
	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.State() == domain.StatePaused }, time.Second, time.Millisecond)

	require.NoError(t, c.StepOnce())
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, rec.count(), "StepOnce advances exactly one step")
	assert.Equal(t, domain.StatePaused, c.State())

	require.NoError(t, c.Resume())
	assert.ErrorIs(t, c.StepOnce(), domain.ErrNotPaused)
	c.Cancel()
}

func TestController_InvalidInputChangesNothing(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0))
	rec := &recorder{}
	c.Subscribe(rec)

	_, err := c.Start(context.Background(), map[string]any{"values": "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, domain.StateIdle, c.State())
	assert.Empty(t, c.RunID())
	_, ok := c.LastOutcome()
	assert.False(t, ok)

	// An active run survives a rejected restart.
	long := playback.New(compares("long", 1000), playback.WithSpeed(5))
	runID, err := long.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	_, err = long.Start(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, runID, long.RunID())
	assert.Equal(t, domain.StateRunning, long.State())
	long.Cancel()
}

func TestController_DefinitionFailureReturnsToIdle(t *testing.T) {
	boom := errors.New("definition exploded")
	def := &fakeDefinition{name: "broken", build: func([]int) steps.Seq {
		return steps.Concat(
			steps.Of(domain.Step{Op: domain.OpCompare, Indices: []int{0, 1}}),
			steps.Fail(boom),
		)
	}}
	c := playback.New(def, playback.WithSpeed(0))
	rec := &recorder{}
	c.Subscribe(rec)

	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	o := waitOutcome(t, c)

	assert.True(t, o.Failed())
	assert.ErrorIs(t, o.Err, boom)
	assert.Equal(t, domain.StateCompleted, o.Status, "completed with error")
	assert.Contains(t, o.Error, "definition exploded")
	assert.Equal(t, domain.StateIdle, c.State())

	outcomes := rec.results()
	require.Len(t, outcomes, 1, "failure surfaces once")
	assert.True(t, outcomes[0].Failed())
}

func TestController_PanicReturnsToIdle(t *testing.T) {
	def := &fakeDefinition{name: "panicky", build: func([]int) steps.Seq {
		return func(yield func(domain.Step, error) bool) {
			yield(domain.Step{Op: domain.OpCompare, Indices: []int{0, 1}}, nil)
			panic("bad generator")
		}
	}}
	c := playback.New(def, playback.WithSpeed(0))

	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	o := waitOutcome(t, c)
	assert.True(t, o.Failed())
	assert.True(t, domain.IsDefinitionError(o.Err))
	assert.Equal(t, domain.StateIdle, c.State())
}

func TestController_ResetIsIdempotent(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0))
	_, err := c.Start(context.Background(), input(5, 3, 1, 4))
	require.NoError(t, err)
	waitOutcome(t, c)
	first, _ := c.LastOutcome()

	c.Reset()
	assert.Equal(t, domain.StateIdle, c.State())
	_, ok := c.CurrentSnapshot()
	assert.False(t, ok)
	assert.Empty(t, c.History(0))

	c.Reset()
	assert.Equal(t, domain.StateIdle, c.State())
	again, _ := c.LastOutcome()
	assert.Equal(t, first, again)

	require.NoError(t, c.Resume(), "resume when not paused is a no-op")
	assert.Equal(t, domain.StateIdle, c.State())
	assert.ErrorIs(t, c.Pause(), domain.ErrNotRunning)
}

func TestController_ResetDuringRun(t *testing.T) {
	c := playback.New(compares("long", 1000), playback.WithSpeed(5))
	rec := &recorder{}
	c.Subscribe(rec)
	_, err := c.Start(context.Background(), input(1, 2))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, time.Millisecond)

	c.Reset()
	seen := rec.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seen, rec.count())
	_, ok := c.CurrentSnapshot()
	assert.False(t, ok)
	o, _ := c.LastOutcome()
	assert.Equal(t, domain.StateCancelled, o.Status)
}

func TestController_CompletionIsDeterministic(t *testing.T) {
	run := func() []domain.Snapshot {
		c := playback.New(threeSteps(), playback.WithSpeed(0))
		rec := &recorder{}
		c.Subscribe(rec)
		_, err := c.Start(context.Background(), input(5, 3, 1, 4))
		require.NoError(t, err)
		waitOutcome(t, c)
		snaps := rec.snapshots()
		for i := range snaps {
			snaps[i].RunID = ""
		}
		return snaps
	}
	assert.Equal(t, run(), run())
}

func TestController_SequentialRunsUseNewTokens(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0), playback.WithIDGenerator(&counter{}))
	var ids []string
	for range 3 {
		id, err := c.Start(context.Background(), input(5, 3, 1, 4))
		require.NoError(t, err)
		o := waitOutcome(t, c)
		assert.Equal(t, id, o.RunID)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"run-1", "run-2", "run-3"}, ids)
	snap, _ := c.CurrentSnapshot()
	assert.Equal(t, uint64(3), snap.Generation)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Generate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("run-%d", c.n)
}

func TestController_SpeedAndHooks(t *testing.T) {
	var mu sync.Mutex
	var events []domain.EventType
	record := func(_ context.Context, ev *domain.RunEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev.Type)
	}
	hooks := domain.LifecycleHooks{
		OnStart:    record,
		OnComplete: record,
		OnSpeed:    record,
	}
	c := playback.New(threeSteps(), playback.WithSpeed(0), playback.WithLifecycleHooks(hooks))

	assert.Equal(t, domain.MaxSpeed, c.SetSpeed(5000))
	assert.Equal(t, domain.MinSpeed, c.SetSpeed(-3))
	assert.Equal(t, 0, c.Speed())

	_, err := c.Start(context.Background(), input(5, 3, 1, 4))
	require.NoError(t, err)
	waitOutcome(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventSpeed, domain.EventSpeed, domain.EventStart, domain.EventComplete}, events)
}

func TestController_WaitWithoutRun(t *testing.T) {
	c := playback.New(threeSteps())
	_, err := c.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

func TestController_CancelAfterCompletion(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0))
	_, err := c.Start(context.Background(), input(5, 3, 1, 4))
	require.NoError(t, err)
	o := waitOutcome(t, c)
	require.Equal(t, domain.StateCompleted, c.State())

	c.Cancel()
	assert.Equal(t, domain.StateIdle, c.State())
	snap, ok := c.CurrentSnapshot()
	require.True(t, ok, "cancel keeps the last snapshot")
	assert.True(t, snap.Final)
	last, _ := c.LastOutcome()
	assert.Equal(t, o, last, "nothing new is reported")
}

func TestController_StartSpeed(t *testing.T) {
	c := playback.New(threeSteps(), playback.WithSpeed(0))

	_, err := c.Start(context.Background(), map[string]any{"values": "nope"}, playback.WithStartSpeed(900))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, c.Speed(), "a rejected start keeps the speed")

	_, err = c.Start(context.Background(), input(5, 3, 1, 4), playback.WithStartSpeed(5000))
	require.NoError(t, err)
	assert.Equal(t, domain.MaxSpeed, c.Speed())
	c.Cancel()
}
