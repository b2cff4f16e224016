package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tempo/internal/config"
	"github.com/aretw0/tempo/internal/testutils"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestPlay_RunsToCompletion(t *testing.T) {
	var out, logs bytes.Buffer
	err := Play(context.Background(), PlayOptions{
		Algorithm: "insertion",
		Input:     `{"values": [3, 1, 2]}`,
		Speed:     intPtr(0),
		Config:    config.Default(),
		Out:       &out,
		Err:       &logs,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "insertion")
	assert.Contains(t, text, "completed")
	assert.NotContains(t, text, "\x1b[2J", "plain output never clears the screen")
}

func TestPlay_QuitKeyCancels(t *testing.T) {
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- Play(context.Background(), PlayOptions{
			Algorithm: "bubble",
			Speed:     intPtr(domain.MaxSpeed),
			Config:    config.Default(),
			Out:       &out,
			Err:       &bytes.Buffer{},
			In:        strings.NewReader("q"),
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("quit key did not stop playback")
	}
	assert.Contains(t, out.String(), "cancelled")
}

func TestPlay_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := Play(ctx, PlayOptions{
		Algorithm: "bubble",
		Speed:     intPtr(domain.MaxSpeed),
		Config:    config.Default(),
		Out:       &out,
		Err:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "cancelled")
}

func TestPlay_Errors(t *testing.T) {
	base := PlayOptions{Config: config.Default(), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}

	opts := base
	err := Play(context.Background(), opts)
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)

	opts = base
	opts.Algorithm = "bogosort"
	err = Play(context.Background(), opts)
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)

	opts = base
	opts.Algorithm = "insertion"
	opts.Input = `{"values": "nope"}`
	err = Play(context.Background(), opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	opts = base
	opts.Algorithm = "insertion"
	opts.Input = `{not json`
	assert.Error(t, Play(context.Background(), opts))

	opts = base
	opts.Config.LogLevel = "loud"
	opts.Algorithm = "insertion"
	assert.Error(t, Play(context.Background(), opts))
}

func scenarioDir(t *testing.T) string {
	t.Helper()
	dir, _ := testutils.ScenarioRepo(t, map[string]string{"tiny.md": testutils.TinyScenario})
	return dir
}

func TestResolveJob_Scenario(t *testing.T) {
	cfg := config.Default()
	cfg.Scenarios.Dir = scenarioDir(t)
	ctx := context.Background()

	job, err := resolveJob(ctx, PlayOptions{Scenario: "tiny", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "insertion", job.algorithm)
	assert.Equal(t, 900, job.speed)
	assert.Equal(t, "Only one swap is needed.", job.notes)
	assert.Len(t, job.input["values"], 3)

	job, err = resolveJob(ctx, PlayOptions{Scenario: "tiny", Config: cfg, Speed: intPtr(5000), Input: `{"values": [9]}`})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxSpeed, job.speed, "flag speed wins and is clamped")
	assert.Len(t, job.input["values"], 1, "flag input wins")

	_, err = resolveJob(ctx, PlayOptions{Scenario: "tiny", Algorithm: "bubble", Config: cfg})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = resolveJob(ctx, PlayOptions{Scenario: "missing", Config: cfg})
	assert.Error(t, err)
}

func TestPlay_Scenario(t *testing.T) {
	cfg := config.Default()
	cfg.Scenarios.Dir = scenarioDir(t)

	var out bytes.Buffer
	err := Play(context.Background(), PlayOptions{
		Scenario: "tiny",
		Speed:    intPtr(0),
		Config:   cfg,
		Out:      &out,
		Err:      &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Only one swap is needed.")
}

func TestPlayObserver_KeepsLatestFrame(t *testing.T) {
	o := newPlayObserver()
	for i := 1; i <= 5; i++ {
		o.OnSnapshot(domain.Snapshot{Seq: uint64(i)})
	}
	snap := <-o.frames
	assert.Equal(t, uint64(5), snap.Seq)
	assert.Empty(t, o.frames)
}

func TestPlayObserver_DropStale(t *testing.T) {
	o := newPlayObserver()
	o.OnSnapshot(domain.Snapshot{RunID: "old", Seq: 7})
	o.dropStale("new")
	assert.Empty(t, o.frames, "frames of a replaced run are discarded")

	o.OnSnapshot(domain.Snapshot{RunID: "new", Seq: 1})
	o.dropStale("new")
	require.Len(t, o.frames, 1)
	assert.Equal(t, "new", (<-o.frames).RunID)
}

func TestPlay_ReleasesKeyReader(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	err = Play(context.Background(), PlayOptions{
		Algorithm: "insertion",
		Input:     `{"values": [2, 1]}`,
		Speed:     intPtr(0),
		Config:    config.Default(),
		Out:       &bytes.Buffer{},
		Err:       &bytes.Buffer{},
		In:        r,
	})
	require.NoError(t, err)

	// The reader goroutine is gone and the pipe is readable again.
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	buf := make([]byte, 1)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('x'), buf[0])
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{&buf}.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a\r\nb\r\n", buf.String())
}
