package tempo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tempo"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Play(t *testing.T) {
	eng := tempo.New(tempo.WithSpeed(0))

	var mu sync.Mutex
	var seqs []uint64
	outcome, err := eng.Play(context.Background(), "quick", map[string]any{"values": []int{5, 3, 1, 4}},
		ports.ObserverFunc(func(s domain.Snapshot) {
			mu.Lock()
			seqs = append(seqs, s.Seq)
			mu.Unlock()
		}))
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, outcome.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, outcome.Steps)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestEngine_PlayCancelledByContext(t *testing.T) {
	eng := tempo.New(tempo.WithSpeed(domain.MaxSpeed))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := eng.Play(ctx, "bubble", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StateCancelled, outcome.Status)
}

func TestEngine_Errors(t *testing.T) {
	eng := tempo.New()

	_, err := eng.Play(context.Background(), "bogosort", nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)

	_, err = eng.Play(context.Background(), "bubble", map[string]any{"values": "abc"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_Sessions(t *testing.T) {
	cat := algorithms.NewCatalog()
	cat.Register(algorithms.Insertion())
	eng := tempo.New(tempo.WithCatalog(cat), tempo.WithSpeed(7), tempo.WithWindow(2))

	m := eng.Sessions()
	defer m.Close()
	s, err := m.Open(context.Background(), "a", "")
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm, "default algorithm is not in this catalog")
	assert.Nil(t, s)

	s, err = m.Open(context.Background(), "a", "insertion")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Controller.Speed())

	c, err := eng.Controller("insertion")
	require.NoError(t, err)
	c.SetSpeed(0)
	_, err = c.Start(context.Background(), map[string]any{"values": []int{3, 2, 1}})
	require.NoError(t, err)
	_, err = c.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.History(0), 2)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, tempo.Version)
}
