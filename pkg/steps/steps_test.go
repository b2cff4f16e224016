package steps

import (
	"errors"
	"testing"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, src interface {
	Next() (domain.Step, bool, error)
}) ([]domain.Step, error) {
	t.Helper()
	var out []domain.Step
	for {
		s, ok, err := src.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, s)
	}
}

// countdown emits n..1 recursively to show nested producers flatten.
func countdown(n int) Seq {
	return func(yield func(domain.Step, error) bool) {
		if n == 0 {
			return
		}
		if !yield(domain.Step{Op: domain.OpNote, Indices: []int{n}}, nil) {
			return
		}
		for s, err := range countdown(n - 1) {
			if !yield(s, err) {
				return
			}
		}
	}
}

func TestFromSeq_FlattensRecursion(t *testing.T) {
	got, err := drain(t, FromSeq(countdown(4)))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, s := range got {
		assert.Equal(t, []int{4 - i}, s.Indices)
	}
}

func TestFromSeq_IsLazy(t *testing.T) {
	produced := 0
	seq := func(yield func(domain.Step, error) bool) {
		for i := 0; i < 100; i++ {
			produced++
			if !yield(domain.Step{Op: domain.OpNote}, nil) {
				return
			}
		}
	}

	src := FromSeq(seq)
	_, ok, err := src.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, produced, "only the requested step is produced")

	src.Stop()
	_, ok, _ = src.Next()
	assert.False(t, ok, "stopped source is exhausted")
	src.Stop()
}

func TestFromSeq_ErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	src := FromSeq(Concat(Of(domain.Step{Op: domain.OpNote}), Fail(boom), Of(domain.Step{Op: domain.OpMark})))

	got, err := drain(t, src)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)

	_, ok, err := src.Next()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestFromSeq_PanicBecomesError(t *testing.T) {
	src := FromSeq(func(yield func(domain.Step, error) bool) {
		yield(domain.Step{Op: domain.OpNote}, nil)
		var arr []int
		_ = arr[3]
	})

	got, err := drain(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Len(t, got, 1)
}

func TestFromSlice_And_Collect(t *testing.T) {
	list := []domain.Step{{Op: domain.OpSwap, Indices: []int{0, 1}}, {Op: domain.OpCompare, Indices: []int{1, 2}}}
	got, err := drain(t, FromSlice(list...))
	require.NoError(t, err)
	assert.Equal(t, list, got)

	collected, err := Collect(Concat(Of(list[0]), Of(list[1])))
	require.NoError(t, err)
	assert.Equal(t, list, collected)
}
