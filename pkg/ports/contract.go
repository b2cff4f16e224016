package ports

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWorkingStateContract runs a suite of tests to verify that a WorkingState
// implementation adheres to the interface contract.
//
// newState must return a fresh instance each call. valid must apply cleanly to
// it and change its serialized form; invalid must be rejected.
func RunWorkingStateContract(t *testing.T, newState func() WorkingState, valid, invalid domain.Step) {
	t.Helper()

	encode := func(ws WorkingState) string {
		data, err := json.Marshal(ws)
		require.NoError(t, err, "working state should be JSON serializable")
		return string(data)
	}

	t.Run("Clone is deep", func(t *testing.T) {
		ws := newState()
		clone := ws.Clone()
		before := encode(clone)

		require.NoError(t, ws.Apply(valid))
		assert.Equal(t, before, encode(clone), "mutating the original must not affect the clone")
	})

	t.Run("Clone is independent of later clones", func(t *testing.T) {
		ws := newState()
		clone := ws.Clone()
		require.NoError(t, clone.Apply(valid))
		assert.NotEqual(t, encode(ws), encode(clone), "mutating the clone must not affect the original")
	})

	t.Run("Valid step mutates", func(t *testing.T) {
		ws := newState()
		before := encode(ws)
		require.NoError(t, ws.Apply(valid))
		assert.NotEqual(t, before, encode(ws))
	})

	t.Run("Invalid step is atomic", func(t *testing.T) {
		ws := newState()
		before := encode(ws)
		err := ws.Apply(invalid)
		require.Error(t, err, "invalid step should be rejected")
		assert.Equal(t, before, encode(ws), "rejected step must not partially apply")
	})
}
