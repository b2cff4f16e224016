// Package testutils holds fixtures shared by tests that read scenario presets.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// TinyScenario is an insertion sort preset that needs a single swap.
const TinyScenario = `---
algorithm: insertion
description: Three values
speed: 900
input:
  values: [2, 1, 3]
---
Only one swap is needed.`

// ScenarioRepo initializes a strict Loam repository in a temp dir and writes
// docs (file name to content) into it. It returns the absolute directory and
// the repository, failing the test on any error.
func ScenarioRepo(t *testing.T, docs map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	opts = append([]loam.Option{loam.WithStrict(true)}, opts...)
	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644), "Failed to seed %s", name)
	}
	return dir, repo
}
