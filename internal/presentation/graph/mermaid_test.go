package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tempo/internal/presentation/graph"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle(t *testing.T) *workspace.Graph {
	t.Helper()
	g := workspace.NewGraph([][]workspace.Edge{
		{{To: 1, Weight: 4}, {To: 2, Weight: 1}},
		{},
		{{To: 1, Weight: 2}},
	})
	require.NoError(t, g.Apply(domain.Step{Op: domain.OpRelax, Indices: []int{0}, Values: []int{0}}))
	require.NoError(t, g.Apply(domain.Step{Op: domain.OpVisit, Indices: []int{0}}))
	require.NoError(t, g.Apply(domain.Step{Op: domain.OpRelax, Indices: []int{2, 0}, Values: []int{1}}))
	return g
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Vertices And Distances",
			contains: []string{
				"graph LR",
				`v0["0 <br/> d=0"]`,
				`v1["1 <br/> d=∞"]`,
				`v2["2 <br/> d=1"]`,
			},
		},
		{
			name: "Tree Edges Are Thick",
			contains: []string{
				"v0 == 1 ==> v2",
				"v0 -- 4 --> v1",
				"v2 -- 2 --> v1",
			},
		},
		{
			name:     "Visited Without Overlay",
			contains: []string{"class v0 visited;"},
			excludes: []string{"current;"},
		},
		{
			name:    "Overlay",
			overlay: &graph.Overlay{Current: []int{2}, Source: []int{0}},
			contains: []string{
				`v0(("0 <br/> d=0"))`,
				"class v2 current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(triangle(t), tt.overlay)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestGenerateMermaid_Untouched(t *testing.T) {
	g := workspace.NewGraph([][]workspace.Edge{{}, {}})
	got := graph.GenerateMermaid(g, nil)
	assert.False(t, strings.Contains(got, "classDef"), "no styles without visited or current vertices")
}

func TestOverlayFromMarks(t *testing.T) {
	assert.Nil(t, graph.OverlayFromMarks(nil))
	o := graph.OverlayFromMarks(domain.Marks{"current": {3}, "relax": {1}})
	require.NotNil(t, o)
	assert.Equal(t, []int{3}, o.Current)
	assert.Empty(t, o.Source)
}
