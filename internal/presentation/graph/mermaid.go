package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/workspace"
)

// Overlay contains dynamic state data to visualize on the graph.
// Vertex indices come from the snapshot marks.
type Overlay struct {
	Current []int
	Source  []int
}

// OverlayFromMarks picks the roles the diagram knows from a snapshot's marks.
func OverlayFromMarks(m domain.Marks) *Overlay {
	if len(m) == 0 {
		return nil
	}
	return &Overlay{Current: m["current"], Source: m["source"]}
}

// GenerateMermaid produces a Mermaid flowchart of a graph workspace.
// It applies semantic styling:
// - Vertex label: index and current distance (∞ when unreached)
// - Tree edge (v's parent to v): thick arrow
// - Other edges: plain arrow labelled with the weight
// Visited vertices and the overlay's current vertices get their own classes.
func GenerateMermaid(g *workspace.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for v := 0; v < g.Len(); v++ {
		dist := "∞"
		if g.Dist[v] != workspace.Unreached {
			dist = fmt.Sprint(g.Dist[v])
		}
		opener, closer := "[", "]"
		if overlay != nil && slices.Contains(overlay.Source, v) {
			opener, closer = "((", "))" // Circle
		}
		fmt.Fprintf(&sb, "    %s%s\"%d <br/> d=%s\"%s\n", vertexID(v), opener, v, dist, closer)
	}

	for v := 0; v < g.Len(); v++ {
		for _, e := range g.Adjacency[v] {
			arrow := fmt.Sprintf("-- %d -->", e.Weight)
			if e.To < g.Len() && g.Parent[e.To] == v {
				arrow = fmt.Sprintf("== %d ==>", e.Weight)
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", vertexID(v), arrow, vertexID(e.To))
		}
	}

	visited := make([]string, 0, g.Len())
	for v, ok := range g.Visited {
		if ok {
			visited = append(visited, vertexID(v))
		}
	}
	var current []string
	if overlay != nil {
		for _, v := range overlay.Current {
			current = append(current, vertexID(v))
		}
	}
	if len(visited) == 0 && len(current) == 0 {
		return sb.String()
	}

	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	if len(visited) > 0 {
		fmt.Fprintf(&sb, "    class %s visited;\n", strings.Join(visited, ","))
	}
	if len(current) > 0 {
		fmt.Fprintf(&sb, "    class %s current;\n", strings.Join(current, ","))
	}
	return sb.String()
}

func vertexID(v int) string {
	return fmt.Sprintf("v%d", v)
}
