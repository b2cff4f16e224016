package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tempo/internal/presentation/graph"
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/workspace"
)

// Summary describes a finished run as markdown.
func Summary(o domain.Outcome, last domain.Snapshot, notes string) string {
	var b strings.Builder

	status := string(o.Status)
	if o.Failed() {
		status = "failed"
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", o.Algorithm, status)
	if notes != "" {
		fmt.Fprintf(&b, "%s\n\n", notes)
	}
	fmt.Fprintf(&b, "- **Run:** `%s` (generation %d)\n", o.RunID, o.Generation)
	fmt.Fprintf(&b, "- **Steps:** %d\n", o.Steps)
	if last.Phase != "" {
		fmt.Fprintf(&b, "- **Last phase:** %s\n", last.Phase)
	}
	if o.Failed() {
		fmt.Fprintf(&b, "\n> **Error:** %s\n", o.Error)
	}

	if len(last.Counters) > 0 {
		b.WriteString("\n| Operation | Count |\n|---|---:|\n")
		for _, k := range slices.Sorted(maps.Keys(last.Counters)) {
			fmt.Fprintf(&b, "| %s | %d |\n", k, last.Counters[k])
		}
	}

	if g, ok := last.State.(*workspace.Graph); ok {
		fmt.Fprintf(&b, "\n```mermaid\n%s```\n", graph.GenerateMermaid(g, graph.OverlayFromMarks(last.Marks)))
	}
	return b.String()
}
