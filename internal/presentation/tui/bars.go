package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/workspace"
	"github.com/muesli/termenv"
)

// Frame is what the play loop draws on each refresh.
type Frame struct {
	Snapshot domain.Snapshot
	State    domain.PlaybackState
	Speed    int
}

// Mark roles in drawing priority order; an index carrying several roles is
// drawn with the first one listed.
var rolePriority = []string{
	"swap", "write", "relax",
	"compare",
	"pivot", "current", "source",
	"found", "sorted", "placed", "path",
	"range", "edge", "prefix", "failure", "text", "pattern",
}

var roleColors = map[string]string{
	"swap": "#f87171", "write": "#f87171", "relax": "#f87171",
	"compare": "#facc15",
	"pivot":   "#c084fc", "current": "#c084fc", "source": "#c084fc",
	"found": "#4ade80", "sorted": "#4ade80", "placed": "#4ade80", "path": "#4ade80",
}

const otherRoleColor = "#60a5fa"

// BarRenderer draws snapshots as text: bars for arrays, tables for grids,
// vertex lists for graphs and aligned pointers for text search.
type BarRenderer struct {
	profile termenv.Profile
	width   int
}

// NewBarRenderer creates a renderer for a terminal of the given width.
// Use termenv.Ascii for uncolored output.
func NewBarRenderer(profile termenv.Profile, width int) *BarRenderer {
	if width < 20 {
		width = 80
	}
	return &BarRenderer{profile: profile, width: width}
}

// Render draws one frame.
func (r *BarRenderer) Render(f Frame) string {
	var b strings.Builder
	snap := f.Snapshot

	header := fmt.Sprintf("%s  #%d  %s", snap.Algorithm, snap.Seq, f.State)
	b.WriteString(r.profile.String(header).Bold().String())
	fmt.Fprintf(&b, "  speed %dms\n", f.Speed)
	if snap.Op != "" || snap.Phase != "" {
		fmt.Fprintf(&b, "%s %s\n", snap.Op, snap.Phase)
	}
	b.WriteString("\n")

	switch st := snap.State.(type) {
	case *workspace.Array:
		r.array(&b, st, snap.Marks)
	case *workspace.Grid:
		r.grid(&b, st, snap.Marks)
	case *workspace.Graph:
		r.graph(&b, st, snap.Marks)
	case *workspace.Text:
		r.text(&b, st, snap.Marks)
	case nil:
		b.WriteString("(no state)\n")
	default:
		fmt.Fprintf(&b, "%v\n", st)
	}

	if len(snap.Counters) > 0 {
		b.WriteString("\n")
		parts := make([]string, 0, len(snap.Counters))
		for _, k := range slices.Sorted(maps.Keys(snap.Counters)) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, snap.Counters[k]))
		}
		b.WriteString(r.profile.String(strings.Join(parts, "  ")).Faint().String())
		b.WriteString("\n")
	}
	return b.String()
}

// roleAt returns the highest-priority role marking idx, or "".
func roleAt(marks domain.Marks, idx int) string {
	for _, role := range rolePriority {
		if slices.Contains(marks[role], idx) {
			return role
		}
	}
	// Roles this renderer does not know still get highlighted.
	for _, role := range marks.Roles() {
		if !slices.Contains(rolePriority, role) && slices.Contains(marks[role], idx) {
			return role
		}
	}
	return ""
}

func (r *BarRenderer) paint(s, role string) string {
	if role == "" {
		return s
	}
	hex, ok := roleColors[role]
	if !ok {
		hex = otherRoleColor
	}
	return r.profile.String(s).Foreground(r.profile.Color(hex)).String()
}

func (r *BarRenderer) array(b *strings.Builder, a *workspace.Array, marks domain.Marks) {
	maxAbs := 1
	for _, v := range a.Values {
		maxAbs = max(maxAbs, abs(v))
	}
	span := r.width - 10
	for i, v := range a.Values {
		n := max(1, abs(v)*span/maxAbs)
		if v == 0 {
			n = 0
		}
		role := roleAt(marks, i)
		bar := strings.Repeat("█", n)
		fmt.Fprintf(b, "%6d %s\n", v, r.paint(bar, role))
	}
}

func (r *BarRenderer) grid(b *strings.Builder, g *workspace.Grid, marks domain.Marks) {
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			cell := fmt.Sprintf("%4d", g.At(row, col))
			b.WriteString(r.paint(cell, roleAt(marks, g.Cell(row, col))))
		}
		b.WriteString("\n")
	}
}

func (r *BarRenderer) graph(b *strings.Builder, g *workspace.Graph, marks domain.Marks) {
	fmt.Fprintf(b, "%6s %6s %6s  %s\n", "vertex", "dist", "parent", "edges")
	for v := 0; v < g.Len(); v++ {
		dist, parent := "∞", "-"
		if g.Dist[v] != workspace.Unreached {
			dist = fmt.Sprint(g.Dist[v])
		}
		if g.Parent[v] != workspace.Unreached {
			parent = fmt.Sprint(g.Parent[v])
		}
		visited := " "
		if g.Visited[v] {
			visited = "✓"
		}
		edges := make([]string, 0, len(g.Adjacency[v]))
		for _, e := range g.Adjacency[v] {
			edges = append(edges, fmt.Sprintf("%d(%d)", e.To, e.Weight))
		}
		line := fmt.Sprintf("%s%5d %6s %6s  %s", visited, v, dist, parent, strings.Join(edges, " "))
		b.WriteString(r.paint(line, roleAt(marks, v)))
		b.WriteString("\n")
	}
	if len(g.Order) > 0 {
		fmt.Fprintf(b, "\norder: %v\n", g.Order)
	}
}

func (r *BarRenderer) text(b *strings.Builder, t *workspace.Text, marks domain.Marks) {
	textMarks := domain.Marks{"text": marks["text"], "found": marks["found"], "compare": marks["compare"]}
	for i := 0; i < len(t.Text); i++ {
		b.WriteString(r.paint(string(t.Text[i]), roleAt(textMarks, i)))
	}
	b.WriteString("\n")

	offset := t.I - t.J
	if offset >= 0 {
		b.WriteString(strings.Repeat(" ", offset))
		patternMarks := domain.Marks{"pattern": marks["pattern"], "failure": marks["failure"]}
		for j := 0; j < len(t.Pattern); j++ {
			b.WriteString(r.paint(string(t.Pattern[j]), roleAt(patternMarks, j)))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "\nfailure: %v\nmatches: %v\n", t.Failure, t.Matches)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
