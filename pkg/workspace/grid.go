package workspace

import (
	"fmt"
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Grid is a row-major DP table. Steps address cells with (row, col) index
// pairs: Indices = [r0, c0, r1, c1, ...].
type Grid struct {
	Rows  int   `json:"rows"`
	Cols  int   `json:"cols"`
	Cells []int `json:"cells"`
}

// NewGrid creates a zeroed rows x cols table.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Cells: make([]int, rows*cols)}
}

// At returns the value at (r, c).
func (g *Grid) At(r, c int) int {
	return g.Cells[r*g.Cols+c]
}

// Cell returns the flat index of (r, c), the form used in Marks.
func (g *Grid) Cell(r, c int) int {
	return r*g.Cols + c
}

func (g *Grid) cells(idx []int) ([]int, error) {
	if len(idx)%2 != 0 {
		return nil, fmt.Errorf("grid steps need (row, col) pairs, got %d indices", len(idx))
	}
	out := make([]int, 0, len(idx)/2)
	for k := 0; k < len(idx); k += 2 {
		r, c := idx[k], idx[k+1]
		if r < 0 || r >= g.Rows || c < 0 || c >= g.Cols {
			return nil, fmt.Errorf("cell (%d,%d) outside %dx%d grid", r, c, g.Rows, g.Cols)
		}
		out = append(out, r*g.Cols+c)
	}
	return out, nil
}

// Apply performs one step.
func (g *Grid) Apply(step domain.Step) error {
	cells, err := g.cells(step.Indices)
	if err != nil {
		return err
	}
	switch step.Op {
	case domain.OpCompare, domain.OpMark, domain.OpNote, domain.OpVisit:
		return nil
	case domain.OpSet:
		if len(step.Values) != len(cells) {
			return fmt.Errorf("set step addresses %d cells but has %d values", len(cells), len(step.Values))
		}
		for k, cell := range cells {
			g.Cells[cell] = step.Values[k]
		}
		return nil
	}
	return fmt.Errorf("grid does not support %q steps", step.Op)
}

// CloneState lets snapshots hand out private copies.
func (g *Grid) CloneState() any { return g.Clone() }

// Clone returns a deep copy.
func (g *Grid) Clone() ports.WorkingState {
	return &Grid{Rows: g.Rows, Cols: g.Cols, Cells: slices.Clone(g.Cells)}
}
