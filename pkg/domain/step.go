package domain

import (
	"fmt"
	"slices"
	"sort"
)

// Op names the kind of mutation a Step performs.
type Op string

const (
	OpCompare Op = "compare" // Inspect two positions; no data change
	OpSwap    Op = "swap"    // Exchange Indices[0] and Indices[1]
	OpSet     Op = "set"     // Write Values[k] at Indices[k]
	OpVisit   Op = "visit"   // Mark a vertex/cell as visited
	OpRelax   Op = "relax"   // Lower a tentative distance (Indices[0] to Values[0])
	OpMatch   Op = "match"   // Advance text/pattern pointers
	OpMark    Op = "mark"    // Only update markers
	OpNote    Op = "note"    // Phase change without data change
)

// Marks labels points of interest for the renderer, keyed by role
// (e.g. "compare", "sorted", "found", "visited").
type Marks map[string][]int

// Clone returns a deep copy of m.
func (m Marks) Clone() Marks {
	if m == nil {
		return nil
	}
	out := make(Marks, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// Roles returns the mark roles in sorted order.
func (m Marks) Roles() []string {
	roles := make([]string, 0, len(m))
	for k := range m {
		roles = append(roles, k)
	}
	sort.Strings(roles)
	return roles
}

// Step is one atomic, pre-defined unit of algorithm progress.
// It references positions in the working state instead of capturing closures,
// so the mutation and its markers are applied together or not at all.
type Step struct {
	Op      Op     `json:"op"`
	Indices []int  `json:"indices,omitempty"`
	Values  []int  `json:"values,omitempty"`
	Marks   Marks  `json:"marks,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

// Arity checks that the step carries at least n indices.
func (s Step) Arity(n int) error {
	if len(s.Indices) < n {
		return fmt.Errorf("%s step needs %d indices, got %d", s.Op, n, len(s.Indices))
	}
	return nil
}

func (s Step) String() string {
	if s.Phase != "" {
		return fmt.Sprintf("%s%v (%s)", s.Op, s.Indices, s.Phase)
	}
	return fmt.Sprintf("%s%v", s.Op, s.Indices)
}
