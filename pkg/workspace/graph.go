package workspace

import (
	"fmt"
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Unreached is the distance of a vertex not yet reached.
const Unreached = -1

// Edge is a weighted, directed adjacency entry.
type Edge struct {
	To     int `json:"to" mapstructure:"to"`
	Weight int `json:"weight" mapstructure:"weight"`
}

// Graph is a vertex-indexed adjacency list plus traversal bookkeeping.
//
// Steps: visit [v] marks v visited; relax [v, parent] with Values [dist]
// records a tentative distance and predecessor.
type Graph struct {
	Adjacency [][]Edge `json:"adjacency"`
	Dist      []int    `json:"dist"`
	Parent    []int    `json:"parent"`
	Visited   []bool   `json:"visited"`
	Order     []int    `json:"order"`
}

// NewGraph creates bookkeeping for the given adjacency (copied).
func NewGraph(adj [][]Edge) *Graph {
	n := len(adj)
	g := &Graph{
		Adjacency: make([][]Edge, n),
		Dist:      make([]int, n),
		Parent:    make([]int, n),
		Visited:   make([]bool, n),
		Order:     []int{},
	}
	for v := range adj {
		g.Adjacency[v] = slices.Clone(adj[v])
		g.Dist[v] = Unreached
		g.Parent[v] = -1
	}
	return g
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.Adjacency)
}

func (g *Graph) inRange(idx []int) error {
	for _, v := range idx {
		if v < 0 || v >= len(g.Adjacency) {
			return fmt.Errorf("vertex %d out of range [0,%d)", v, len(g.Adjacency))
		}
	}
	return nil
}

// Apply performs one step.
func (g *Graph) Apply(step domain.Step) error {
	switch step.Op {
	case domain.OpCompare, domain.OpMark, domain.OpNote:
		return g.inRange(step.Indices)
	case domain.OpVisit:
		if err := step.Arity(1); err != nil {
			return err
		}
		if err := g.inRange(step.Indices[:1]); err != nil {
			return err
		}
		v := step.Indices[0]
		if !g.Visited[v] {
			g.Visited[v] = true
			g.Order = append(g.Order, v)
		}
		return nil
	case domain.OpRelax:
		if err := step.Arity(1); err != nil {
			return err
		}
		if len(step.Values) < 1 {
			return fmt.Errorf("relax step needs a distance value")
		}
		parent := -1
		if len(step.Indices) > 1 {
			parent = step.Indices[1]
			if err := g.inRange(step.Indices[1:2]); err != nil {
				return err
			}
		}
		if err := g.inRange(step.Indices[:1]); err != nil {
			return err
		}
		v := step.Indices[0]
		g.Dist[v] = step.Values[0]
		g.Parent[v] = parent
		return nil
	}
	return fmt.Errorf("graph does not support %q steps", step.Op)
}

// CloneState lets snapshots hand out private copies.
func (g *Graph) CloneState() any { return g.Clone() }

// Clone returns a deep copy.
func (g *Graph) Clone() ports.WorkingState {
	out := &Graph{
		Adjacency: make([][]Edge, len(g.Adjacency)),
		Dist:      slices.Clone(g.Dist),
		Parent:    slices.Clone(g.Parent),
		Visited:   slices.Clone(g.Visited),
		Order:     slices.Clone(g.Order),
	}
	for v := range g.Adjacency {
		out.Adjacency[v] = slices.Clone(g.Adjacency[v])
	}
	return out
}
