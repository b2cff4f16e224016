package algorithms

import (
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/aretw0/tempo/pkg/workspace"
)

func adjacency(in graphInput) [][]workspace.Edge {
	adj := make([][]workspace.Edge, in.Vertices)
	for _, e := range in.Edges {
		w := 1
		if e.Weight != nil {
			w = *e.Weight
		}
		adj[e.From] = append(adj[e.From], workspace.Edge{To: e.To, Weight: w})
		if !in.Directed && e.From != e.To {
			adj[e.To] = append(adj[e.To], workspace.Edge{To: e.From, Weight: w})
		}
	}
	return adj
}

func graphDefinition(name, desc string, gen func(adj [][]workspace.Edge, source int) steps.Seq) ports.Definition {
	return &definition[graphInput]{
		name:   name,
		desc:   desc,
		sample: sampleGraph,
		check:  checkGraph,
		build: func(in graphInput) (ports.WorkingState, steps.Seq) {
			adj := adjacency(in)
			return workspace.NewGraph(adj), gen(adj, in.Source)
		},
	}
}

func relaxStep(v, parent, dist int) domain.Step {
	return domain.Step{Op: domain.OpRelax, Indices: []int{v, parent}, Values: []int{dist}, Marks: domain.Marks{"relax": {v}}}
}

func visitStep(v int) domain.Step {
	return domain.Step{Op: domain.OpVisit, Indices: []int{v}, Marks: domain.Marks{"current": {v}}}
}

func edgeStep(u, v int) domain.Step {
	return domain.Step{Op: domain.OpCompare, Indices: []int{u, v}, Marks: domain.Marks{"edge": {u, v}}}
}

func sourceStep(s int) domain.Step {
	return domain.Step{Op: domain.OpRelax, Indices: []int{s}, Values: []int{0}, Marks: domain.Marks{"source": {s}}, Phase: "start"}
}

// BFS explores vertices in order of hop distance from the source.
func BFS() ports.Definition {
	return graphDefinition("bfs", "Breadth-first search: hop distances from the source", bfs)
}

func bfs(adj [][]workspace.Edge, source int) steps.Seq {
	return func(yield yieldFunc) {
		dist := make([]int, len(adj))
		for i := range dist {
			dist[i] = workspace.Unreached
		}
		dist[source] = 0
		if !yield(sourceStep(source), nil) {
			return
		}
		queue := []int{source}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			if !yield(visitStep(u), nil) {
				return
			}
			for _, e := range adj[u] {
				if !yield(edgeStep(u, e.To), nil) {
					return
				}
				if dist[e.To] != workspace.Unreached {
					continue
				}
				dist[e.To] = dist[u] + 1
				queue = append(queue, e.To)
				if !yield(relaxStep(e.To, u, dist[e.To]), nil) {
					return
				}
			}
		}
	}
}

// DFS is a recursive depth-first traversal; distances are tree depths.
func DFS() ports.Definition {
	return graphDefinition("dfs", "Depth-first search: recursive traversal from the source", func(adj [][]workspace.Edge, source int) steps.Seq {
		seen := make([]bool, len(adj))
		return func(yield yieldFunc) {
			if yield(sourceStep(source), nil) {
				delegate(dfs(adj, seen, source, 0), yield)
			}
		}
	})
}

func dfs(adj [][]workspace.Edge, seen []bool, u, depth int) steps.Seq {
	return func(yield yieldFunc) {
		seen[u] = true
		if !yield(visitStep(u), nil) {
			return
		}
		for _, e := range adj[u] {
			if !yield(edgeStep(u, e.To), nil) {
				return
			}
			if seen[e.To] {
				continue
			}
			if !yield(relaxStep(e.To, u, depth+1), nil) {
				return
			}
			if !delegate(dfs(adj, seen, e.To, depth+1), yield) {
				return
			}
		}
	}
}

// Dijkstra computes weighted shortest paths with an O(V^2) selection loop.
func Dijkstra() ports.Definition {
	return graphDefinition("dijkstra", "Dijkstra: weighted shortest paths from the source", dijkstra)
}

func dijkstra(adj [][]workspace.Edge, source int) steps.Seq {
	return func(yield yieldFunc) {
		n := len(adj)
		dist := make([]int, n)
		done := make([]bool, n)
		for i := range dist {
			dist[i] = workspace.Unreached
		}
		dist[source] = 0
		if !yield(sourceStep(source), nil) {
			return
		}
		for {
			u := -1
			for v := 0; v < n; v++ {
				if done[v] || dist[v] == workspace.Unreached {
					continue
				}
				if u < 0 || dist[v] < dist[u] {
					u = v
				}
			}
			if u < 0 {
				return
			}
			done[u] = true
			if !yield(visitStep(u), nil) {
				return
			}
			for _, e := range adj[u] {
				if done[e.To] {
					continue
				}
				if !yield(edgeStep(u, e.To), nil) {
					return
				}
				nd := dist[u] + e.Weight
				if dist[e.To] != workspace.Unreached && nd >= dist[e.To] {
					continue
				}
				dist[e.To] = nd
				if !yield(relaxStep(e.To, u, nd), nil) {
					return
				}
			}
		}
	}
}
