// Package device models the quantum device topology: the coupling graph
// of allowed two-qubit interactions and the partition of physical qubits
// into controller regions.
package device

import (
	"sync"

	dErrors "qplace/pkg/domain-errors"
)

// CouplingGraph is an undirected graph over physical qubits. Edges are
// the native two-qubit interactions of the device. Immutable once built.
type CouplingGraph struct {
	numQubits int
	adjacency [][]int
	edges     [][2]int

	distOnce  sync.Once
	distances [][]int
}

// NewCouplingGraph builds a graph from an edge list. Edge direction and
// duplicates are ignored; endpoints must lie in [0, numQubits).
func NewCouplingGraph(numQubits int, edges [][2]int) (*CouplingGraph, error) {
	if numQubits <= 0 {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "coupling graph needs at least one qubit, got %d", numQubits)
	}
	g := &CouplingGraph{
		numQubits: numQubits,
		adjacency: make([][]int, numQubits),
	}
	seen := make(map[[2]int]struct{}, len(edges))
	for _, e := range edges {
		u, v := e[0], e[1]
		if u < 0 || u >= numQubits || v < 0 || v >= numQubits {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "edge (%d,%d) outside qubit range [0,%d)", u, v, numQubits)
		}
		if u == v {
			continue
		}
		if u > v {
			u, v = v, u
		}
		if _, dup := seen[[2]int{u, v}]; dup {
			continue
		}
		seen[[2]int{u, v}] = struct{}{}
		g.edges = append(g.edges, [2]int{u, v})
		g.adjacency[u] = append(g.adjacency[u], v)
		g.adjacency[v] = append(g.adjacency[v], u)
	}
	return g, nil
}

// Line returns the linear nearest-neighbor topology on n qubits.
func Line(n int) (*CouplingGraph, error) {
	edges := make([][2]int, 0, n-1)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	return NewCouplingGraph(n, edges)
}

// Grid returns the rows x cols nearest-neighbor lattice topology.
func Grid(rows, cols int) (*CouplingGraph, error) {
	var edges [][2]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			q := r*cols + c
			if c+1 < cols {
				edges = append(edges, [2]int{q, q + 1})
			}
			if r+1 < rows {
				edges = append(edges, [2]int{q, q + cols})
			}
		}
	}
	return NewCouplingGraph(rows*cols, edges)
}

// NumQubits returns the number of physical qubits.
func (g *CouplingGraph) NumQubits() int { return g.numQubits }

// Edges returns the deduplicated undirected edge list. Callers must not
// modify the returned slice.
func (g *CouplingGraph) Edges() [][2]int { return g.edges }

// Neighbors returns the qubits adjacent to q. Callers must not modify
// the returned slice.
func (g *CouplingGraph) Neighbors(q int) []int { return g.adjacency[q] }

// Degree returns the number of neighbors of q.
func (g *CouplingGraph) Degree(q int) int { return len(g.adjacency[q]) }

// HasEdge reports whether u and v are directly coupled.
func (g *CouplingGraph) HasEdge(u, v int) bool {
	for _, n := range g.adjacency[u] {
		if n == v {
			return true
		}
	}
	return false
}

// Connected reports whether every qubit is reachable from qubit 0.
func (g *CouplingGraph) Connected() bool {
	if g.numQubits == 0 {
		return true
	}
	visited := make([]bool, g.numQubits)
	count := g.bfs(0, visited, nil)
	return count == g.numQubits
}

// Components returns the connected components in ascending order of
// their lowest qubit index.
func (g *CouplingGraph) Components() [][]int {
	visited := make([]bool, g.numQubits)
	var components [][]int
	for q := 0; q < g.numQubits; q++ {
		if visited[q] {
			continue
		}
		var comp []int
		g.bfs(q, visited, func(node int) bool {
			comp = append(comp, node)
			return true
		})
		components = append(components, comp)
	}
	return components
}

// Distance returns the hop count of the shortest path between u and v,
// or -1 when no path exists. The all-pairs table is computed once on
// first use and shared by all callers.
func (g *CouplingGraph) Distance(u, v int) int {
	return g.DistanceTable()[u][v]
}

// DistanceTable returns the all-pairs shortest-path table computed via
// breadth-first search from every qubit. Unreachable pairs hold -1.
// Callers must not modify the returned slices.
func (g *CouplingGraph) DistanceTable() [][]int {
	g.distOnce.Do(func() {
		g.distances = make([][]int, g.numQubits)
		for src := 0; src < g.numQubits; src++ {
			dist := make([]int, g.numQubits)
			for i := range dist {
				dist[i] = -1
			}
			dist[src] = 0
			queue := []int{src}
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				for _, next := range g.adjacency[cur] {
					if dist[next] == -1 {
						dist[next] = dist[cur] + 1
						queue = append(queue, next)
					}
				}
			}
			g.distances[src] = dist
		}
	})
	return g.distances
}

// bfs traverses the component containing start, marking visited nodes.
// The visit callback may stop the traversal early by returning false.
// Returns the number of nodes visited.
func (g *CouplingGraph) bfs(start int, visited []bool, visit func(int) bool) int {
	visited[start] = true
	queue := []int{start}
	count := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		count++
		if visit != nil && !visit(cur) {
			return count
		}
		for _, next := range g.adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return count
}
