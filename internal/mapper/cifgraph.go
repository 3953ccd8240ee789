package mapper

import (
	"qplace/internal/device"
)

// cifGraph is the adjacency view of the conditional pairs over logical
// qubits. Parallel pairs are kept as repeated adjacency entries so that
// every gain computation weights a qubit pair by how often it appears.
// A self pair contributes two entries on its own qubit.
type cifGraph struct {
	n            int
	pairs        [][2]int
	adj          [][]int
	pairsByQubit [][]int
	mult         map[[2]int]int
}

func newCifGraph(n int, pairs [][2]int) *cifGraph {
	g := &cifGraph{
		n:            n,
		pairs:        pairs,
		adj:          make([][]int, n),
		pairsByQubit: make([][]int, n),
		mult:         make(map[[2]int]int),
	}
	for i, pair := range pairs {
		u, v := pair[0], pair[1]
		g.adj[u] = append(g.adj[u], v)
		g.adj[v] = append(g.adj[v], u)
		if u == v {
			g.pairsByQubit[u] = append(g.pairsByQubit[u], i)
			continue
		}
		g.pairsByQubit[u] = append(g.pairsByQubit[u], i)
		g.pairsByQubit[v] = append(g.pairsByQubit[v], i)
		if u > v {
			u, v = v, u
		}
		g.mult[[2]int{u, v}]++
	}
	return g
}

func (g *cifGraph) degree(q int) int { return len(g.adj[q]) }

// multiplicity returns how many conditional pairs join the two distinct
// qubits, in either orientation.
func (g *cifGraph) multiplicity(a, b int) int {
	if a > b {
		a, b = b, a
	}
	return g.mult[[2]int{a, b}]
}

// score counts the pairs whose endpoints sit on different controllers.
func (g *cifGraph) score(cfg *device.ControllerConfig, mapping []int) int {
	return device.CrossControllerPairs(cfg, g.pairs, mapping)
}

// moveGainAt computes, by direct neighbor scan, how much the score
// drops when qubit q is reassigned to target: positive means fewer
// cross-controller pairs. The scan counts each adjacency entry once, so
// parallel pairs weigh in proportionally.
func (g *cifGraph) moveGainAt(cfg *device.ControllerConfig, mapping []int, q, target int) int {
	own := cfg.Controller(mapping[q])
	gain := 0
	for _, nb := range g.adj[q] {
		switch cfg.Controller(mapping[nb]) {
		case target:
			gain++
		case own:
			gain--
		}
	}
	return gain
}

// swapDelta computes the score change when the assignments of logical
// qubits a and b are exchanged, touching only the pairs incident to
// either qubit. The returned value is added to the current score, so
// negative means the swap improves the mapping.
func (g *cifGraph) swapDelta(cfg *device.ControllerConfig, mapping []int, a, b int) int {
	pqA, pqB := mapping[a], mapping[b]
	at := func(q int) int {
		switch q {
		case a:
			return pqB
		case b:
			return pqA
		default:
			return mapping[q]
		}
	}
	delta := 0
	seen := make(map[int]struct{}, len(g.pairsByQubit[a])+len(g.pairsByQubit[b]))
	for _, list := range [2][]int{g.pairsByQubit[a], g.pairsByQubit[b]} {
		for _, i := range list {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			pair := g.pairs[i]
			if !cfg.SameController(mapping[pair[0]], mapping[pair[1]]) {
				delta--
			}
			if !cfg.SameController(at(pair[0]), at(pair[1])) {
				delta++
			}
		}
	}
	return delta
}
