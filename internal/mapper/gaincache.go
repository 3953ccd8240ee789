package mapper

import (
	"qplace/internal/device"
)

// gainCache holds, for every logical qubit, how many of its adjacency
// entries currently sit on each controller. A move gain is then a
// two-entry lookup instead of a neighbor scan, and a move updates only
// the rows of the moved qubit's neighbors.
type gainCache struct {
	cfg    *device.ControllerConfig
	graph  *cifGraph
	counts [][]int
}

func newGainCache(cfg *device.ControllerConfig, graph *cifGraph, mapping []int) *gainCache {
	c := &gainCache{
		cfg:    cfg,
		graph:  graph,
		counts: make([][]int, graph.n),
	}
	for q := 0; q < graph.n; q++ {
		c.counts[q] = make([]int, cfg.NumControllers())
		for _, nb := range graph.adj[q] {
			c.counts[q][cfg.Controller(mapping[nb])]++
		}
	}
	return c
}

// moveGain returns the score reduction from reassigning q to target.
func (c *gainCache) moveGain(mapping []int, q, target int) int {
	own := c.cfg.Controller(mapping[q])
	return c.counts[q][target] - c.counts[q][own]
}

// swapGain returns the score reduction from exchanging the assignments
// of a and b across their two controllers. The pairs joining a and b
// themselves stay cross-controller through the exchange, which the
// multiplicity term corrects for.
func (c *gainCache) swapGain(mapping []int, a, b int) int {
	ctrlA := c.cfg.Controller(mapping[a])
	ctrlB := c.cfg.Controller(mapping[b])
	return c.moveGain(mapping, a, ctrlB) + c.moveGain(mapping, b, ctrlA) - 2*c.graph.multiplicity(a, b)
}

// applyMove records that q moved between controllers and refreshes the
// affected neighbor rows. Callers invoke it once per moved qubit, so a
// swap is two calls.
func (c *gainCache) applyMove(q, from, to int) {
	if from == to {
		return
	}
	for _, nb := range c.graph.adj[q] {
		c.counts[nb][from]--
		c.counts[nb][to]++
	}
}
