package prune

import (
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// Trivial removes a random fraction of the edges between regions,
// retrying with a reseeded shuffle until the surviving graph is still
// connected.
type Trivial struct {
	graph *device.CouplingGraph
	inter [][2]int
	opts  *config
}

// NewTrivial builds the pruner for a coupling graph and a region list
// covering every physical qubit.
func NewTrivial(g *device.CouplingGraph, regions [][]int, opts ...Option) (*Trivial, error) {
	cfg := newConfig(opts)
	if cfg.probability < 0 || cfg.probability >= 1 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"pruning probability %g must lie in [0,1)", cfg.probability)
	}
	index, err := regionIndex(g, regions)
	if err != nil {
		return nil, err
	}
	return &Trivial{
		graph: g,
		inter: interRegionEdges(g, index),
		opts:  cfg,
	}, nil
}

// Run picks the prune pattern. The returned edge list preserves the
// graph's edge order minus the removed inter-region edges.
func (p *Trivial) Run() ([][2]int, error) {
	numPruned := int(float64(len(p.inter)) * p.opts.probability)
	if numPruned == 0 {
		p.opts.logger.Warn("no edges to prune, consider raising the pruning probability",
			"inter_region_edges", len(p.inter),
			"probability", p.opts.probability,
		)
	}

	shuffled := make([][2]int, len(p.inter))
	for attempt := 0; attempt < p.opts.attempts; attempt++ {
		copy(shuffled, p.inter)
		rng := p.opts.shuffler(attempt)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		remaining := withoutEdges(p.graph, shuffled[:numPruned])
		if connectsAll(p.graph.NumQubits(), remaining) {
			return remaining, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodePartition,
		"no pruning pattern kept the coupling graph connected after %d attempts", p.opts.attempts)
}
