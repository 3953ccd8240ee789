package prune

import (
	"sort"

	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// MappingAware removes inter-region edges that the mapped circuit
// barely uses. Each candidate edge is scored by the number of
// multi-qubit operations whose logical qubits sit on both endpoints;
// low-scoring edges are pruned first, so the routes the circuit
// actually needs survive.
type MappingAware struct {
	graph      *device.CouplingGraph
	inter      [][2]int
	scores     []int
	numLogical int
	opts       *config
}

// NewMappingAware builds the pruner. The mapping assigns logical qubits
// to physical qubits; multiOps lists each multi-qubit operation's
// logical qubits, as extracted from circuit properties.
func NewMappingAware(g *device.CouplingGraph, regions [][]int, mapping []int, multiOps [][]int, opts ...Option) (*MappingAware, error) {
	cfg := newConfig(opts)
	if !cfg.probSet {
		cfg.probability = defaultMappingAwareProbability
	}
	if cfg.probability < 0 || cfg.probability >= 0.5 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"pruning probability %g must lie in [0,0.5) for mapping-aware pruning", cfg.probability)
	}
	index, err := regionIndex(g, regions)
	if err != nil {
		return nil, err
	}
	if err := device.ValidateMapping(mapping, g.NumQubits()); err != nil {
		return nil, err
	}

	p := &MappingAware{
		graph:      g,
		inter:      interRegionEdges(g, index),
		numLogical: len(mapping),
		opts:       cfg,
	}
	p.scores = p.scoreEdges(mapping, multiOps)
	return p, nil
}

// scoreEdges counts, per inter-region edge, the multi-qubit operations
// that touch both endpoints. Edges with an unmapped endpoint score
// zero: no logical qubit lives there, so nothing routes across them.
func (p *MappingAware) scoreEdges(mapping []int, multiOps [][]int) []int {
	logicalAt := make(map[int]int, len(mapping))
	for lq, pq := range mapping {
		logicalAt[pq] = lq
	}
	scores := make([]int, len(p.inter))
	for i, e := range p.inter {
		lq0, ok0 := logicalAt[e[0]]
		lq1, ok1 := logicalAt[e[1]]
		if !ok0 || !ok1 {
			continue
		}
		for _, op := range multiOps {
			if containsQubit(op, lq0) && containsQubit(op, lq1) {
				scores[i]++
			}
		}
	}
	return scores
}

func containsQubit(op []int, q int) bool {
	for _, v := range op {
		if v == q {
			return true
		}
	}
	return false
}

// Run prunes up to a prob fraction of the candidate pool, which holds
// the 2*prob lowest-scoring inter-region edges. The first attempt takes
// the lowest scores outright; each failed connectivity check reshuffles
// the pool before the next try.
func (p *MappingAware) Run() ([][2]int, error) {
	numPruned := int(float64(len(p.inter)) * p.opts.probability)
	if numPruned == 0 {
		p.opts.logger.Warn("no edges to prune, consider raising the pruning probability",
			"inter_region_edges", len(p.inter),
			"probability", p.opts.probability,
		)
	}
	numCandidates := int(float64(len(p.inter)) * 2 * p.opts.probability)

	order := make([]int, len(p.inter))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return p.scores[order[i]] < p.scores[order[j]]
	})
	candidates := make([][2]int, 0, numCandidates)
	for _, i := range order[:numCandidates] {
		candidates = append(candidates, p.inter[i])
	}

	for attempt := 0; attempt < p.opts.attempts; attempt++ {
		remaining := withoutEdges(p.graph, candidates[:numPruned])
		if connectsAll(p.graph.NumQubits(), remaining) {
			return remaining, nil
		}
		rng := p.opts.shuffler(attempt)
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	return nil, dErrors.Newf(dErrors.CodePartition,
		"no pruning pattern kept the coupling graph connected after %d attempts", p.opts.attempts)
}
