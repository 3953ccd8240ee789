package mapper

import (
	"sort"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// search carries the state shared by the iterative strategies: the
// device partition, the circuit's conditional structure, and the
// option-supplied random source and logger.
type search struct {
	cfg   *device.ControllerConfig
	props *circuit.Properties
	graph *cifGraph
	opts  *config
}

func newSearch(cfg *device.ControllerConfig, props *circuit.Properties, opts []Option) (search, error) {
	if err := checkFits(cfg, props); err != nil {
		return search{}, err
	}
	return search{
		cfg:   cfg,
		props: props,
		graph: newCifGraph(props.NumQubits(), props.CifPairs()),
		opts:  newConfig(opts),
	}, nil
}

func (s *search) score(mapping []int) int {
	return s.graph.score(s.cfg, mapping)
}

// initialMapping greedily places logical qubits in descending order of
// conditional degree. Each qubit goes to the controller already holding
// most of its neighbors, and its unplaced neighbors are packed into the
// same region while capacity lasts.
func (s *search) initialMapping() ([]int, error) {
	n := s.props.NumQubits()
	mapping := make([]int, n)
	for q := range mapping {
		mapping[q] = -1
	}

	available := make([][]int, s.cfg.NumControllers())
	for ctrl := range available {
		available[ctrl] = append([]int(nil), s.cfg.Region(ctrl)...)
	}

	order := make([]int, n)
	for q := range order {
		order[q] = q
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.graph.degree(order[i]) > s.graph.degree(order[j])
	})

	for _, q := range order {
		if mapping[q] != -1 {
			continue
		}
		bestCtrl, bestCount := -1, -1
		for ctrl := range available {
			if len(available[ctrl]) == 0 {
				continue
			}
			count := 0
			for _, nb := range s.graph.adj[q] {
				if mapping[nb] != -1 && s.cfg.Controller(mapping[nb]) == ctrl {
					count++
				}
			}
			if count > bestCount {
				bestCtrl, bestCount = ctrl, count
			}
		}
		if bestCtrl == -1 {
			return nil, dErrors.Newf(dErrors.CodeMappingFailed,
				"no controller region has capacity for logical qubit %d", q)
		}

		pick := s.opts.rng.Intn(len(available[bestCtrl]))
		mapping[q] = available[bestCtrl][pick]
		available[bestCtrl] = append(available[bestCtrl][:pick], available[bestCtrl][pick+1:]...)

		for _, nb := range s.graph.adj[q] {
			if len(available[bestCtrl]) == 0 {
				break
			}
			if mapping[nb] != -1 {
				continue
			}
			last := len(available[bestCtrl]) - 1
			mapping[nb] = available[bestCtrl][last]
			available[bestCtrl] = available[bestCtrl][:last]
		}
	}
	return mapping, nil
}

// localSearch perturbs the mapping with chains of random swaps. Within
// a trial every swap that does not worsen the score is kept, letting
// the chain walk across score plateaus; a trial replaces the best
// mapping only when it strictly improves it.
func (s *search) localSearch(mapping []int, score, trials, depth int) ([]int, int) {
	n := s.props.NumQubits()
	best := append([]int(nil), mapping...)
	bestScore := score
	if n < 2 {
		return best, bestScore
	}

	current := make([]int, n)
	for trial := 0; trial < trials; trial++ {
		copy(current, best)
		currentScore := bestScore
		for d := 0; d < depth; d++ {
			a := s.opts.rng.Intn(n)
			b := s.opts.rng.Intn(n - 1)
			if b >= a {
				b++
			}
			delta := s.graph.swapDelta(s.cfg, current, a, b)
			if delta <= 0 {
				current[a], current[b] = current[b], current[a]
				currentScore += delta
			}
		}
		if currentScore < bestScore {
			copy(best, current)
			bestScore = currentScore
		}
	}
	return best, bestScore
}
