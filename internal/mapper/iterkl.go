package mapper

import (
	"context"
	"math"
	"time"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// IterKLMapper keeps restarting a Kernighan-Lin search until its
// wall-clock budget runs out. Every restart sweeps all controller pairs
// with pairwise exchange passes, follows each sweep with a short local
// search, and the best mapping over all restarts wins.
type IterKLMapper struct {
	search
	budget       time.Duration
	plateauLimit int
	localTrials  int
	localDepth   int
}

// NewIterKL builds the budget-driven Kernighan-Lin mapper.
func NewIterKL(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*IterKLMapper, error) {
	s, err := newSearch(cfg, props, opts)
	if err != nil {
		return nil, err
	}
	budget := s.opts.budget
	if budget <= 0 {
		budget = defaultKLBudget
	}
	return &IterKLMapper{
		search:       s,
		budget:       budget,
		plateauLimit: orDefault(s.opts.plateauLimit, defaultPlateauLimit),
		localTrials:  orDefault(s.opts.localTrials, defaultKLTrials),
		localDepth:   orDefault(s.opts.localDepth, defaultLocalDepth),
	}, nil
}

// Run executes restarts until the budget elapses and returns the best
// mapping seen. At least one restart always completes.
func (m *IterKLMapper) Run(ctx context.Context) ([]int, error) {
	var (
		best      []int
		bestScore = math.MaxInt
		start     = time.Now()
		restarts  = 0
	)
	for {
		if err := ctx.Err(); err != nil {
			if best != nil {
				m.opts.logger.Debug("search cancelled, keeping best mapping so far",
					"restarts_done", restarts, "score", bestScore)
				return best, nil
			}
			return nil, dErrors.Wrap(err, dErrors.CodeMappingFailed, "search cancelled before any mapping was found")
		}
		if restarts > 0 && time.Since(start) >= m.budget {
			break
		}

		current, err := m.initialMapping()
		if err != nil {
			return nil, err
		}
		currentScore := m.score(current)

		improved := true
		plateau := 0
		for improved && plateau < m.plateauLimit {
			improved = false
			for c1 := 0; c1 < m.cfg.NumControllers(); c1++ {
				for c2 := c1 + 1; c2 < m.cfg.NumControllers(); c2++ {
					next := m.exchangePass(current, c1, c2)
					nextScore := m.score(next)
					if nextScore < currentScore {
						current, currentScore = next, nextScore
						improved = true
					}
				}
			}
			plateau++

			local, localScore := m.localSearch(current, currentScore, m.localTrials, m.localDepth)
			if localScore < currentScore {
				current, currentScore = local, localScore
				improved = true
			} else {
				plateau++
			}
		}

		if currentScore < bestScore {
			best = append(best[:0], current...)
			bestScore = currentScore
		}
		restarts++
		m.opts.logger.Debug("restart finished",
			"restart", restarts, "score", currentScore, "best_score", bestScore)
	}
	if best == nil {
		return nil, dErrors.New(dErrors.CodeMappingFailed, "no mapping produced within the search budget")
	}
	return best, nil
}

// exchangePass runs one Kernighan-Lin pass between two controllers:
// exchange the best-gain qubit pair, lock both qubits, repeat until no
// pair is left, then commit the exchange prefix with the highest
// cumulative gain onto the input mapping.
func (m *IterKLMapper) exchangePass(mapping []int, c1, c2 int) []int {
	n := m.props.NumQubits()
	current := append([]int(nil), mapping...)
	moved := make([]bool, n)

	var (
		swaps [][2]int
		gains []int
	)
	for {
		bestGain := math.MinInt
		bestA, bestB := -1, -1
		for a := 0; a < n; a++ {
			if moved[a] || m.cfg.Controller(current[a]) != c1 {
				continue
			}
			for b := 0; b < n; b++ {
				if moved[b] || m.cfg.Controller(current[b]) != c2 {
					continue
				}
				gain := m.graph.moveGainAt(m.cfg, current, a, c2) + m.graph.moveGainAt(m.cfg, current, b, c1)
				if gain > bestGain {
					bestGain, bestA, bestB = gain, a, b
				}
			}
		}
		if bestA == -1 {
			break
		}
		current[bestA], current[bestB] = current[bestB], current[bestA]
		moved[bestA] = true
		moved[bestB] = true
		swaps = append(swaps, [2]int{bestA, bestB})
		gains = append(gains, bestGain)
	}

	bestPrefix, bestTotal, total := 0, 0, 0
	for i, gain := range gains {
		total += gain
		if total > bestTotal {
			bestTotal = total
			bestPrefix = i + 1
		}
	}

	result := append([]int(nil), mapping...)
	for _, sw := range swaps[:bestPrefix] {
		result[sw[0]], result[sw[1]] = result[sw[1]], result[sw[0]]
	}
	return result
}
