package mapper

import (
	"context"
	"math"
	"time"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// GraphPartitionMapper searches for a placement by running several
// independent restarts. Each restart seeds a greedy initial mapping and
// then alternates prefix-committed move passes with randomized local
// search until the score stops improving.
type GraphPartitionMapper struct {
	search
	restarts     int
	budget       time.Duration
	plateauLimit int
	localTrials  int
	localDepth   int
}

// NewGraphPartition builds the restart-based partition mapper.
func NewGraphPartition(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*GraphPartitionMapper, error) {
	s, err := newSearch(cfg, props, opts)
	if err != nil {
		return nil, err
	}
	return &GraphPartitionMapper{
		search:       s,
		restarts:     orDefault(s.opts.restarts, defaultRestarts),
		budget:       s.opts.budget,
		plateauLimit: orDefault(s.opts.plateauLimit, defaultPlateauLimit),
		localTrials:  orDefault(s.opts.localTrials, defaultLocalTrials),
		localDepth:   orDefault(s.opts.localDepth, defaultLocalDepth),
	}, nil
}

// Run executes the search and returns the best mapping found across all
// restarts. Cancelling the context stops the search early; the best
// mapping found so far is returned when one exists.
func (m *GraphPartitionMapper) Run(ctx context.Context) ([]int, error) {
	var (
		best      []int
		bestScore = math.MaxInt
		start     = time.Now()
	)
	for restart := 0; restart < m.restarts; restart++ {
		if err := ctx.Err(); err != nil {
			if best != nil {
				m.opts.logger.Debug("search cancelled, keeping best mapping so far",
					"restarts_done", restart, "score", bestScore)
				return best, nil
			}
			return nil, dErrors.Wrap(err, dErrors.CodeMappingFailed, "search cancelled before any mapping was found")
		}
		if m.budget > 0 && time.Since(start) > m.budget {
			break
		}

		initial, err := m.initialMapping()
		if err != nil {
			return nil, err
		}
		current, currentScore := m.refineRestart(initial, m.score(initial))

		if currentScore < bestScore {
			best = append(best[:0], current...)
			bestScore = currentScore
		}
		m.opts.logger.Debug("restart finished",
			"restart", restart, "score", currentScore, "best_score", bestScore)
	}
	if best == nil {
		return nil, dErrors.New(dErrors.CodeMappingFailed, "no mapping produced within the search budget")
	}
	return best, nil
}

// refineRestart improves one restart's mapping and returns the result
// with its score. A move pass that improves the score resets the
// plateau counter; a stalled pass falls back to local search, and the
// restart ends after plateauLimit consecutive non-improving rounds.
func (m *GraphPartitionMapper) refineRestart(current []int, currentScore int) ([]int, int) {
	improved := true
	plateau := 0
	for improved && plateau < m.plateauLimit {
		improved = false

		next := m.optimizeMapping(current)
		nextScore := m.score(next)
		if nextScore < currentScore {
			current, currentScore = next, nextScore
			improved = true
			plateau = 0
			continue
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
	return current, currentScore
}

// move records one step of a move pass. exchange is -1 for a relocation
// onto a free physical qubit and the swapped logical qubit otherwise.
type move struct {
	qubit    int
	oldPq    int
	newPq    int
	exchange int
}

// optimizeMapping runs one Kernighan-Lin style pass: repeatedly apply
// the best available move over the still-unmoved qubits, even when its
// gain is negative, then commit the move prefix with the highest
// cumulative gain. The initial mapping is returned unchanged when no
// prefix gains anything.
func (m *GraphPartitionMapper) optimizeMapping(initial []int) []int {
	n := m.props.NumQubits()
	mapping := append([]int(nil), initial...)
	cache := newGainCache(m.cfg, m.graph, mapping)

	used := make([]bool, m.cfg.NumQubits())
	for _, pq := range mapping {
		used[pq] = true
	}
	freeCount := make([]int, m.cfg.NumControllers())
	for ctrl := range freeCount {
		for _, pq := range m.cfg.Region(ctrl) {
			if !used[pq] {
				freeCount[ctrl]++
			}
		}
	}

	moved := make([]bool, n)
	movedCount := 0
	var (
		moves []move
		gains []int
	)

	for movedCount < n {
		bestGain := math.MinInt
		bestQ, bestCtrl, bestExchange := -1, -1, -1
		for q := 0; q < n; q++ {
			if moved[q] {
				continue
			}
			own := m.cfg.Controller(mapping[q])
			for ctrl := 0; ctrl < m.cfg.NumControllers(); ctrl++ {
				if ctrl == own {
					continue
				}
				if freeCount[ctrl] > 0 {
					if gain := cache.moveGain(mapping, q, ctrl); gain > bestGain {
						bestGain, bestQ, bestCtrl, bestExchange = gain, q, ctrl, -1
					}
				}
				for b := 0; b < n; b++ {
					if moved[b] || b == q || m.cfg.Controller(mapping[b]) != ctrl {
						continue
					}
					if gain := cache.swapGain(mapping, q, b); gain > bestGain {
						bestGain, bestQ, bestCtrl, bestExchange = gain, q, ctrl, b
					}
				}
			}
		}
		if bestQ == -1 {
			break
		}

		own := m.cfg.Controller(mapping[bestQ])
		step := move{qubit: bestQ, oldPq: mapping[bestQ], exchange: bestExchange}
		if bestExchange == -1 {
			step.newPq = m.pickFree(used, bestCtrl)
			mapping[bestQ] = step.newPq
			used[step.oldPq] = false
			used[step.newPq] = true
			freeCount[own]++
			freeCount[bestCtrl]--
			cache.applyMove(bestQ, own, bestCtrl)
			moved[bestQ] = true
			movedCount++
		} else {
			step.newPq = mapping[bestExchange]
			mapping[bestQ], mapping[bestExchange] = mapping[bestExchange], mapping[bestQ]
			cache.applyMove(bestQ, own, bestCtrl)
			cache.applyMove(bestExchange, bestCtrl, own)
			moved[bestQ] = true
			moved[bestExchange] = true
			movedCount += 2
		}
		moves = append(moves, step)
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
	if bestPrefix == 0 {
		return append([]int(nil), initial...)
	}

	result := append([]int(nil), initial...)
	for _, step := range moves[:bestPrefix] {
		result[step.qubit] = step.newPq
		if step.exchange != -1 {
			result[step.exchange] = step.oldPq
		}
	}
	return result
}

// pickFree chooses a random unoccupied physical qubit in the region.
func (m *GraphPartitionMapper) pickFree(used []bool, ctrl int) int {
	free := make([]int, 0, m.cfg.RegionSize(ctrl))
	for _, pq := range m.cfg.Region(ctrl) {
		if !used[pq] {
			free = append(free, pq)
		}
	}
	return free[m.opts.rng.Intn(len(free))]
}
