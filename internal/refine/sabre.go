package refine

import (
	"context"
	"math"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// SabreRefiner judges and improves a mapping by simulating circuit
// execution over it. Two-qubit gates form a dependency chain per qubit;
// the simulation executes every front gate whose endpoints are coupled
// under the current layout and otherwise applies the best-scoring swap
// along a coupling edge, occasionally accepting a worse swap to escape
// local minima. Each completed simulation yields a candidate mapping;
// the best candidate by gate routing cost and cross-controller pair
// count is returned.
type SabreRefiner struct {
	graph    *device.CouplingGraph
	cfg      *device.ControllerConfig
	gates    [][2]int
	succs    [][]int
	numPreds []int
	cifPairs [][2]int
	n        int
	opts     *config
}

// NewSabreRefiner builds the refiner for one device and circuit.
func NewSabreRefiner(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*SabreRefiner, error) {
	if props.NumQubits() > cfg.NumQubits() {
		return nil, dErrors.Newf(dErrors.CodeConfiguration,
			"circuit uses %d qubits but the device has %d", props.NumQubits(), cfg.NumQubits())
	}
	r := &SabreRefiner{
		graph:    cfg.Graph(),
		cfg:      cfg,
		gates:    props.TwoQubitGates(),
		cifPairs: props.CifPairs(),
		n:        props.NumQubits(),
		opts:     newConfig(opts),
	}
	r.succs = make([][]int, len(r.gates))
	r.numPreds = make([]int, len(r.gates))

	lastGate := make([]int, r.n)
	for q := range lastGate {
		lastGate[q] = -1
	}
	for i, gate := range r.gates {
		prev := -1
		for _, q := range []int{gate[0], gate[1]} {
			if p := lastGate[q]; p >= 0 && p != prev && p != i {
				r.succs[p] = append(r.succs[p], i)
				r.numPreds[i]++
				prev = p
			}
			lastGate[q] = i
		}
	}
	return r, nil
}

// Refine runs up to maxIterations simulations, restarting from the
// initial mapping after stagnationLimit non-improving rounds, and
// returns the best candidate mapping found. The initial mapping itself
// is always in the candidate pool, so the result never scores worse
// than the input.
func (r *SabreRefiner) Refine(ctx context.Context, initial []int) ([]int, error) {
	if len(initial) != r.n {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"mapping covers %d qubits, circuit has %d", len(initial), r.n)
	}
	if err := device.ValidateMapping(initial, r.cfg.NumQubits()); err != nil {
		return nil, err
	}
	best := append([]int(nil), initial...)
	if len(r.gates) == 0 {
		return best, nil
	}

	bestCost := r.candidateCost(best)
	layout := append([]int(nil), initial...)
	temp := r.opts.initialTemp
	stagnation := 0
	for iter := 0; iter < r.opts.maxIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		final, completed := r.simulate(layout, temp)
		if completed {
			cost := r.candidateCost(final)
			if cost < bestCost {
				best = append(best[:0], final...)
				bestCost = cost
				stagnation = 0
			} else {
				stagnation++
			}
			layout = final
		} else {
			stagnation++
		}
		if stagnation >= r.opts.stagnationLimit {
			layout = append(layout[:0], initial...)
			stagnation = 0
			temp = r.opts.initialTemp
		}
		temp *= r.opts.cooling
		r.opts.logger.Debug("simulation finished",
			"iteration", iter, "completed", completed, "best_cost", bestCost)
	}
	return best, nil
}

// candidateCost ranks candidate mappings: summed gate routing cost plus
// a weighted count of cross-controller conditional pairs.
func (r *SabreRefiner) candidateCost(mapping []int) float64 {
	routing := CouplingCost(r.cfg, r.gates, mapping)
	cross := device.CrossControllerPairs(r.cfg, r.cifPairs, mapping)
	return float64(routing) + r.opts.cifPenalty*float64(cross)
}

// simulate executes the gate DAG over a copy of the layout, swapping
// along coupling edges whenever the front is blocked. It reports false
// when the swap cap is reached before every gate executes.
func (r *SabreRefiner) simulate(start []int, temp float64) ([]int, bool) {
	layout := append([]int(nil), start...)
	occupant := make([]int, r.cfg.NumQubits())
	for pq := range occupant {
		occupant[pq] = -1
	}
	for lq, pq := range layout {
		occupant[pq] = lq
	}

	indeg := append([]int(nil), r.numPreds...)
	executed := make([]bool, len(r.gates))
	remaining := len(r.gates)

	swapCap := 8*len(r.gates) + 2*r.n
	if swapCap < 64 {
		swapCap = 64
	}
	swaps := 0

	for remaining > 0 {
		progress := true
		for progress {
			progress = false
			for i, gate := range r.gates {
				if executed[i] || indeg[i] != 0 {
					continue
				}
				if gate[0] == gate[1] || r.graph.HasEdge(layout[gate[0]], layout[gate[1]]) {
					executed[i] = true
					remaining--
					for _, s := range r.succs[i] {
						indeg[s]--
					}
					progress = true
				}
			}
		}
		if remaining == 0 {
			break
		}
		if swaps >= swapCap {
			return layout, false
		}

		cands := r.swapCandidates(layout, indeg, executed)
		if len(cands) == 0 {
			return layout, false
		}
		base := r.heuristic(layout, indeg, executed)
		bestIdx := 0
		bestDelta := math.Inf(1)
		for idx, cand := range cands {
			r.applySwap(layout, occupant, cand)
			delta := r.heuristic(layout, indeg, executed) - base
			r.applySwap(layout, occupant, cand)
			if delta < bestDelta {
				bestDelta, bestIdx = delta, idx
			}
		}
		chosen := cands[bestIdx]
		if bestDelta >= 0 {
			accept := temp > 0 && r.opts.rng.Float64() < math.Exp(-bestDelta/temp)
			if !accept {
				chosen = cands[r.opts.rng.Intn(len(cands))]
			}
		}
		r.applySwap(layout, occupant, chosen)
		swaps++
	}
	return layout, true
}

// swapCandidates proposes the coupling edges incident to any physical
// qubit hosting an endpoint of a blocked front gate, deduplicated, in
// deterministic order.
func (r *SabreRefiner) swapCandidates(layout []int, indeg []int, executed []bool) [][2]int {
	var cands [][2]int
	seen := make(map[[2]int]struct{})
	for i, gate := range r.gates {
		if executed[i] || indeg[i] != 0 {
			continue
		}
		for _, lq := range []int{gate[0], gate[1]} {
			pq := layout[lq]
			for _, nb := range r.graph.Neighbors(pq) {
				pair := [2]int{pq, nb}
				if pair[0] > pair[1] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				cands = append(cands, pair)
			}
		}
	}
	return cands
}

// heuristic scores the current layout against the blocked front: hop
// distance plus cross-controller penalty per front gate, with the
// immediate successor gates weighed in at the lookahead factor. Integer
// sums keep the value independent of iteration order.
func (r *SabreRefiner) heuristic(layout []int, indeg []int, executed []bool) float64 {
	frontSum := 0
	lookSum := 0
	counted := make(map[int]struct{})
	for i, gate := range r.gates {
		if executed[i] || indeg[i] != 0 {
			continue
		}
		frontSum += r.gateDistance(layout, gate)
		for _, s := range r.succs[i] {
			if executed[s] {
				continue
			}
			if _, dup := counted[s]; dup {
				continue
			}
			counted[s] = struct{}{}
			lookSum += r.gateDistance(layout, r.gates[s])
		}
	}
	return float64(frontSum) + r.opts.lookahead*float64(lookSum)
}

func (r *SabreRefiner) gateDistance(layout []int, gate [2]int) int {
	pu, pv := layout[gate[0]], layout[gate[1]]
	d := r.graph.Distance(pu, pv)
	if d < 0 {
		d = unreachablePenalty
	}
	if !r.cfg.SameController(pu, pv) {
		d += r.opts.crossPenalty
	}
	return d
}

// applySwap exchanges the occupants of two physical qubits. Either side
// may be unoccupied. The operation is its own inverse.
func (r *SabreRefiner) applySwap(layout, occupant []int, pair [2]int) {
	la, lb := occupant[pair[0]], occupant[pair[1]]
	if la >= 0 {
		layout[la] = pair[1]
	}
	if lb >= 0 {
		layout[lb] = pair[0]
	}
	occupant[pair[0]], occupant[pair[1]] = lb, la
}
