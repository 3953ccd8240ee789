package refine

import (
	"context"
	"sort"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// IntraOptimizer rearranges the physical qubits inside each controller
// region so that two-qubit gates travel shorter routes. Controller
// assignment is never changed: a logical qubit stays on the controller
// the coarse mapper chose, only its physical slot within the region
// moves.
type IntraOptimizer struct {
	graph        *device.CouplingGraph
	cfg          *device.ControllerConfig
	gates        [][2]int
	gatesByQubit [][]int
	partners     [][]int
	opts         *config
}

// NewIntraOptimizer builds the optimizer for one device and circuit.
func NewIntraOptimizer(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*IntraOptimizer, error) {
	if props.NumQubits() > cfg.NumQubits() {
		return nil, dErrors.Newf(dErrors.CodeConfiguration,
			"circuit uses %d qubits but the device has %d", props.NumQubits(), cfg.NumQubits())
	}
	n := props.NumQubits()
	o := &IntraOptimizer{
		graph:        cfg.Graph(),
		cfg:          cfg,
		gates:        props.TwoQubitGates(),
		gatesByQubit: make([][]int, n),
		partners:     make([][]int, n),
		opts:         newConfig(opts),
	}

	partnerSets := make([]map[int]struct{}, n)
	for q := range partnerSets {
		partnerSets[q] = make(map[int]struct{})
	}
	for i, gate := range o.gates {
		u, v := gate[0], gate[1]
		o.gatesByQubit[u] = append(o.gatesByQubit[u], i)
		if v != u {
			o.gatesByQubit[v] = append(o.gatesByQubit[v], i)
		}
		partnerSets[u][v] = struct{}{}
		partnerSets[v][u] = struct{}{}
	}
	for q, set := range partnerSets {
		for p := range set {
			o.partners[q] = append(o.partners[q], p)
		}
		sort.Ints(o.partners[q])
	}
	return o, nil
}

// Refine reslots every controller's logical qubits and then polishes
// each region with random swap trials. Qubits with many cross-controller
// interactions are pushed onto boundary physical qubits so their
// signals travel the short way out of the region.
func (o *IntraOptimizer) Refine(ctx context.Context, mapping []int) ([]int, error) {
	if len(mapping) != len(o.partners) {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"mapping covers %d qubits, circuit has %d", len(mapping), len(o.partners))
	}
	if err := device.ValidateMapping(mapping, o.cfg.NumQubits()); err != nil {
		return nil, err
	}

	result := append([]int(nil), mapping...)
	for ctrl := 0; ctrl < o.cfg.NumControllers(); ctrl++ {
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeMappingFailed, "refinement cancelled")
		}
		logicals := o.controllerQubits(result, ctrl)
		if len(logicals) == 0 {
			continue
		}
		o.reslotRegion(result, mapping, ctrl, logicals)
		o.polishRegion(result, logicals)
	}
	return result, nil
}

// controllerQubits lists the logical qubits currently on a controller.
func (o *IntraOptimizer) controllerQubits(mapping []int, ctrl int) []int {
	var logicals []int
	for q := range o.partners {
		if o.cfg.Controller(mapping[q]) == ctrl {
			logicals = append(logicals, q)
		}
	}
	return logicals
}

// reslotRegion assigns the region's physical qubits anew. Boundary
// physical qubits, the ones coupled to another controller's qubits, go
// first to the logical qubits with the most cross-controller partners;
// the remaining slots are handed out by closeness to the boundary.
func (o *IntraOptimizer) reslotRegion(result, initial []int, ctrl int, logicals []int) {
	crossCount := make(map[int]int, len(logicals))
	for _, q := range logicals {
		for _, p := range o.partners[q] {
			if o.cfg.Controller(initial[p]) != ctrl {
				crossCount[q]++
			}
		}
	}
	ordered := append([]int(nil), logicals...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return crossCount[ordered[i]] > crossCount[ordered[j]]
	})

	var boundary, inner []int
	for _, pq := range o.cfg.Region(ctrl) {
		if o.isBoundary(pq, ctrl) {
			boundary = append(boundary, pq)
		} else {
			inner = append(inner, pq)
		}
	}
	boundaryDist := func(pq int) int {
		total := 0
		for _, b := range boundary {
			if d := o.graph.Distance(pq, b); d >= 0 {
				total += d
			} else {
				total += unreachablePenalty
			}
		}
		return total
	}
	sort.SliceStable(inner, func(i, j int) bool {
		return boundaryDist(inner[i]) < boundaryDist(inner[j])
	})

	slots := append(boundary, inner...)
	for i, q := range ordered {
		result[q] = slots[i]
	}
}

func (o *IntraOptimizer) isBoundary(pq, ctrl int) bool {
	for _, nb := range o.graph.Neighbors(pq) {
		if o.cfg.Controller(nb) != ctrl {
			return true
		}
	}
	return false
}

// polishRegion runs random swap trials between the region's logical
// qubits, keeping a swap only when it strictly lowers the gate cost.
func (o *IntraOptimizer) polishRegion(result []int, logicals []int) {
	if len(logicals) < 2 {
		return
	}
	for trial := 0; trial < o.opts.trials; trial++ {
		i := o.opts.rng.Intn(len(logicals))
		j := o.opts.rng.Intn(len(logicals) - 1)
		if j >= i {
			j++
		}
		a, b := logicals[i], logicals[j]
		if o.swapDelta(result, a, b) < 0 {
			result[a], result[b] = result[b], result[a]
		}
	}
}

// swapDelta computes the gate cost change from exchanging the slots of
// two logical qubits, touching only the gates incident to either one.
func (o *IntraOptimizer) swapDelta(mapping []int, a, b int) int {
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
	seen := make(map[int]struct{}, len(o.gatesByQubit[a])+len(o.gatesByQubit[b]))
	for _, list := range [2][]int{o.gatesByQubit[a], o.gatesByQubit[b]} {
		for _, i := range list {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			gate := o.gates[i]
			delta -= gateCost(o.graph, o.cfg, mapping[gate[0]], mapping[gate[1]])
			delta += gateCost(o.graph, o.cfg, at(gate[0]), at(gate[1]))
		}
	}
	return delta
}
