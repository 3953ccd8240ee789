package device

import (
	"log/slog"

	dErrors "qplace/pkg/domain-errors"
)

// Strategy selects how physical qubits are partitioned into controller
// regions.
type Strategy int

const (
	// StrategyTrivial splits the qubit index range into contiguous
	// near-equal chunks, ignoring topology.
	StrategyTrivial Strategy = iota
	// StrategyConnected grows connected regions via breadth-first
	// traversal and redistributes disconnected leftovers evenly.
	StrategyConnected
	// StrategyConnectedStrict is the legacy connected variant that
	// fails when the coupling graph is disconnected.
	StrategyConnectedStrict
)

func (s Strategy) String() string {
	switch s {
	case StrategyTrivial:
		return "trivial"
	case StrategyConnected:
		return "connected"
	case StrategyConnectedStrict:
		return "connected_strict"
	default:
		return "unknown"
	}
}

// ParseStrategy resolves a strategy name from configuration.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "trivial":
		return StrategyTrivial, nil
	case "connected":
		return StrategyConnected, nil
	case "connected_strict":
		return StrategyConnectedStrict, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeConfiguration, "unknown partition strategy %q", name)
	}
}

// Partition assigns every physical qubit to exactly one controller and
// returns both directions of the assignment: pqToCtrl indexed by
// physical qubit and ctrlToPq indexed by controller id. The two views
// are mutual inverses.
func Partition(g *CouplingGraph, numControllers int, strategy Strategy, logger *slog.Logger) (pqToCtrl []int, ctrlToPq [][]int, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if numControllers <= 0 {
		return nil, nil, dErrors.Newf(dErrors.CodeConfiguration, "need at least one controller, got %d", numControllers)
	}
	if numControllers > g.NumQubits() {
		return nil, nil, dErrors.Newf(dErrors.CodeConfiguration, "more controllers (%d) than qubits (%d)", numControllers, g.NumQubits())
	}

	var regions [][]int
	switch strategy {
	case StrategyTrivial:
		regions = trivialRegions(g.NumQubits(), numControllers)
	case StrategyConnected:
		regions = connectedRegions(g, numControllers, logger)
	case StrategyConnectedStrict:
		if !g.Connected() {
			return nil, nil, dErrors.Newf(dErrors.CodePartition,
				"coupling graph is disconnected (%d components) and strategy %s requires connectivity",
				len(g.Components()), strategy)
		}
		regions = connectedRegions(g, numControllers, logger)
	default:
		return nil, nil, dErrors.Newf(dErrors.CodeConfiguration, "unknown partition strategy %d", strategy)
	}

	pqToCtrl = make([]int, g.NumQubits())
	for ctrl, region := range regions {
		for _, pq := range region {
			pqToCtrl[pq] = ctrl
		}
	}
	return pqToCtrl, regions, nil
}

// trivialRegions chunks [0, numQubits) contiguously, the leading chunks
// one element larger when the division is uneven.
func trivialRegions(numQubits, numControllers int) [][]int {
	qubits := make([]int, numQubits)
	for i := range qubits {
		qubits[i] = i
	}
	return splitChunks(qubits, numControllers)
}

// connectedRegions repeatedly grows a region of regionSize qubits by
// breadth-first traversal over the not-yet-assigned part of the graph.
// Regions that come up short because their component was exhausted are
// pooled and redistributed near-equally across the controllers that did
// not receive a full region.
func connectedRegions(g *CouplingGraph, numControllers int, logger *slog.Logger) [][]int {
	numQubits := g.NumQubits()
	regionSize := (numQubits + numControllers - 1) / numControllers

	taken := make([]bool, numQubits)
	remaining := numQubits
	var full [][]int
	var pool []int

	for remaining > 0 {
		start := -1
		for q := 0; q < numQubits; q++ {
			if !taken[q] {
				start = q
				break
			}
		}

		region := growRegion(g, start, regionSize, taken)
		remaining -= len(region)
		if len(region) == regionSize && len(full) < numControllers {
			full = append(full, region)
		} else {
			pool = append(pool, region...)
		}
	}

	if len(pool) > regionSize {
		logger.Warn("remainder pool exceeds region size, topology too fragmented for even partitioning",
			"pool_size", len(pool),
			"region_size", regionSize,
			"full_regions", len(full),
		)
	}

	missing := numControllers - len(full)
	if missing == 0 {
		return full
	}
	return append(full, splitChunks(pool, missing)...)
}

// growRegion collects up to limit unassigned qubits reachable from
// start in breadth-first order, marking them taken.
func growRegion(g *CouplingGraph, start, limit int, taken []bool) []int {
	region := make([]int, 0, limit)
	taken[start] = true
	queue := []int{start}
	for len(queue) > 0 && len(region) < limit {
		cur := queue[0]
		queue = queue[1:]
		region = append(region, cur)
		for _, next := range g.Neighbors(cur) {
			if !taken[next] {
				taken[next] = true
				queue = append(queue, next)
			}
		}
	}
	// Nodes pulled into the queue but not consumed stay available for
	// later regions.
	for _, q := range queue {
		taken[q] = false
	}
	return region
}

// splitChunks divides items into n contiguous chunks whose sizes differ
// by at most one, larger chunks first.
func splitChunks(items []int, n int) [][]int {
	chunks := make([][]int, 0, n)
	base := len(items) / n
	extra := len(items) % n
	offset := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, items[offset:offset+size])
		offset += size
	}
	return chunks
}
