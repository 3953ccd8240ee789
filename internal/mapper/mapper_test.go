package mapper

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lineConfig builds a line device split into contiguous controller
// regions, silencing partition warnings.
func lineConfig(t *testing.T, numQubits, numControllers int) *device.ControllerConfig {
	t.Helper()
	g, err := device.Line(numQubits)
	require.NoError(t, err)
	cfg, err := device.NewControllerConfig(g, numControllers, device.WithPartitionLogger(discardLogger()))
	require.NoError(t, err)
	return cfg
}

// conditionedProps builds circuit properties whose conditional pairs
// are exactly the given (target, source) list, in order.
func conditionedProps(t *testing.T, numQubits int, pairs [][2]int) *circuit.Properties {
	t.Helper()
	circ := circuit.New(numQubits, 1)
	for _, pair := range pairs {
		circ.Measure(pair[1], 0)
		circ.X(pair[0]).CIf(0, 1)
	}
	props, err := circuit.NewProperties(circ)
	require.NoError(t, err)
	require.Equal(t, pairs, props.CifPairs())
	return props
}

// cliquePairs joins every qubit pair within each group once.
func cliquePairs(groups [][]int) [][2]int {
	var pairs [][2]int
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				pairs = append(pairs, [2]int{group[i], group[j]})
			}
		}
	}
	return pairs
}

func TestNewGraphPartitionRejectsOversizedCircuit(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 9, [][2]int{{0, 1}})

	_, err := NewGraphPartition(cfg, props)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestGraphPartitionColocatesCliques(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	groups := [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9, 10, 11}}
	props := conditionedProps(t, 12, cliquePairs(groups))

	m, err := NewGraphPartition(cfg, props, WithSeed(1), WithRestarts(2))
	require.NoError(t, err)
	mapping, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, mapping, 12)
	require.NoError(t, device.ValidateMapping(mapping, cfg.NumQubits()))
	assert.Equal(t, 0, Score(cfg, props, mapping))
	for _, group := range groups {
		ctrl := cfg.Controller(mapping[group[0]])
		for _, q := range group[1:] {
			assert.Equal(t, ctrl, cfg.Controller(mapping[q]), "qubit %d left its clique's controller", q)
		}
	}
}

func TestGraphPartitionDeterministicUnderSeed(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {1, 1}, {3, 8}, {0, 5}, {4, 11}, {6, 10}}
	props := conditionedProps(t, 12, pairs)

	run := func() []int {
		m, err := NewGraphPartition(cfg, props, WithSeed(42), WithRestarts(3))
		require.NoError(t, err)
		mapping, err := m.Run(context.Background())
		require.NoError(t, err)
		return mapping
	}
	first := run()
	second := run()
	assert.Equal(t, first, second)
	require.NoError(t, device.ValidateMapping(first, cfg.NumQubits()))
}

func TestGraphPartitionPlacesSmallerCircuits(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	props := conditionedProps(t, 7, [][2]int{{0, 6}, {1, 5}, {2, 4}, {3, 0}})

	m, err := NewGraphPartition(cfg, props, WithSeed(3))
	require.NoError(t, err)
	mapping, err := m.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, mapping, 7)
	assert.NoError(t, device.ValidateMapping(mapping, cfg.NumQubits()))
}

func TestGraphPartitionCancelledBeforeStart(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 7, [][2]int{{0, 1}})
	m, err := NewGraphPartition(cfg, props, WithSeed(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMappingFailed))
}

func TestOptimizeMappingCommitsImprovingPrefix(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 4, [][2]int{{0, 1}, {0, 1}})
	m, err := NewGraphPartition(cfg, props, WithSeed(9))
	require.NoError(t, err)

	// Qubits 0 and 1 talk twice but start on different controllers;
	// controller 1 is full, so the only improving action is the swap
	// bringing 0 next to 1.
	initial := []int{0, 3, 1, 4}
	require.Equal(t, 2, m.score(initial))

	result := m.optimizeMapping(initial)
	assert.Equal(t, []int{4, 3, 1, 0}, result)
	assert.Equal(t, 0, m.score(result))
	assert.Equal(t, []int{0, 3, 1, 4}, initial, "input mapping must not be mutated")
}

func TestOptimizeMappingKeepsSettledMapping(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 4, [][2]int{{0, 1}, {2, 3}})
	m, err := NewGraphPartition(cfg, props, WithSeed(5))
	require.NoError(t, err)

	// Both pairs already share a controller; no prefix can gain.
	initial := []int{0, 1, 3, 4}
	result := m.optimizeMapping(initial)
	assert.Equal(t, initial, result)
}

func TestLocalSearchNeverWorsens(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {3, 8}, {4, 11}, {6, 10}, {1, 9}}
	props := conditionedProps(t, 12, pairs)
	m, err := NewGraphPartition(cfg, props, WithSeed(11))
	require.NoError(t, err)

	initial := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	initialScore := m.score(initial)
	result, resultScore := m.localSearch(initial, initialScore, 200, 3)

	assert.LessOrEqual(t, resultScore, initialScore)
	assert.Equal(t, m.score(result), resultScore, "tracked score must match a full rescore")
	assert.NoError(t, device.ValidateMapping(result, cfg.NumQubits()))
}

func TestGainCacheMatchesDirectScan(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {3, 8}, {0, 5}, {4, 11}, {6, 10}, {1, 9}, {2, 5}}
	graph := newCifGraph(12, pairs)
	mapping := []int{3, 7, 0, 10, 5, 1, 8, 2, 11, 4, 6, 9}

	cache := newGainCache(cfg, graph, mapping)
	for q := 0; q < 12; q++ {
		for ctrl := 0; ctrl < cfg.NumControllers(); ctrl++ {
			assert.Equal(t,
				graph.moveGainAt(cfg, mapping, q, ctrl),
				cache.moveGain(mapping, q, ctrl),
				"move gain mismatch for qubit %d controller %d", q, ctrl)
		}
	}
}

func TestGainCacheSwapGainMatchesExactDelta(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	// No self pairs: the cached swap gain is then the exact negated
	// score delta.
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {3, 8}, {0, 5}, {4, 11}, {6, 10}, {1, 9}}
	graph := newCifGraph(12, pairs)
	mapping := []int{3, 7, 0, 10, 5, 1, 8, 2, 11, 4, 6, 9}
	cache := newGainCache(cfg, graph, mapping)

	for a := 0; a < 12; a++ {
		for b := a + 1; b < 12; b++ {
			if cfg.SameController(mapping[a], mapping[b]) {
				continue
			}
			assert.Equal(t,
				-graph.swapDelta(cfg, mapping, a, b),
				cache.swapGain(mapping, a, b),
				"swap gain mismatch for qubits %d and %d", a, b)
		}
	}
}

func TestGainCacheStaysConsistentAfterMoves(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {3, 8}, {0, 5}, {4, 11}, {6, 10}, {1, 9}}
	graph := newCifGraph(12, pairs)
	mapping := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	cache := newGainCache(cfg, graph, mapping)

	// Swap qubits 0 and 5 across controllers 0 and 1, then move the
	// cache along and compare against a cache built from scratch.
	from, to := cfg.Controller(mapping[0]), cfg.Controller(mapping[5])
	mapping[0], mapping[5] = mapping[5], mapping[0]
	cache.applyMove(0, from, to)
	cache.applyMove(5, to, from)

	fresh := newGainCache(cfg, graph, mapping)
	assert.Equal(t, fresh.counts, cache.counts)
}

func TestSwapDeltaMatchesFullRescore(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	pairs := [][2]int{{0, 5}, {5, 9}, {2, 7}, {1, 1}, {3, 8}, {0, 5}, {4, 11}, {6, 10}}
	graph := newCifGraph(12, pairs)
	rng := rand.New(rand.NewSource(17))

	mapping := rng.Perm(12)
	for trial := 0; trial < 50; trial++ {
		a, b := rng.Intn(12), rng.Intn(12)
		if a == b {
			continue
		}
		before := graph.score(cfg, mapping)
		delta := graph.swapDelta(cfg, mapping, a, b)
		mapping[a], mapping[b] = mapping[b], mapping[a]
		assert.Equal(t, before+delta, graph.score(cfg, mapping))
	}
}

func TestIterKLColocatesCliques(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	groups := [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9, 10, 11}}
	props := conditionedProps(t, 12, cliquePairs(groups))

	m, err := NewIterKL(cfg, props, WithSeed(1), WithBudget(50*time.Millisecond))
	require.NoError(t, err)
	mapping, err := m.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, device.ValidateMapping(mapping, cfg.NumQubits()))
	assert.Equal(t, 0, Score(cfg, props, mapping))
}

func TestIterKLRunsAtLeastOneRestart(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 7, [][2]int{{0, 6}, {2, 4}})

	m, err := NewIterKL(cfg, props, WithSeed(2), WithBudget(time.Nanosecond))
	require.NoError(t, err)
	mapping, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, mapping, 7)
}

func TestTwoStepKeepsCoarseControllerAssignment(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	groups := [][]int{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9, 10, 11}}
	props := conditionedProps(t, 12, cliquePairs(groups))

	coarse, err := NewGraphPartition(cfg, props, WithSeed(8), WithRestarts(2))
	require.NoError(t, err)
	coarseMapping, err := coarse.Run(context.Background())
	require.NoError(t, err)

	twoStep, err := NewTwoStep(cfg, props, WithSeed(8), WithRestarts(2))
	require.NoError(t, err)
	refined, err := twoStep.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, device.ValidateMapping(refined, cfg.NumQubits()))
	for q := range refined {
		assert.Equal(t,
			cfg.Controller(coarseMapping[q]),
			cfg.Controller(refined[q]),
			"refinement moved qubit %d across controllers", q)
	}
}

func TestRandomIntraPreservesControllerAssignment(t *testing.T) {
	cfg := lineConfig(t, 12, 3)
	props := conditionedProps(t, 12, [][2]int{{0, 5}, {2, 9}})

	m, err := NewRandomIntra(cfg, props, WithSeed(4))
	require.NoError(t, err)
	mapping, err := m.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, device.ValidateMapping(mapping, cfg.NumQubits()))
	for q, pq := range mapping {
		assert.Equal(t, cfg.Controller(q), cfg.Controller(pq),
			"qubit %d left its identity controller", q)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, want := range []Strategy{StrategyGraphPartition, StrategyIterKL, StrategyTwoStep, StrategyRandomIntra} {
		got, err := ParseStrategy(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrategy("simulated_bogo")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestFactoryBuildsEveryStrategy(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 7, [][2]int{{0, 6}, {2, 4}})

	for _, strategy := range []Strategy{StrategyGraphPartition, StrategyIterKL, StrategyTwoStep, StrategyRandomIntra} {
		m, err := New(strategy, cfg, props,
			WithSeed(6),
			WithRestarts(1),
			WithBudget(20*time.Millisecond),
			WithLogger(discardLogger()),
		)
		require.NoError(t, err, strategy.String())
		mapping, err := m.Run(context.Background())
		require.NoError(t, err, strategy.String())
		assert.NoError(t, device.ValidateMapping(mapping, cfg.NumQubits()), strategy.String())
		assert.Len(t, mapping, 7, strategy.String())
	}
}

func TestScoreCountsCrossControllerPairs(t *testing.T) {
	cfg := lineConfig(t, 7, 3)
	props := conditionedProps(t, 4, [][2]int{{0, 1}, {2, 3}, {0, 3}})

	// Regions are {0,1,2}, {3,4}, {5,6}: the first pair stays inside
	// controller 0, the other two cross.
	assert.Equal(t, 2, Score(cfg, props, []int{0, 1, 2, 3}))
	// Pulling qubits 2 and 3 onto controller 1 leaves only (0,3) crossing.
	assert.Equal(t, 1, Score(cfg, props, []int{0, 1, 3, 4}))
	// Permuting slots within a controller never changes the score.
	assert.Equal(t, 2, Score(cfg, props, []int{1, 0, 2, 3}))
}
