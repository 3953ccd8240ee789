// Package prune thins the coupling edges between controller regions
// before a circuit is handed to an external router. Fewer cross-region
// couplings steer the router away from routes that would drag feedback
// signals across controller boundaries. Every pruner guarantees the
// surviving graph still connects all physical qubits.
package prune

import (
	"io"
	"log/slog"
	"math/rand"

	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// Pruner produces a pruned coupling edge list.
type Pruner interface {
	Run() ([][2]int, error)
}

// Method names a pruning algorithm.
type Method int

const (
	MethodTrivial Method = iota
	MethodMappingAware
)

func (m Method) String() string {
	switch m {
	case MethodTrivial:
		return "trivial"
	case MethodMappingAware:
		return "mapping_aware"
	default:
		return "unknown"
	}
}

// ParseMethod converts a wire-format method name into a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "trivial":
		return MethodTrivial, nil
	case "mapping_aware":
		return MethodMappingAware, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown pruning method %q", s)
	}
}

// The mapping-aware default is half the trivial one because its valid
// probability range tops out below 0.5.
const (
	defaultProbability             = 0.5
	defaultMappingAwareProbability = 0.25
	defaultBaseSeed                = 1900
	defaultAttempts                = 10
)

type config struct {
	probability float64
	probSet     bool
	baseSeed    int64
	rng         *rand.Rand
	attempts    int
	logger      *slog.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{
		probability: defaultProbability,
		baseSeed:    defaultBaseSeed,
		attempts:    defaultAttempts,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// shuffler returns the random source for one retry attempt. Seeded mode
// reseeds deterministically per attempt; an injected source just keeps
// streaming.
func (c *config) shuffler(attempt int) *rand.Rand {
	if c.rng != nil {
		return c.rng
	}
	return rand.New(rand.NewSource(c.baseSeed + int64(attempt)))
}

// Option configures a pruner.
type Option func(*config)

// WithProbability sets the fraction of inter-region edges to remove.
func WithProbability(p float64) Option {
	return func(c *config) {
		c.probability = p
		c.probSet = true
	}
}

// WithSeed sets the base seed for the per-attempt shuffles.
func WithSeed(seed int64) Option {
	return func(c *config) { c.baseSeed = seed }
}

// WithRand supplies a random source directly, replacing the seeded
// per-attempt reseeding.
func WithRand(rng *rand.Rand) Option {
	return func(c *config) { c.rng = rng }
}

// WithAttempts sets how many prune patterns are tried before giving up.
func WithAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// regionIndex maps every physical qubit to its region id, validating
// that the regions exactly cover the device.
func regionIndex(g *device.CouplingGraph, regions [][]int) ([]int, error) {
	index := make([]int, g.NumQubits())
	for pq := range index {
		index[pq] = -1
	}
	for id, region := range regions {
		for _, pq := range region {
			if pq < 0 || pq >= g.NumQubits() {
				return nil, dErrors.Newf(dErrors.CodeValidation,
					"region %d lists physical qubit %d outside range [0,%d)", id, pq, g.NumQubits())
			}
			if index[pq] != -1 {
				return nil, dErrors.Newf(dErrors.CodeValidation,
					"physical qubit %d appears in regions %d and %d", pq, index[pq], id)
			}
			index[pq] = id
		}
	}
	for pq, id := range index {
		if id == -1 {
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"physical qubit %d is not covered by any region", pq)
		}
	}
	return index, nil
}

// interRegionEdges lists the coupling edges joining different regions,
// in graph edge order.
func interRegionEdges(g *device.CouplingGraph, index []int) [][2]int {
	var edges [][2]int
	for _, e := range g.Edges() {
		if index[e[0]] != index[e[1]] {
			edges = append(edges, e)
		}
	}
	return edges
}

// withoutEdges returns the graph's edges minus the removed set.
func withoutEdges(g *device.CouplingGraph, removed [][2]int) [][2]int {
	drop := make(map[[2]int]struct{}, len(removed))
	for _, e := range removed {
		drop[e] = struct{}{}
	}
	remaining := make([][2]int, 0, len(g.Edges())-len(removed))
	for _, e := range g.Edges() {
		if _, gone := drop[e]; !gone {
			remaining = append(remaining, e)
		}
	}
	return remaining
}

// connectsAll reports whether the edge list still connects every one of
// the n physical qubits. A qubit stripped of all its edges counts as
// disconnected.
func connectsAll(n int, edges [][2]int) bool {
	if n == 0 {
		return true
	}
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	visited := make([]bool, n)
	queue := []int{0}
	visited[0] = true
	count := 1
	for len(queue) > 0 {
		pq := queue[0]
		queue = queue[1:]
		for _, nb := range adj[pq] {
			if !visited[nb] {
				visited[nb] = true
				count++
				queue = append(queue, nb)
			}
		}
	}
	return count == n
}
