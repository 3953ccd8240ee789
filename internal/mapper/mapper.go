// Package mapper assigns the logical qubits of a conditioned circuit to
// physical qubits so that as few conditional-feedback pairs as possible
// straddle a controller boundary. All strategies produce an injective
// logical-to-physical mapping and honour the controller partition held
// by the device configuration.
package mapper

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"qplace/internal/circuit"
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// Strategy selects a placement algorithm.
type Strategy int

const (
	// StrategyGraphPartition runs the restart-based partition search with
	// prefix-committed move passes and randomized local search.
	StrategyGraphPartition Strategy = iota
	// StrategyIterKL runs repeated pairwise Kernighan-Lin sweeps under a
	// wall-clock budget.
	StrategyIterKL
	// StrategyTwoStep runs the partition search and then rearranges each
	// controller region to shorten two-qubit gate distances.
	StrategyTwoStep
	// StrategyRandomIntra shuffles physical qubits inside each controller
	// region without changing any controller assignment. It is the
	// baseline the optimizing strategies are measured against.
	StrategyRandomIntra
)

func (s Strategy) String() string {
	switch s {
	case StrategyGraphPartition:
		return "graph_partition"
	case StrategyIterKL:
		return "iter_kl"
	case StrategyTwoStep:
		return "two_step"
	case StrategyRandomIntra:
		return "random_intra"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a wire-format strategy name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "graph_partition":
		return StrategyGraphPartition, nil
	case "iter_kl":
		return StrategyIterKL, nil
	case "two_step":
		return StrategyTwoStep, nil
	case "random_intra":
		return StrategyRandomIntra, nil
	default:
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown mapping strategy %q", s)
	}
}

// Mapper is a placement algorithm bound to one device configuration and
// one circuit. Run may be called repeatedly; each call starts a fresh
// search using the mapper's random source.
type Mapper interface {
	Run(ctx context.Context) ([]int, error)
}

const (
	defaultRestarts     = 10
	defaultPlateauLimit = 5
	defaultLocalTrials  = 1000
	defaultLocalDepth   = 3
	defaultKLBudget     = 4 * time.Second
	defaultKLTrials     = 100
)

// config collects option values. Zero fields mean the strategy default
// applies; each constructor resolves its own defaults.
type config struct {
	rng          *rand.Rand
	logger       *slog.Logger
	restarts     int
	budget       time.Duration
	plateauLimit int
	localTrials  int
	localDepth   int
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return cfg
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Option configures a mapper.
type Option func(*config)

// WithSeed makes the mapper's random decisions reproducible. Two
// mappers built with the same seed and inputs produce the same mapping.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand supplies the random source directly. It overrides WithSeed.
func WithRand(rng *rand.Rand) Option {
	return func(c *config) {
		c.rng = rng
	}
}

// WithLogger attaches a structured logger for search progress events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRestarts sets how many independent searches the partition
// strategies run before keeping the best result.
func WithRestarts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.restarts = n
		}
	}
}

// WithBudget caps the wall-clock time a search may spend. Zero means
// the strategy default: unlimited for the restart strategies, four
// seconds for the Kernighan-Lin strategy.
func WithBudget(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.budget = d
		}
	}
}

// WithLocalSearch tunes the randomized local search that runs when a
// move pass stalls: trials independent attempts of depth chained swaps.
func WithLocalSearch(trials, depth int) Option {
	return func(c *config) {
		if trials > 0 {
			c.localTrials = trials
		}
		if depth > 0 {
			c.localDepth = depth
		}
	}
}

// WithPlateauLimit sets how many consecutive non-improving rounds a
// restart tolerates before giving up on its current mapping.
func WithPlateauLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.plateauLimit = n
		}
	}
}

// New builds the mapper for the requested strategy.
func New(strategy Strategy, cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (Mapper, error) {
	switch strategy {
	case StrategyGraphPartition:
		return NewGraphPartition(cfg, props, opts...)
	case StrategyIterKL:
		return NewIterKL(cfg, props, opts...)
	case StrategyTwoStep:
		return NewTwoStep(cfg, props, opts...)
	case StrategyRandomIntra:
		return NewRandomIntra(cfg, props, opts...)
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown mapping strategy %d", strategy)
	}
}

// Score reports the number of conditional pairs that cross a controller
// boundary under the given mapping.
func Score(cfg *device.ControllerConfig, props *circuit.Properties, mapping []int) int {
	return device.CrossControllerPairs(cfg, props.CifPairs(), mapping)
}

func checkFits(cfg *device.ControllerConfig, props *circuit.Properties) error {
	if props.NumQubits() > cfg.NumQubits() {
		return dErrors.Newf(dErrors.CodeConfiguration,
			"circuit uses %d qubits but the device has %d", props.NumQubits(), cfg.NumQubits())
	}
	return nil
}
