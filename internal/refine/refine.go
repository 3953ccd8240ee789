// Package refine improves a coarse placement without discarding the
// controller structure the mapper chose. The intra-controller optimizer
// rearranges physical qubits inside each region to shorten two-qubit
// gate routes, the random shuffler generates cheap perturbations for
// multi-trial evaluation, and the swap-simulation refiner walks the
// circuit gate by gate to judge and improve routability.
package refine

import (
	"io"
	"log/slog"
	"math/rand"
	"time"

	"qplace/internal/device"
)

// Cost weights shared by the distance-based refiners. A route with no
// physical path is charged a large flat penalty instead of a distance.
const (
	sameControllerWeight  = 1
	crossControllerWeight = 3
	unreachablePenalty    = 1000
)

type config struct {
	rng             *rand.Rand
	logger          *slog.Logger
	trials          int
	maxIterations   int
	stagnationLimit int
	initialTemp     float64
	cooling         float64
	crossPenalty    int
	lookahead       float64
	cifPenalty      float64
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		trials:          defaultTrials,
		maxIterations:   defaultMaxIterations,
		stagnationLimit: defaultStagnationLimit,
		initialTemp:     defaultInitialTemp,
		cooling:         defaultCooling,
		crossPenalty:    defaultCrossPenalty,
		lookahead:       defaultLookahead,
		cifPenalty:      defaultCifPenalty,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return cfg
}

const (
	defaultTrials          = 1000
	defaultMaxIterations   = 20
	defaultStagnationLimit = 5
	defaultInitialTemp     = 1.0
	defaultCooling         = 0.95
	defaultCrossPenalty    = 5
	defaultLookahead       = 0.5
	defaultCifPenalty      = 10.0
)

// Option configures a refiner.
type Option func(*config)

// WithSeed makes the refiner's random decisions reproducible.
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

// WithLogger attaches a structured logger for refinement events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTrials sets the number of random swap trials the intra-controller
// optimizer runs per region.
func WithTrials(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.trials = n
		}
	}
}

// WithMaxIterations caps how many full circuit simulations the swap
// refiner runs before returning its best candidate.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithStagnationLimit sets how many non-improving simulations the swap
// refiner tolerates before restarting from the initial mapping.
func WithStagnationLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.stagnationLimit = n
		}
	}
}

// WithAnnealing tunes the acceptance schedule of the swap refiner:
// initial temperature and the per-iteration cooling factor.
func WithAnnealing(initialTemp, cooling float64) Option {
	return func(c *config) {
		if initialTemp > 0 {
			c.initialTemp = initialTemp
		}
		if cooling > 0 && cooling < 1 {
			c.cooling = cooling
		}
	}
}

// WithCrossPenalty sets the extra hop cost charged to a front gate
// whose endpoints sit on different controllers during simulation.
func WithCrossPenalty(hops int) Option {
	return func(c *config) {
		if hops >= 0 {
			c.crossPenalty = hops
		}
	}
}

// WithLookahead sets the weight of successor gates in the swap
// heuristic. Zero scores only the front layer.
func WithLookahead(w float64) Option {
	return func(c *config) {
		if w >= 0 {
			c.lookahead = w
		}
	}
}

// WithCifPenalty sets how heavily a candidate mapping's cross-controller
// conditional pairs count against it when candidates are compared.
func WithCifPenalty(w float64) Option {
	return func(c *config) {
		if w >= 0 {
			c.cifPenalty = w
		}
	}
}

// gateCost charges a two-qubit gate by the shortest-path distance of
// its mapped endpoints, weighted up when the route crosses controllers.
func gateCost(g *device.CouplingGraph, cfg *device.ControllerConfig, pu, pv int) int {
	d := g.Distance(pu, pv)
	if d < 0 {
		d = unreachablePenalty
	}
	if cfg.SameController(pu, pv) {
		return sameControllerWeight * d
	}
	return crossControllerWeight * d
}

// CouplingCost scores a mapping by the summed gate cost of every
// two-qubit gate. Lower is better.
func CouplingCost(cfg *device.ControllerConfig, gates [][2]int, mapping []int) int {
	g := cfg.Graph()
	total := 0
	for _, gate := range gates {
		total += gateCost(g, cfg, mapping[gate[0]], mapping[gate[1]])
	}
	return total
}
