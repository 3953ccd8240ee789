package device

import (
	"log/slog"

	dErrors "qplace/pkg/domain-errors"
)

// Default feedback latency constants in seconds.
const (
	DefaultDtInner = 5e-8
	DefaultDtInter = 5e-7
)

// ControllerConfig binds a device to a controller layout: how many
// controllers there are, which physical qubits each one owns, and the
// feedback latency constants for same-controller and cross-controller
// signals. All derived maps are computed at construction; the value is
// immutable afterwards and safe to share across goroutines.
type ControllerConfig struct {
	graph          *CouplingGraph
	numQubits      int
	numControllers int
	strategy       Strategy
	dtInner        float64
	dtInter        float64
	pqToCtrl       []int
	ctrlToPq       [][]int
}

// ControllerConfigOption configures construction.
type ControllerConfigOption func(*controllerConfigOptions)

type controllerConfigOptions struct {
	strategy Strategy
	dtInner  float64
	dtInter  float64
	logger   *slog.Logger
}

// WithStrategy selects the partition strategy. Default is trivial.
func WithStrategy(s Strategy) ControllerConfigOption {
	return func(o *controllerConfigOptions) { o.strategy = s }
}

// WithLatencies overrides the feedback latency constants.
func WithLatencies(dtInner, dtInter float64) ControllerConfigOption {
	return func(o *controllerConfigOptions) {
		o.dtInner = dtInner
		o.dtInter = dtInter
	}
}

// WithPartitionLogger sets the logger used for partition warnings.
func WithPartitionLogger(logger *slog.Logger) ControllerConfigOption {
	return func(o *controllerConfigOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewControllerConfig partitions the device among numControllers
// controllers. Construction fails when any controller would be left
// with fewer than two qubits on average, when the partition itself
// fails, or when the latency constants are not positive.
func NewControllerConfig(g *CouplingGraph, numControllers int, opts ...ControllerConfigOption) (*ControllerConfig, error) {
	options := controllerConfigOptions{
		strategy: StrategyTrivial,
		dtInner:  DefaultDtInner,
		dtInter:  DefaultDtInter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	numQubits := g.NumQubits()
	if numQubits <= 2*numControllers {
		return nil, dErrors.Newf(dErrors.CodeConfiguration,
			"num_qubits (%d) must exceed twice num_controllers (%d)", numQubits, numControllers)
	}
	if options.dtInner <= 0 || options.dtInter <= 0 {
		return nil, dErrors.Newf(dErrors.CodeConfiguration,
			"latency constants must be positive, got dt_inner=%g dt_inter=%g", options.dtInner, options.dtInter)
	}
	if options.dtInter < 5*options.dtInner {
		options.logger.Warn("dt_inter is less than five times dt_inner, cross-controller feedback may be underestimated",
			"dt_inner", options.dtInner,
			"dt_inter", options.dtInter,
		)
	}

	pqToCtrl, ctrlToPq, err := Partition(g, numControllers, options.strategy, options.logger)
	if err != nil {
		return nil, err
	}

	return &ControllerConfig{
		graph:          g,
		numQubits:      numQubits,
		numControllers: numControllers,
		strategy:       options.strategy,
		dtInner:        options.dtInner,
		dtInter:        options.dtInter,
		pqToCtrl:       pqToCtrl,
		ctrlToPq:       ctrlToPq,
	}, nil
}

// Graph returns the coupling graph the partition was computed from.
func (c *ControllerConfig) Graph() *CouplingGraph { return c.graph }

// NumQubits returns the number of physical qubits on the device.
func (c *ControllerConfig) NumQubits() int { return c.numQubits }

// NumControllers returns the number of feedback controllers.
func (c *ControllerConfig) NumControllers() int { return c.numControllers }

// Strategy returns the partition strategy used at construction.
func (c *ControllerConfig) Strategy() Strategy { return c.strategy }

// DtInner returns the same-controller feedback latency in seconds.
func (c *ControllerConfig) DtInner() float64 { return c.dtInner }

// DtInter returns the cross-controller feedback latency in seconds.
func (c *ControllerConfig) DtInter() float64 { return c.dtInter }

// Controller returns the controller owning physical qubit pq.
func (c *ControllerConfig) Controller(pq int) int { return c.pqToCtrl[pq] }

// SameController reports whether both physical qubits are owned by one
// controller.
func (c *ControllerConfig) SameController(p, q int) bool {
	return c.pqToCtrl[p] == c.pqToCtrl[q]
}

// Region returns the physical qubits owned by a controller. Callers
// must not modify the returned slice.
func (c *ControllerConfig) Region(ctrl int) []int { return c.ctrlToPq[ctrl] }

// Regions returns all controller regions indexed by controller id.
// Callers must not modify the returned slices.
func (c *ControllerConfig) Regions() [][]int { return c.ctrlToPq }

// RegionSize returns the capacity of a controller.
func (c *ControllerConfig) RegionSize(ctrl int) int { return len(c.ctrlToPq[ctrl]) }
