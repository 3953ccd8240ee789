// Package latency estimates circuit execution time under a controller
// layout: scheduled pulse duration plus the accumulated cost of
// measurement feedback signals, where a signal between qubits on the
// same controller is cheap and one crossing controllers is not.
package latency

import (
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// Schedule is the scheduling collaborator's summary of a circuit: the
// total pulse duration in device time steps and the length of one step
// in seconds.
type Schedule struct {
	Duration int     `json:"duration"`
	Dt       float64 `json:"dt"`
}

// feedbackClass classifies one feedback signal. Inter dominates: a
// source serving both an intra- and a cross-controller target is
// charged as cross-controller in deduplicated accounting.
type feedbackClass int

const (
	classInner feedbackClass = iota
	classInter
)

// Evaluator computes latency figures for mapped conditional pairs. The
// accessors report the figures of the most recent Evaluate call and
// fail with CodeNotEvaluated before the first one. Not safe for
// concurrent use.
type Evaluator struct {
	cfg       *device.ControllerConfig
	dedup     bool
	evaluated bool

	gateLatency  float64
	innerLatency float64
	interLatency float64
	interCount   int
}

// Option configures an evaluator.
type Option func(*Evaluator)

// WithDedup makes the evaluator charge each feedback source qubit once,
// at the most expensive class observed, instead of once per pair. Real
// controllers broadcast a measurement result, so repeated conditions on
// the same source do not pay the transfer repeatedly.
func WithDedup() Option {
	return func(e *Evaluator) { e.dedup = true }
}

// NewEvaluator builds an evaluator for one controller layout.
func NewEvaluator(cfg *device.ControllerConfig, opts ...Option) *Evaluator {
	e := &Evaluator{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes the total latency of a scheduled circuit whose
// conditional pairs, already laid out onto physical qubits, are given
// as (target, source) index pairs. It returns gate latency plus
// feedback latency and primes the accessors.
func (e *Evaluator) Evaluate(sched Schedule, pairs [][2]int) (float64, error) {
	if sched.Duration < 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "schedule duration %d is negative", sched.Duration)
	}
	if sched.Dt <= 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "schedule dt %g must be positive", sched.Dt)
	}
	for _, pair := range pairs {
		for _, pq := range pair {
			if pq < 0 || pq >= e.cfg.NumQubits() {
				return 0, dErrors.Newf(dErrors.CodeValidation,
					"conditional pair endpoint %d outside device range [0,%d)", pq, e.cfg.NumQubits())
			}
		}
	}

	innerCount, interCount := e.classify(pairs)

	e.gateLatency = float64(sched.Duration) * sched.Dt
	e.innerLatency = float64(innerCount) * e.cfg.DtInner()
	e.interLatency = float64(interCount) * e.cfg.DtInter()
	e.interCount = interCount
	e.evaluated = true
	return e.gateLatency + e.innerLatency + e.interLatency, nil
}

// classify buckets the pairs into same-controller and cross-controller
// counts, deduplicating by source qubit when enabled.
func (e *Evaluator) classify(pairs [][2]int) (inner, inter int) {
	if !e.dedup {
		for _, pair := range pairs {
			if e.cfg.SameController(pair[0], pair[1]) {
				inner++
			} else {
				inter++
			}
		}
		return inner, inter
	}

	bySource := make(map[int]feedbackClass, len(pairs))
	for _, pair := range pairs {
		class := classInner
		if !e.cfg.SameController(pair[0], pair[1]) {
			class = classInter
		}
		if prev, ok := bySource[pair[1]]; !ok || class > prev {
			bySource[pair[1]] = class
		}
	}
	for _, class := range bySource {
		if class == classInter {
			inter++
		} else {
			inner++
		}
	}
	return inner, inter
}

// GateLatency returns the scheduled pulse duration in seconds.
func (e *Evaluator) GateLatency() (float64, error) {
	if !e.evaluated {
		return 0, errNotEvaluated("gate latency")
	}
	return e.gateLatency, nil
}

// CtrlLatency returns the total feedback latency, inner plus inter.
func (e *Evaluator) CtrlLatency() (float64, error) {
	if !e.evaluated {
		return 0, errNotEvaluated("controller latency")
	}
	return e.innerLatency + e.interLatency, nil
}

// InnerLatency returns the accumulated same-controller feedback cost.
func (e *Evaluator) InnerLatency() (float64, error) {
	if !e.evaluated {
		return 0, errNotEvaluated("inner latency")
	}
	return e.innerLatency, nil
}

// InterLatency returns the accumulated cross-controller feedback cost.
func (e *Evaluator) InterLatency() (float64, error) {
	if !e.evaluated {
		return 0, errNotEvaluated("inter latency")
	}
	return e.interLatency, nil
}

// InterCount returns how many cross-controller signals were charged.
func (e *Evaluator) InterCount() (int, error) {
	if !e.evaluated {
		return 0, errNotEvaluated("inter count")
	}
	return e.interCount, nil
}

func errNotEvaluated(what string) error {
	return dErrors.Newf(dErrors.CodeNotEvaluated, "%s read before evaluation", what)
}
