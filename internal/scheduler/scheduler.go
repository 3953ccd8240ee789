// Package scheduler resolves pulse-level timing for a circuit. The real
// scheduler is an external service; a static estimate stands in when it
// is unconfigured or unhealthy.
package scheduler

import (
	"context"

	"qplace/internal/circuit"
	"qplace/internal/latency"
)

// Scheduler produces the pulse schedule figures gate latency needs: the
// total duration in device cycles and the cycle time in seconds.
type Scheduler interface {
	Schedule(ctx context.Context, c *circuit.Circuit) (latency.Schedule, error)
}

// Typical transmon backend pulse lengths in device cycles, used by the
// static estimate.
const (
	staticDt           = 2.2222e-10
	ticksTwoQubitGate  = 450
	ticksMeasure       = 1500
	ticksSingleQubitOp = 160
)

// Static estimates the schedule from instruction counts alone. It assumes
// fully serialized execution, which overestimates but never underestimates
// the duration.
type Static struct{}

// Schedule sums per-instruction durations.
func (Static) Schedule(_ context.Context, c *circuit.Circuit) (latency.Schedule, error) {
	duration := 0
	for _, inst := range c.Instructions() {
		switch {
		case inst.Name == "measure":
			duration += ticksMeasure
		case inst.Name == "barrier":
			// Barriers only order other instructions.
		case len(inst.Qubits) >= 2:
			duration += ticksTwoQubitGate
		default:
			duration += ticksSingleQubitOp
		}
	}
	return latency.Schedule{Duration: duration, Dt: staticDt}, nil
}
