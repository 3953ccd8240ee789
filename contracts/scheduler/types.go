// Package scheduler defines the wire contract between qplace and the
// pulse scheduler service. Kept in its own module so the mock scheduler
// and consumers can share it without importing qplace internals.
package scheduler

// Gate is one scheduled instruction.
type Gate struct {
	Name   string `json:"name"`
	Qubits []int  `json:"qubits"`
}

// ScheduleRequest asks for the pulse schedule of a circuit.
type ScheduleRequest struct {
	NumQubits int    `json:"num_qubits"`
	Gates     []Gate `json:"gates"`
}

// ScheduleResponse carries the schedule summary: total duration in device
// cycles and the cycle time in seconds.
type ScheduleResponse struct {
	Duration int     `json:"duration"`
	Dt       float64 `json:"dt"`
}
