// Package models holds the placement feature's wire and storage types.
package models

import (
	"time"

	dErrors "qplace/pkg/domain-errors"
)

// JobStatus is the lifecycle state of a placement job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// DeviceSpec describes the target hardware: its coupling graph and how it
// is split across feedback controllers.
type DeviceSpec struct {
	NumQubits      int      `json:"num_qubits"`
	CouplingEdges  [][2]int `json:"coupling_edges"`
	NumControllers int      `json:"num_controllers"`
	Strategy       string   `json:"partition_strategy,omitempty"`
	DtInner        float64  `json:"dt_inner,omitempty"`
	DtInter        float64  `json:"dt_inter,omitempty"`
}

// RegisterSpec names a group of classical bits.
type RegisterSpec struct {
	Name   string `json:"name"`
	Clbits []int  `json:"clbits"`
}

// InstructionSpec is one circuit instruction. A condition is either a
// single classical bit (CondBit) or a named register (CondRegister); both
// compare against CondValue.
type InstructionSpec struct {
	Name         string `json:"name"`
	Qubits       []int  `json:"qubits"`
	Clbits       []int  `json:"clbits,omitempty"`
	CondBit      *int   `json:"cond_bit,omitempty"`
	CondRegister string `json:"cond_register,omitempty"`
	CondValue    int    `json:"cond_value,omitempty"`
}

// CircuitSpec is the JSON form of a logical circuit.
type CircuitSpec struct {
	NumQubits    int               `json:"num_qubits"`
	NumClbits    int               `json:"num_clbits"`
	Registers    []RegisterSpec    `json:"registers,omitempty"`
	Instructions []InstructionSpec `json:"instructions"`
}

// PlacementOptions tune the pipeline for one job. Zero values fall back
// to the service defaults.
type PlacementOptions struct {
	Strategy         string  `json:"strategy,omitempty"`
	Seed             *int64  `json:"seed,omitempty"`
	Trials           int     `json:"trials,omitempty"`
	Refine           string  `json:"refine,omitempty"`
	Prune            string  `json:"prune,omitempty"`
	PruneProbability float64 `json:"prune_probability,omitempty"`
	DedupLatency     bool    `json:"dedup_latency,omitempty"`
}

// SubmitRequest is the POST /v1/jobs payload.
type SubmitRequest struct {
	Device  DeviceSpec       `json:"device"`
	Circuit CircuitSpec      `json:"circuit"`
	Options PlacementOptions `json:"options"`
}

// Validate rejects structurally impossible requests before a job is
// created. Semantic checks (partition feasibility, condition kinds) run
// inside the pipeline and fail the job instead.
func (r *SubmitRequest) Validate() error {
	if r.Device.NumQubits <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "device.num_qubits must be positive")
	}
	if r.Device.NumControllers <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "device.num_controllers must be positive")
	}
	if r.Circuit.NumQubits <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "circuit.num_qubits must be positive")
	}
	if len(r.Circuit.Instructions) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "circuit.instructions must not be empty")
	}
	if r.Options.Trials < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "options.trials must not be negative")
	}
	return nil
}

// SubmittedBy captures caller provenance recorded on a job.
type SubmittedBy struct {
	ClientID  string `json:"client_id,omitempty"`
	Addr      string `json:"addr,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
}

// Job is one placement run through its lifecycle.
type Job struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Strategy  string        `json:"strategy"`
	Request   SubmitRequest `json:"request"`
	Submitter SubmittedBy   `json:"submitter,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// LatencyReport breaks the estimated execution latency into its parts.
// All figures are seconds.
type LatencyReport struct {
	Total      float64 `json:"total_seconds"`
	Gate       float64 `json:"gate_seconds"`
	Ctrl       float64 `json:"ctrl_seconds"`
	Inner      float64 `json:"inner_seconds"`
	Inter      float64 `json:"inter_seconds"`
	InterCount int     `json:"inter_count"`
}

// Result is the outcome of a completed job. PrunedCoupling is the
// coupling list left for a downstream router after edge pruning, absent
// unless pruning was requested.
type Result struct {
	JobID          string        `json:"job_id"`
	Mapping        []int         `json:"mapping"`
	CrossPairs     int           `json:"cross_pairs"`
	CouplingCost   int           `json:"coupling_cost"`
	PrunedCoupling [][2]int      `json:"pruned_coupling,omitempty"`
	Latency        LatencyReport `json:"latency"`
	Trials         int           `json:"trials"`
	FromCache      bool          `json:"from_cache,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// EvaluateRequest is the POST /v1/evaluate payload: score an existing
// mapping without running the search. Schedule is optional; when absent
// the scheduler collaborator supplies pulse timings.
type EvaluateRequest struct {
	Device   DeviceSpec  `json:"device"`
	Circuit  CircuitSpec `json:"circuit"`
	Mapping  []int       `json:"mapping"`
	Duration *int        `json:"duration,omitempty"`
	Dt       *float64    `json:"dt,omitempty"`
	Dedup    bool        `json:"dedup,omitempty"`
}

// Validate rejects structurally impossible evaluate calls.
func (r *EvaluateRequest) Validate() error {
	if r.Device.NumQubits <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "device.num_qubits must be positive")
	}
	if r.Device.NumControllers <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "device.num_controllers must be positive")
	}
	if len(r.Mapping) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "mapping must not be empty")
	}
	if (r.Duration == nil) != (r.Dt == nil) {
		return dErrors.New(dErrors.CodeInvalidInput, "duration and dt must be supplied together")
	}
	return nil
}

// EvaluateResponse is the synchronous score of an existing mapping.
type EvaluateResponse struct {
	CrossPairs   int           `json:"cross_pairs"`
	CouplingCost int           `json:"coupling_cost"`
	Latency      LatencyReport `json:"latency"`
}

// StrategiesResponse lists what the factory accepts.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
	Default    string   `json:"default"`
	Refiners   []string `json:"refiners"`
	Pruners    []string `json:"pruners"`
}

// Event is one job lifecycle notification on the event stream.
type Event struct {
	Type     string    `json:"type"`
	JobID    string    `json:"job_id"`
	Strategy string    `json:"strategy,omitempty"`
	Score    int       `json:"score,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Event types published to the job lifecycle topic.
const (
	EventJobAccepted  = "job.accepted"
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)
