package placement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetJobID() string
	SetJobID(id string)
}

// RegisterSteps registers placement-job step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &placementSteps{tc: tc}

	// Job lifecycle steps
	ctx.Step(`^I submit a placement job for (\d+) qubits on a line device with (\d+) controllers$`, steps.submitLineJob)
	ctx.Step(`^I save the job id$`, steps.saveJobID)
	ctx.Step(`^the job should complete within (\d+) seconds$`, steps.jobCompletesWithin)
	ctx.Step(`^I fetch the job result$`, steps.fetchJobResult)

	// Synchronous endpoints
	ctx.Step(`^I list the available strategies$`, steps.listStrategies)
	ctx.Step(`^I evaluate the identity mapping for (\d+) qubits on a line device with (\d+) controllers$`, steps.evaluateIdentity)

	// Assertion steps
	ctx.Step(`^the mapping should place each of the (\d+) qubits exactly once$`, steps.mappingIsPermutation)
	ctx.Step(`^the strategies should include "([^"]*)"$`, steps.strategiesInclude)
}

type placementSteps struct {
	tc TestContext
}

// lineDevice builds a nearest-neighbour coupling map, the smallest
// topology where controller placement still matters.
func lineDevice(qubits, controllers int) map[string]interface{} {
	edges := make([][2]int, 0, qubits-1)
	for i := 0; i < qubits-1; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	return map[string]interface{}{
		"num_qubits":      qubits,
		"num_controllers": controllers,
		"coupling_edges":  edges,
	}
}

// feedbackCircuit entangles the line and ends with a measurement that
// conditions a correction on the far qubit, forcing cross-controller
// feedback unless the mapper keeps the pair together.
func feedbackCircuit(qubits int) map[string]interface{} {
	clbits := make([]int, qubits)
	for i := range clbits {
		clbits[i] = i
	}

	instructions := []map[string]interface{}{
		{"name": "h", "qubits": []int{0}},
	}
	for i := 0; i < qubits-1; i++ {
		instructions = append(instructions, map[string]interface{}{
			"name": "cx", "qubits": []int{i, i + 1},
		})
	}
	instructions = append(instructions,
		map[string]interface{}{"name": "measure", "qubits": []int{0}, "clbits": []int{0}},
		map[string]interface{}{"name": "x", "qubits": []int{qubits - 1}, "cond_bit": 0, "cond_value": 1},
	)

	return map[string]interface{}{
		"num_qubits": qubits,
		"num_clbits": qubits,
		"registers": []map[string]interface{}{
			{"name": "c", "clbits": clbits},
		},
		"instructions": instructions,
	}
}

func (s *placementSteps) submitLineJob(ctx context.Context, qubits, controllers int) error {
	body := map[string]interface{}{
		"device":  lineDevice(qubits, controllers),
		"circuit": feedbackCircuit(qubits),
		"options": map[string]interface{}{},
	}
	return s.tc.POST("/v1/jobs", body)
}

func (s *placementSteps) saveJobID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	value, ok := id.(string)
	if !ok || value == "" {
		return fmt.Errorf("job id is not a usable string: %v", id)
	}
	s.tc.SetJobID(value)
	return nil
}

func (s *placementSteps) jobCompletesWithin(ctx context.Context, seconds int) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for {
		if err := s.tc.GET("/v1/jobs/"+s.tc.GetJobID(), nil); err != nil {
			return err
		}
		status, err := s.tc.GetResponseField("status")
		if err != nil {
			return err
		}
		switch status {
		case "completed":
			return nil
		case "failed":
			reason, _ := s.tc.GetResponseField("error")
			return fmt.Errorf("job failed: %v", reason)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("job still %v after %d seconds", status, seconds)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func (s *placementSteps) fetchJobResult(ctx context.Context) error {
	return s.tc.GET("/v1/jobs/"+s.tc.GetJobID()+"/result", nil)
}

func (s *placementSteps) listStrategies(ctx context.Context) error {
	return s.tc.GET("/v1/strategies", nil)
}

func (s *placementSteps) evaluateIdentity(ctx context.Context, qubits, controllers int) error {
	mapping := make([]int, qubits)
	for i := range mapping {
		mapping[i] = i
	}
	body := map[string]interface{}{
		"device":  lineDevice(qubits, controllers),
		"circuit": feedbackCircuit(qubits),
		"mapping": mapping,
	}
	return s.tc.POST("/v1/evaluate", body)
}

func (s *placementSteps) mappingIsPermutation(ctx context.Context, qubits int) error {
	var result struct {
		Mapping []int `json:"mapping"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &result); err != nil {
		return fmt.Errorf("parse result: %w", err)
	}
	if len(result.Mapping) != qubits {
		return fmt.Errorf("mapping has %d entries, want %d", len(result.Mapping), qubits)
	}
	seen := make([]bool, qubits)
	for _, q := range result.Mapping {
		if q < 0 || q >= qubits {
			return fmt.Errorf("mapping entry %d is out of range", q)
		}
		if seen[q] {
			return fmt.Errorf("qubit %d is assigned twice", q)
		}
		seen[q] = true
	}
	return nil
}

func (s *placementSteps) strategiesInclude(ctx context.Context, name string) error {
	value, err := s.tc.GetResponseField("strategies")
	if err != nil {
		return err
	}
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("strategies is not a list: %v", value)
	}
	for _, entry := range list {
		if entry == name {
			return nil
		}
	}
	return fmt.Errorf("strategy %q not offered: %v", name, list)
}
