package device

import (
	dErrors "qplace/pkg/domain-errors"
)

// ValidateMapping checks that a logical-to-physical assignment is
// injective and stays inside the device's qubit range. Mappings are
// plain int slices indexed by logical qubit.
func ValidateMapping(mapping []int, numPhysical int) error {
	used := make(map[int]int, len(mapping))
	for lq, pq := range mapping {
		if pq < 0 || pq >= numPhysical {
			return dErrors.Newf(dErrors.CodeValidation,
				"logical qubit %d mapped to physical qubit %d outside range [0,%d)", lq, pq, numPhysical)
		}
		if prev, taken := used[pq]; taken {
			return dErrors.Newf(dErrors.CodeValidation,
				"physical qubit %d assigned to both logical qubits %d and %d", pq, prev, lq)
		}
		used[pq] = lq
	}
	return nil
}

// CrossControllerPairs counts the conditional pairs whose endpoints
// land on different controllers under the given mapping. This is the
// cost the placement optimizers minimize; lower is better.
func CrossControllerPairs(cfg *ControllerConfig, pairs [][2]int, mapping []int) int {
	count := 0
	for _, pair := range pairs {
		if !cfg.SameController(mapping[pair[0]], mapping[pair[1]]) {
			count++
		}
	}
	return count
}
