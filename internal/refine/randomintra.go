package refine

import (
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// RandomIntra perturbs a mapping by shuffling physical qubits within
// each controller region. Every logical qubit keeps its controller, so
// the cross-controller pair count of the input mapping is preserved
// exactly; only intra-region placement changes. Useful as a cheap
// perturbation source when evaluating many placements.
type RandomIntra struct {
	cfg  *device.ControllerConfig
	opts *config
}

// NewRandomIntra builds the shuffler for one controller layout.
func NewRandomIntra(cfg *device.ControllerConfig, opts ...Option) *RandomIntra {
	return &RandomIntra{cfg: cfg, opts: newConfig(opts)}
}

// Shuffle returns a copy of the mapping with each region's occupied
// physical qubits randomly permuted among that region's logical qubits.
func (r *RandomIntra) Shuffle(mapping []int) ([]int, error) {
	if err := device.ValidateMapping(mapping, r.cfg.NumQubits()); err != nil {
		return nil, err
	}
	if len(mapping) > r.cfg.NumQubits() {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"mapping covers %d qubits, device has %d", len(mapping), r.cfg.NumQubits())
	}

	result := append([]int(nil), mapping...)
	byCtrl := make([][]int, r.cfg.NumControllers())
	for lq, pq := range mapping {
		ctrl := r.cfg.Controller(pq)
		byCtrl[ctrl] = append(byCtrl[ctrl], lq)
	}
	for _, logicals := range byCtrl {
		if len(logicals) < 2 {
			continue
		}
		pqs := make([]int, len(logicals))
		for i, lq := range logicals {
			pqs[i] = mapping[lq]
		}
		r.opts.rng.Shuffle(len(pqs), func(i, j int) {
			pqs[i], pqs[j] = pqs[j], pqs[i]
		})
		for i, lq := range logicals {
			result[lq] = pqs[i]
		}
	}
	return result, nil
}
