package mapper

import (
	"context"

	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/refine"
)

// TwoStepMapper first runs the graph partition search to fix which
// controller hosts each logical qubit, then hands the mapping to the
// intra-controller optimizer to pick good physical slots within each
// region. Both stages share one random source, so a seeded mapper is
// fully reproducible end to end.
type TwoStepMapper struct {
	coarse *GraphPartitionMapper
	intra  *refine.IntraOptimizer
}

// NewTwoStep builds the two-stage mapper.
func NewTwoStep(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*TwoStepMapper, error) {
	coarse, err := NewGraphPartition(cfg, props, opts...)
	if err != nil {
		return nil, err
	}
	intra, err := refine.NewIntraOptimizer(cfg, props,
		refine.WithRand(coarse.opts.rng),
		refine.WithLogger(coarse.opts.logger),
	)
	if err != nil {
		return nil, err
	}
	return &TwoStepMapper{coarse: coarse, intra: intra}, nil
}

// Run produces the coarse mapping and refines it in place per region.
func (m *TwoStepMapper) Run(ctx context.Context) ([]int, error) {
	mapping, err := m.coarse.Run(ctx)
	if err != nil {
		return nil, err
	}
	return m.intra.Refine(ctx, mapping)
}
