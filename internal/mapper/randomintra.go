package mapper

import (
	"context"

	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/refine"
)

// RandomIntraMapper is the baseline strategy: it takes the identity
// placement, logical qubit l on physical qubit l, and shuffles each
// controller region's slots at random. Controller assignment stays
// whatever the identity placement implies, so results measure what
// intra-region placement alone is worth.
type RandomIntraMapper struct {
	props    *circuit.Properties
	shuffler *refine.RandomIntra
}

// NewRandomIntra builds the baseline shuffling mapper.
func NewRandomIntra(cfg *device.ControllerConfig, props *circuit.Properties, opts ...Option) (*RandomIntraMapper, error) {
	if err := checkFits(cfg, props); err != nil {
		return nil, err
	}
	c := newConfig(opts)
	return &RandomIntraMapper{
		props:    props,
		shuffler: refine.NewRandomIntra(cfg, refine.WithRand(c.rng)),
	}, nil
}

// Run returns a fresh shuffle of the identity placement.
func (m *RandomIntraMapper) Run(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	identity := make([]int, m.props.NumQubits())
	for q := range identity {
		identity[q] = q
	}
	return m.shuffler.Shuffle(identity)
}
