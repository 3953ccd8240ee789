package prune

import (
	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// Apply builds the named pruner and runs it, returning the pruned edge
// list. The mapping and multiOps arguments are only consulted by the
// mapping-aware method; the trivial method ignores them.
func Apply(method Method, g *device.CouplingGraph, regions [][]int, mapping []int, multiOps [][]int, opts ...Option) ([][2]int, error) {
	switch method {
	case MethodTrivial:
		p, err := NewTrivial(g, regions, opts...)
		if err != nil {
			return nil, err
		}
		return p.Run()
	case MethodMappingAware:
		if mapping == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				"mapping-aware pruning requires a mapping")
		}
		p, err := NewMappingAware(g, regions, mapping, multiOps, opts...)
		if err != nil {
			return nil, err
		}
		return p.Run()
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown pruning method %d", method)
	}
}
