package circuit

import (
	dErrors "qplace/pkg/domain-errors"
)

// Properties caches the derived structure of one circuit: which
// operations are conditioned on which measurements, where the two-qubit
// gates sit, and which multi-qubit operations run unconditioned. All
// fields are computed in a single pass at construction and the value is
// immutable afterwards, so it can be shared freely across goroutines.
type Properties struct {
	numQubits     int
	cifPairs      [][2]int
	twoQubitGates [][2]int
	multiOps      [][]int
}

// PropertiesOption configures the extraction pass.
type PropertiesOption func(*propertiesConfig)

type propertiesConfig struct {
	includeConditionedTwoQubit bool
}

// WithConditionedTwoQubit controls whether conditioned two-qubit gates
// are listed in TwoQubitGates. Historical extractors disagreed on this
// point, so the policy is explicit; the default (true) lists them.
// The choice affects intra-controller distance scoring only.
func WithConditionedTwoQubit(include bool) PropertiesOption {
	return func(cfg *propertiesConfig) { cfg.includeConditionedTwoQubit = include }
}

// NewProperties walks the instruction stream once and derives all
// cached views.
//
// The conditional-pair extraction tracks which qubit produced each
// classical bit (last measurement wins). A single-bit condition emits
// one (target, source) pair per qubit argument of the conditioned gate.
// A register condition emits the cross product of qubits measured into
// the register's bits and the gate's qubit arguments. A condition that
// is neither form fails with an unsupported-condition error.
func NewProperties(c *Circuit, opts ...PropertiesOption) (*Properties, error) {
	cfg := propertiesConfig{includeConditionedTwoQubit: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	p := &Properties{numQubits: c.NumQubits()}
	measureMap := make(map[int]int)

	for idx, inst := range c.Instructions() {
		if err := checkArgs(c, idx, inst); err != nil {
			return nil, err
		}

		if inst.Name == OpMeasure {
			if len(inst.Clbits) != len(inst.Qubits) {
				return nil, dErrors.Newf(dErrors.CodeValidation,
					"instruction %d: measurement needs one clbit per qubit, got %d qubits and %d clbits",
					idx, len(inst.Qubits), len(inst.Clbits))
			}
			for i, q := range inst.Qubits {
				measureMap[inst.Clbits[i]] = q
			}
		}

		if inst.Condition != nil {
			if err := p.extractPairs(c, idx, inst, measureMap); err != nil {
				return nil, err
			}
		}

		if len(inst.Qubits) == 2 && (inst.Condition == nil || cfg.includeConditionedTwoQubit) {
			p.twoQubitGates = append(p.twoQubitGates, [2]int{inst.Qubits[0], inst.Qubits[1]})
		}
		if len(inst.Qubits) >= 2 && inst.Condition == nil {
			p.multiOps = append(p.multiOps, append([]int(nil), inst.Qubits...))
		}
	}

	return p, nil
}

func (p *Properties) extractPairs(c *Circuit, idx int, inst Instruction, measureMap map[int]int) error {
	cond := inst.Condition
	switch cond.Kind {
	case ConditionBit:
		src, measured := measureMap[cond.Bit]
		if !measured {
			return dErrors.Newf(dErrors.CodeValidation,
				"instruction %d: condition reads clbit %d before any measurement wrote it", idx, cond.Bit)
		}
		for _, q := range inst.Qubits {
			p.cifPairs = append(p.cifPairs, [2]int{q, src})
		}
	case ConditionRegister:
		bits, ok := c.Register(cond.Register)
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation,
				"instruction %d: condition references unknown register %q", idx, cond.Register)
		}
		for _, b := range bits {
			src, measured := measureMap[b]
			if !measured {
				continue
			}
			for _, q := range inst.Qubits {
				p.cifPairs = append(p.cifPairs, [2]int{q, src})
			}
		}
	default:
		return dErrors.Newf(dErrors.CodeUnsupportedCondition,
			"instruction %d: condition kind %d is neither bit nor register", idx, cond.Kind)
	}
	return nil
}

func checkArgs(c *Circuit, idx int, inst Instruction) error {
	for _, q := range inst.Qubits {
		if q < 0 || q >= c.NumQubits() {
			return dErrors.Newf(dErrors.CodeValidation,
				"instruction %d: qubit %d outside range [0,%d)", idx, q, c.NumQubits())
		}
	}
	for _, b := range inst.Clbits {
		if b < 0 || b >= c.NumClbits() {
			return dErrors.Newf(dErrors.CodeValidation,
				"instruction %d: clbit %d outside range [0,%d)", idx, b, c.NumClbits())
		}
	}
	if cond := inst.Condition; cond != nil && cond.Kind == ConditionBit {
		if cond.Bit < 0 || cond.Bit >= c.NumClbits() {
			return dErrors.Newf(dErrors.CodeValidation,
				"instruction %d: condition clbit %d outside range [0,%d)", idx, cond.Bit, c.NumClbits())
		}
	}
	return nil
}

// NumQubits returns the qubit count of the underlying circuit.
func (p *Properties) NumQubits() int { return p.numQubits }

// CifPairs returns the (target, source) conditional pairs in program
// order, duplicates preserved. Callers must not modify the result.
func (p *Properties) CifPairs() [][2]int { return p.cifPairs }

// TwoQubitGates returns the qubit pairs of two-qubit instructions in
// program order. Callers must not modify the result.
func (p *Properties) TwoQubitGates() [][2]int { return p.twoQubitGates }

// MultiOps returns the qubit lists of unconditioned instructions
// touching at least two qubits. Callers must not modify the result.
func (p *Properties) MultiOps() [][]int { return p.multiOps }

// LayoutCifPairs translates the logical conditional pairs through a
// layout, yielding physical-index pairs. The layout must assign every
// circuit qubit.
func (p *Properties) LayoutCifPairs(layout []int) ([][2]int, error) {
	if len(layout) < p.numQubits {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"layout covers %d qubits, circuit has %d", len(layout), p.numQubits)
	}
	pairs := make([][2]int, len(p.cifPairs))
	for i, pair := range p.cifPairs {
		pairs[i] = [2]int{layout[pair[0]], layout[pair[1]]}
	}
	return pairs, nil
}
