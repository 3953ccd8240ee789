package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qplace/pkg/domain-errors"
)

func TestNewProperties_SingleBitCondition(t *testing.T) {
	// Qubit 0 is measured into bit 0; the conditioned cx emits one pair
	// per qubit argument, including the self pair on qubit 0.
	qc := New(2, 2).
		H(0).
		Measure(0, 0).
		CX(0, 1).CIf(0, 1)

	props, err := NewProperties(qc)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 0}, {1, 0}}, props.CifPairs())
	assert.Equal(t, 2, props.NumQubits())
}

func TestNewProperties_ConditionedSingleQubitGates(t *testing.T) {
	qc := New(4, 4).
		Measure(1, 1).
		H(0).CIf(1, 1).
		Measure(2, 2).
		H(1).CIf(2, 1).
		Measure(3, 3).
		H(2).CIf(3, 1).
		Measure(1, 1).
		H(0).CIf(1, 1)

	props, err := NewProperties(qc)
	require.NoError(t, err)

	// The duplicate trailing pair must be preserved: multiplicity
	// matters for latency accounting.
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {0, 1}}, props.CifPairs())
}

func TestNewProperties_RegisterCondition(t *testing.T) {
	qc := New(3, 2).
		Measure(0, 0).
		Measure(1, 1).
		H(2).CIfRegister(DefaultRegister, 1)

	props, err := NewProperties(qc)
	require.NoError(t, err)

	// Cross product of register sources and gate qubits, register bit
	// order first.
	assert.Equal(t, [][2]int{{2, 0}, {2, 1}}, props.CifPairs())
}

func TestNewProperties_RemeasuredBitKeepsLastWriter(t *testing.T) {
	qc := New(3, 1).
		Measure(0, 0).
		Measure(1, 0).
		H(2).CIf(0, 1)

	props, err := NewProperties(qc)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{2, 1}}, props.CifPairs())
}

func TestNewProperties_ConditionBeforeMeasurement(t *testing.T) {
	qc := New(2, 1).
		H(0).CIf(0, 1)

	_, err := NewProperties(qc)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewProperties_UnknownRegister(t *testing.T) {
	qc := New(2, 1).
		Measure(0, 0).
		H(1).CIfRegister("syndrome", 1)

	_, err := NewProperties(qc)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewProperties_UnsupportedConditionKind(t *testing.T) {
	qc := New(2, 1).Measure(0, 0)
	qc.Append(Instruction{
		Name:      "x",
		Qubits:    []int{1},
		Condition: &Condition{Kind: ConditionKind(42)},
	})

	_, err := NewProperties(qc)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedCondition))
}

func TestNewProperties_TwoQubitGatePolicy(t *testing.T) {
	build := func() *Circuit {
		return New(3, 1).
			CX(0, 1).
			Measure(0, 0).
			CX(1, 2).CIf(0, 1)
	}

	withConditioned, err := NewProperties(build())
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, withConditioned.TwoQubitGates())

	without, err := NewProperties(build(), WithConditionedTwoQubit(false))
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}}, without.TwoQubitGates())
}

func TestNewProperties_MultiOps(t *testing.T) {
	qc := New(4, 1).
		CX(0, 1).
		Barrier(0, 1, 2).
		Measure(0, 0).
		CX(2, 3).CIf(0, 1).
		H(3)

	props, err := NewProperties(qc)
	require.NoError(t, err)

	// Conditioned and single-qubit operations are excluded.
	assert.Equal(t, [][]int{{0, 1}, {0, 1, 2}}, props.MultiOps())
}

func TestNewProperties_ArgumentValidation(t *testing.T) {
	_, err := NewProperties(New(2, 1).Gate("x", 5))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewProperties(New(2, 1).Measure(0, 3))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewProperties(New(2, 1).Append(Instruction{
		Name:   OpMeasure,
		Qubits: []int{0, 1},
		Clbits: []int{0},
	}))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLayoutCifPairs(t *testing.T) {
	qc := New(4, 4).
		H(0).
		CX(0, 1).
		CX(1, 2).
		CX(0, 1).
		Measure(1, 1).
		X(0).CIf(1, 1)

	props, err := NewProperties(qc)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{0, 1}}, props.CifPairs())

	pairs, err := props.LayoutCifPairs([]int{0, 3, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 3}}, pairs)

	_, err = props.LayoutCifPairs([]int{0, 1})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCIf_PanicsWithoutInstruction(t *testing.T) {
	assert.Panics(t, func() {
		New(1, 1).CIf(0, 1)
	})
}
