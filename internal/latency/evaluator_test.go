package latency

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qplace/internal/device"
	dErrors "qplace/pkg/domain-errors"
)

// heavyHexConfig mimics a 127-qubit device split among 10 controllers
// with the default latency constants.
func heavyHexConfig(t *testing.T) *device.ControllerConfig {
	t.Helper()
	g, err := device.Line(127)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := device.NewControllerConfig(g, 10, device.WithPartitionLogger(logger))
	require.NoError(t, err)
	return cfg
}

func TestEvaluateControllerLatency(t *testing.T) {
	cfg := heavyHexConfig(t)
	e := NewEvaluator(cfg)

	// Regions are contiguous 13-qubit chunks: qubits 1 and 0 share
	// controller 0, qubit 15 sits on controller 1.
	total, err := e.Evaluate(Schedule{Duration: 0, Dt: 1e-9}, [][2]int{{1, 0}, {3, 15}})
	require.NoError(t, err)
	assert.InDelta(t, 5.5e-7, total, 1e-18)

	ctrl, err := e.CtrlLatency()
	require.NoError(t, err)
	assert.InDelta(t, 5.5e-7, ctrl, 1e-18)

	inner, err := e.InnerLatency()
	require.NoError(t, err)
	assert.InDelta(t, 5e-8, inner, 1e-18)

	inter, err := e.InterLatency()
	require.NoError(t, err)
	assert.InDelta(t, 5e-7, inter, 1e-18)

	count, err := e.InterCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEvaluateAddsGateLatency(t *testing.T) {
	cfg := heavyHexConfig(t)
	e := NewEvaluator(cfg)

	total, err := e.Evaluate(Schedule{Duration: 100, Dt: 1e-9}, [][2]int{{1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1e-7+5e-8, total, 1e-18)

	gate, err := e.GateLatency()
	require.NoError(t, err)
	assert.InDelta(t, 1e-7, gate, 1e-18)
}

func TestAccessorsBeforeEvaluate(t *testing.T) {
	e := NewEvaluator(heavyHexConfig(t))

	_, err := e.GateLatency()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotEvaluated))

	for _, read := range []func() (float64, error){e.CtrlLatency, e.InnerLatency, e.InterLatency} {
		_, err := read()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotEvaluated))
	}
	_, err = e.InterCount()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotEvaluated))
}

func TestEvaluateValidatesInput(t *testing.T) {
	e := NewEvaluator(heavyHexConfig(t))

	_, err := e.Evaluate(Schedule{Duration: -1, Dt: 1e-9}, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = e.Evaluate(Schedule{Duration: 10, Dt: 0}, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = e.Evaluate(Schedule{Duration: 10, Dt: 1e-9}, [][2]int{{0, 127}})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestDedupChargesEachSourceOnce(t *testing.T) {
	cfg := heavyHexConfig(t)

	// Three conditions on the same measured qubit 0: two stay on
	// controller 0, one reaches controller 1. Plain accounting charges
	// all three; dedup charges source 0 once, at the inter rate.
	pairs := [][2]int{{1, 0}, {2, 0}, {14, 0}}

	plain := NewEvaluator(cfg)
	plainTotal, err := plain.Evaluate(Schedule{Duration: 0, Dt: 1e-9}, pairs)
	require.NoError(t, err)
	assert.InDelta(t, 2*5e-8+5e-7, plainTotal, 1e-18)

	dedup := NewEvaluator(cfg, WithDedup())
	dedupTotal, err := dedup.Evaluate(Schedule{Duration: 0, Dt: 1e-9}, pairs)
	require.NoError(t, err)
	assert.InDelta(t, 5e-7, dedupTotal, 1e-18)

	count, err := dedup.InterCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDedupKeepsDistinctSources(t *testing.T) {
	cfg := heavyHexConfig(t)
	e := NewEvaluator(cfg, WithDedup())

	// Source 0 upgrades to inter; source 5 stays inner.
	pairs := [][2]int{{1, 0}, {14, 0}, {6, 5}}
	total, err := e.Evaluate(Schedule{Duration: 0, Dt: 1e-9}, pairs)
	require.NoError(t, err)
	assert.InDelta(t, 5e-7+5e-8, total, 1e-18)

	inner, err := e.InnerLatency()
	require.NoError(t, err)
	assert.InDelta(t, 5e-8, inner, 1e-18)
}

func TestReEvaluateReplacesFigures(t *testing.T) {
	cfg := heavyHexConfig(t)
	e := NewEvaluator(cfg)

	_, err := e.Evaluate(Schedule{Duration: 50, Dt: 1e-9}, [][2]int{{3, 15}})
	require.NoError(t, err)

	total, err := e.Evaluate(Schedule{Duration: 0, Dt: 1e-9}, [][2]int{{1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 5e-8, total, 1e-18)

	count, err := e.InterCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	inter, err := e.InterLatency()
	require.NoError(t, err)
	assert.Zero(t, inter)
}
