package device

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qplace/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireInverse(t *testing.T, pqToCtrl []int, ctrlToPq [][]int) {
	t.Helper()
	seen := make(map[int]bool)
	for ctrl, region := range ctrlToPq {
		for _, pq := range region {
			assert.Equal(t, ctrl, pqToCtrl[pq], "pq %d listed in region %d", pq, ctrl)
			assert.False(t, seen[pq], "pq %d assigned twice", pq)
			seen[pq] = true
		}
	}
	assert.Len(t, seen, len(pqToCtrl), "every qubit must be assigned")
}

func TestPartition_TrivialSixQubitsThreeControllers(t *testing.T) {
	g, err := Line(6)
	require.NoError(t, err)

	pqToCtrl, ctrlToPq, err := Partition(g, 3, StrategyTrivial, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}}, ctrlToPq)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2}, pqToCtrl)
	requireInverse(t, pqToCtrl, ctrlToPq)
}

func TestPartition_TrivialUnevenSplit(t *testing.T) {
	g, err := Line(7)
	require.NoError(t, err)

	_, ctrlToPq, err := Partition(g, 3, StrategyTrivial, discardLogger())
	require.NoError(t, err)

	// Larger chunks come first when the division is uneven.
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4}, {5, 6}}, ctrlToPq)
}

func TestPartition_ConnectedLine(t *testing.T) {
	g, err := Line(10)
	require.NoError(t, err)

	pqToCtrl, ctrlToPq, err := Partition(g, 3, StrategyConnected, discardLogger())
	require.NoError(t, err)
	requireInverse(t, pqToCtrl, ctrlToPq)

	// Region size is ceil(10/3)=4; breadth-first growth along the line
	// yields two full regions and the exhausted tail as the remainder.
	assert.Equal(t, []int{0, 1, 2, 3}, ctrlToPq[0])
	assert.Equal(t, []int{4, 5, 6, 7}, ctrlToPq[1])
	assert.Equal(t, []int{8, 9}, ctrlToPq[2])
}

func TestPartition_ConnectedRegionsAreConnected(t *testing.T) {
	g, err := Grid(4, 4)
	require.NoError(t, err)

	pqToCtrl, ctrlToPq, err := Partition(g, 4, StrategyConnected, discardLogger())
	require.NoError(t, err)
	requireInverse(t, pqToCtrl, ctrlToPq)

	for ctrl, region := range ctrlToPq {
		assert.Len(t, region, 4, "region %d", ctrl)
		assertRegionConnected(t, g, region)
	}
}

func assertRegionConnected(t *testing.T, g *CouplingGraph, region []int) {
	t.Helper()
	inRegion := make(map[int]bool, len(region))
	for _, pq := range region {
		inRegion[pq] = true
	}
	visited := map[int]bool{region[0]: true}
	queue := []int{region[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(cur) {
			if inRegion[next] && !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	assert.Len(t, visited, len(region), "region %v must be internally connected", region)
}

func TestPartition_ConnectedDisconnectedGraphRedistributes(t *testing.T) {
	// Four components of sizes 4,3,3,3; region size ceil(13/4)=4 leaves
	// a pool of 9 spilling past the region size.
	edges := [][2]int{
		{0, 1}, {1, 2}, {2, 3},
		{4, 5}, {5, 6},
		{7, 8}, {8, 9},
		{10, 11}, {11, 12},
	}
	g, err := NewCouplingGraph(13, edges)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	pqToCtrl, ctrlToPq, err := Partition(g, 4, StrategyConnected, logger)
	require.NoError(t, err)
	require.Len(t, ctrlToPq, 4)
	requireInverse(t, pqToCtrl, ctrlToPq)
	assert.Contains(t, buf.String(), "remainder pool exceeds region size")
}

func TestPartition_ConnectedStrictRequiresConnectivity(t *testing.T) {
	split, err := NewCouplingGraph(8, [][2]int{{0, 1}, {1, 2}, {2, 3}, {4, 5}, {5, 6}, {6, 7}})
	require.NoError(t, err)

	_, _, err = Partition(split, 2, StrategyConnectedStrict, discardLogger())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePartition))

	line, err := Line(8)
	require.NoError(t, err)
	pqToCtrl, ctrlToPq, err := Partition(line, 2, StrategyConnectedStrict, discardLogger())
	require.NoError(t, err)
	requireInverse(t, pqToCtrl, ctrlToPq)
}

func TestPartition_RejectsBadControllerCounts(t *testing.T) {
	g, err := Line(4)
	require.NoError(t, err)

	_, _, err = Partition(g, 0, StrategyTrivial, discardLogger())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, _, err = Partition(g, 5, StrategyTrivial, discardLogger())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestParseStrategy(t *testing.T) {
	for _, want := range []Strategy{StrategyTrivial, StrategyConnected, StrategyConnectedStrict} {
		got, err := ParseStrategy(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStrategy("optimal")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
