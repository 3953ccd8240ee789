package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qplace/internal/placement/models"
	"qplace/pkg/platform/sentinel"
)

func newJob(id string) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:        id,
		Status:    models.StatusPending,
		Strategy:  "graph_partition",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	store := New()
	ctx := context.Background()

	job := newJob("job-1")
	require.NoError(t, store.CreateJob(ctx, job))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestCreateJobRejectsDuplicates(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, newJob("job-1")))
	err := store.CreateJob(ctx, newJob("job-1"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestGetJobNotFound(t *testing.T) {
	store := New()

	_, err := store.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdateJob(t *testing.T) {
	store := New()
	ctx := context.Background()

	job := newJob("job-1")
	require.NoError(t, store.CreateJob(ctx, job))

	job.Status = models.StatusCompleted
	require.NoError(t, store.UpdateJob(ctx, job))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestUpdateJobNotFound(t *testing.T) {
	store := New()

	err := store.UpdateJob(context.Background(), newJob("missing"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestSaveAndGetResult(t *testing.T) {
	store := New()
	ctx := context.Background()

	result := &models.Result{
		JobID:      "job-1",
		Mapping:    []int{2, 0, 1},
		CrossPairs: 1,
		Trials:     4,
	}
	require.NoError(t, store.SaveResult(ctx, result))

	got, err := store.GetResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, got.Mapping)
	assert.Equal(t, 1, got.CrossPairs)
}

func TestGetResultNotFound(t *testing.T) {
	store := New()

	_, err := store.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetResultReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, &models.Result{
		JobID:   "job-1",
		Mapping: []int{0, 1, 2},
	}))

	first, err := store.GetResult(ctx, "job-1")
	require.NoError(t, err)
	first.Mapping[0] = 99

	second, err := store.GetResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, second.Mapping)
}

func TestClear(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, newJob("job-1")))
	require.NoError(t, store.SaveResult(ctx, &models.Result{JobID: "job-1"}))

	store.Clear()

	_, err := store.GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.GetResult(ctx, "job-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
