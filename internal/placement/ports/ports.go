// Package ports declares the placement feature's store and event
// interfaces. Adapters live under store/ and events/.
package ports

import (
	"context"
	"time"

	"qplace/internal/placement/models"
)

// JobStore persists jobs and their results.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	SaveResult(ctx context.Context, result *models.Result) error
	GetResult(ctx context.Context, jobID string) (*models.Result, error)
}

// ResultCache short-circuits repeat placements of identical requests.
// Get returns sentinel.ErrCacheMiss when the key is absent.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.Result, error)
	Set(ctx context.Context, key string, result *models.Result, ttl time.Duration) error
}

// EventPublisher emits job lifecycle events. Implementations must be safe
// for concurrent use by the worker pool.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}
