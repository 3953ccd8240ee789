// Package postgres persists placement jobs and results in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"qplace/internal/placement/models"
	"qplace/pkg/platform/sentinel"
	txcontext "qplace/pkg/platform/tx"
)

// Store implements ports.JobStore on top of database/sql.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed job store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the job and result tables if they do not exist.
// Called once at startup; safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS placement_jobs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		strategy TEXT NOT NULL,
		request JSONB NOT NULL,
		submitter JSONB,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_placement_jobs_status ON placement_jobs(status);

	CREATE TABLE IF NOT EXISTS placement_results (
		job_id UUID PRIMARY KEY REFERENCES placement_jobs(id) ON DELETE CASCADE,
		mapping BIGINT[] NOT NULL,
		cross_pairs INTEGER NOT NULL,
		coupling_cost INTEGER NOT NULL,
		pruned_coupling JSONB,
		latency JSONB NOT NULL,
		trials INTEGER NOT NULL,
		elapsed_ns BIGINT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure placement schema: %w", err)
	}
	return nil
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	requestBytes, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}
	submitterBytes, err := json.Marshal(job.Submitter)
	if err != nil {
		return fmt.Errorf("marshal job submitter: %w", err)
	}

	query := `
		INSERT INTO placement_jobs (id, status, strategy, request, submitter, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		job.ID,
		string(job.Status),
		job.Strategy,
		requestBytes,
		submitterBytes,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT id, status, strategy, request, submitter, error, created_at, updated_at
		FROM placement_jobs
		WHERE id = $1
	`
	var (
		job            models.Job
		status         string
		requestBytes   []byte
		submitterBytes []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&status,
		&job.Strategy,
		&requestBytes,
		&submitterBytes,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}

	job.Status = models.JobStatus(status)
	if err := json.Unmarshal(requestBytes, &job.Request); err != nil {
		return nil, fmt.Errorf("unmarshal job request: %w", err)
	}
	if len(submitterBytes) > 0 {
		if err := json.Unmarshal(submitterBytes, &job.Submitter); err != nil {
			return nil, fmt.Errorf("unmarshal job submitter: %w", err)
		}
	}
	return &job, nil
}

// UpdateJob rewrites the mutable job columns.
func (s *Store) UpdateJob(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE placement_jobs
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		job.ID,
		string(job.Status),
		job.Error,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SaveResult upserts the result row for a job. Re-running a job replaces
// its previous result.
func (s *Store) SaveResult(ctx context.Context, result *models.Result) error {
	latencyBytes, err := json.Marshal(result.Latency)
	if err != nil {
		return fmt.Errorf("marshal result latency: %w", err)
	}
	var couplingBytes []byte
	if result.PrunedCoupling != nil {
		couplingBytes, err = json.Marshal(result.PrunedCoupling)
		if err != nil {
			return fmt.Errorf("marshal pruned coupling: %w", err)
		}
	}

	mapping := make([]int64, len(result.Mapping))
	for i, q := range result.Mapping {
		mapping[i] = int64(q)
	}

	query := `
		INSERT INTO placement_results (job_id, mapping, cross_pairs, coupling_cost, pruned_coupling, latency, trials, elapsed_ns, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			mapping = EXCLUDED.mapping,
			cross_pairs = EXCLUDED.cross_pairs,
			coupling_cost = EXCLUDED.coupling_cost,
			pruned_coupling = EXCLUDED.pruned_coupling,
			latency = EXCLUDED.latency,
			trials = EXCLUDED.trials,
			elapsed_ns = EXCLUDED.elapsed_ns,
			completed_at = EXCLUDED.completed_at
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		result.JobID,
		pq.Array(mapping),
		result.CrossPairs,
		result.CouplingCost,
		couplingBytes,
		latencyBytes,
		result.Trials,
		int64(result.Elapsed),
		result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetResult loads the result for a job.
func (s *Store) GetResult(ctx context.Context, jobID string) (*models.Result, error) {
	query := `
		SELECT job_id, mapping, cross_pairs, coupling_cost, pruned_coupling, latency, trials, elapsed_ns, completed_at
		FROM placement_results
		WHERE job_id = $1
	`
	var (
		result        models.Result
		mapping       []int64
		couplingBytes []byte
		latencyBytes  []byte
		elapsedNs     int64
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, jobID).Scan(
		&result.JobID,
		pq.Array(&mapping),
		&result.CrossPairs,
		&result.CouplingCost,
		&couplingBytes,
		&latencyBytes,
		&result.Trials,
		&elapsedNs,
		&result.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query result: %w", err)
	}

	result.Mapping = make([]int, len(mapping))
	for i, q := range mapping {
		result.Mapping[i] = int(q)
	}
	if len(couplingBytes) > 0 {
		if err := json.Unmarshal(couplingBytes, &result.PrunedCoupling); err != nil {
			return nil, fmt.Errorf("unmarshal pruned coupling: %w", err)
		}
	}
	if err := json.Unmarshal(latencyBytes, &result.Latency); err != nil {
		return nil, fmt.Errorf("unmarshal result latency: %w", err)
	}
	result.Elapsed = time.Duration(elapsedNs)
	return &result, nil
}
