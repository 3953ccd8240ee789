// Package worker drains the placement queue onto a fixed goroutine
// pool. A failed job is logged and the worker moves on; the job row
// already carries the failure for the caller.
package worker

import (
	"context"
	"log/slog"
	"sync"

	dErrors "qplace/pkg/domain-errors"
)

// Processor runs one queued job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Pool consumes job ids from an inbox channel.
type Pool struct {
	processor Processor
	inbox     <-chan string
	workers   int
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewPool creates a pool of the given size. Sizes below one are raised
// to one.
func NewPool(processor Processor, inbox <-chan string, workers int, logger *slog.Logger) (*Pool, error) {
	if processor == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "worker pool requires a processor")
	}
	if inbox == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "worker pool requires an inbox")
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		processor: processor,
		inbox:     inbox,
		workers:   workers,
		logger:    logger,
	}, nil
}

// Start launches the workers. They stop when ctx is cancelled or the
// inbox closes.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.run(ctx, worker)
		}(i)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.inbox:
			if !ok {
				return
			}
			if err := p.processor.Process(ctx, jobID); err != nil {
				p.logger.ErrorContext(ctx, "job processing failed",
					"worker", worker,
					"job_id", jobID,
					"error", err,
				)
			}
		}
	}
}
