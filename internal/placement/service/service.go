// Package service orchestrates the placement pipeline: device
// partitioning, circuit analysis, the mapping search, refinement,
// pruning and latency evaluation. Jobs run asynchronously on a worker
// pool fed through the service queue.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/latency"
	"qplace/internal/mapper"
	"qplace/internal/placement/models"
	"qplace/internal/placement/ports"
	"qplace/internal/platform/metrics"
	"qplace/internal/prune"
	"qplace/internal/refine"
	"qplace/internal/scheduler"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/platform/sentinel"
	"qplace/pkg/requestcontext"
)

const (
	defaultTrials    = 4
	defaultQueueSize = 64
	defaultCacheTTL  = 15 * time.Minute
)

// Defaults fill job options the submitter left empty.
type Defaults struct {
	Strategy string
	Trials   int
	DtInner  float64
	DtInter  float64
}

// TxRunner runs fn atomically. The SQL store wires a transaction through
// the context; the default runner just calls fn.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service runs placement jobs against a job store, with optional result
// caching, lifecycle events and an external pulse scheduler.
type Service struct {
	jobs      ports.JobStore
	cache     ports.ResultCache
	events    ports.EventPublisher
	scheduler scheduler.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	defaults  Defaults
	cacheTTL  time.Duration
	queue     chan string
	tx        TxRunner
	now       func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithCache enables the result cache.
func WithCache(cache ports.ResultCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(events ports.EventPublisher) Option {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

// WithScheduler sets the pulse scheduling collaborator.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Service) {
		if sched != nil {
			s.scheduler = sched
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaults overrides the built-in job option defaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		if d.Strategy != "" {
			s.defaults.Strategy = d.Strategy
		}
		if d.Trials > 0 {
			s.defaults.Trials = d.Trials
		}
		if d.DtInner > 0 {
			s.defaults.DtInner = d.DtInner
		}
		if d.DtInter > 0 {
			s.defaults.DtInter = d.DtInter
		}
	}
}

// WithQueueSize bounds the submit queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// WithCacheTTL sets how long cached results stay valid.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithTxRunner makes result and status writes atomic. Pair it with a
// store backed by the same database.
func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// New creates the placement service. The job store is required; every
// other collaborator has a working default.
func New(jobs ports.JobStore, opts ...Option) (*Service, error) {
	if jobs == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "placement service requires a job store")
	}
	s := &Service{
		jobs:      jobs,
		events:    nopEvents{},
		scheduler: scheduler.Static{},
		logger:    slog.Default(),
		defaults: Defaults{
			Strategy: mapper.StrategyGraphPartition.String(),
			Trials:   defaultTrials,
		},
		cacheTTL: defaultCacheTTL,
		queue:    make(chan string, defaultQueueSize),
		tx:       func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if _, err := mapper.ParseStrategy(s.defaults.Strategy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid default strategy")
	}
	return s, nil
}

// Queue exposes the job ids awaiting processing. The worker pool reads
// from it and calls Process.
func (s *Service) Queue() <-chan string { return s.queue }

// Submit validates the request, persists a pending job and queues it.
// Job timestamps use the request-scoped time so they match the access
// log entry for the submission.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest, submitter models.SubmittedBy) (*models.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strategy, err := s.resolveStrategy(req.Options.Strategy)
	if err != nil {
		return nil, err
	}
	if err := checkOptionNames(req.Options); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).UTC()
	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.StatusPending,
		Strategy:  strategy.String(),
		Request:   *req,
		Submitter: submitter,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create job")
	}

	select {
	case s.queue <- job.ID:
	default:
		job.Status = models.StatusFailed
		job.Error = "placement queue is full"
		job.UpdatedAt = now
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark overflowed job", "job_id", job.ID, "error", err)
		}
		return nil, dErrors.New(dErrors.CodeUnavailable, "placement queue is full")
	}

	if s.metrics != nil {
		s.metrics.JobsSubmitted.Inc()
	}
	// The publisher logs its own failures; a lost event must not fail
	// the submit.
	_ = s.events.Publish(ctx, models.Event{
		Type:     models.EventJobAccepted,
		JobID:    job.ID,
		Strategy: job.Strategy,
		At:       now,
	})

	s.logger.InfoContext(ctx, "job accepted",
		"job_id", job.ID,
		"strategy", job.Strategy,
		"qubits", req.Circuit.NumQubits,
		"controllers", req.Device.NumControllers,
	)
	return job, nil
}

// Get returns one job by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "job not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load job")
	}
	return job, nil
}

// Result returns the result of a completed job. Pending and running
// jobs are not evaluated yet; failed jobs surface their failure.
func (s *Service) Result(ctx context.Context, id string) (*models.Result, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.StatusCompleted:
	case models.StatusFailed:
		return nil, dErrors.Newf(dErrors.CodeMappingFailed, "job failed: %s", job.Error)
	default:
		return nil, dErrors.New(dErrors.CodeNotEvaluated, "job has not completed")
	}

	result, err := s.jobs.GetResult(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInternal, "completed job has no result")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load result")
	}
	return result, nil
}

// Strategies lists the accepted strategy, refiner and pruner names.
func (s *Service) Strategies(context.Context) models.StrategiesResponse {
	return models.StrategiesResponse{
		Strategies: []string{
			mapper.StrategyGraphPartition.String(),
			mapper.StrategyIterKL.String(),
			mapper.StrategyTwoStep.String(),
			mapper.StrategyRandomIntra.String(),
		},
		Default: s.defaults.Strategy,
		Refiners: []string{
			refineNone,
			refineIntra,
			refineSabre,
		},
		Pruners: []string{
			prune.MethodTrivial.String(),
			prune.MethodMappingAware.String(),
		},
	}
}

// Evaluate scores an existing mapping synchronously without running the
// search.
func (s *Service) Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.buildDevice(req.Device)
	if err != nil {
		return nil, err
	}
	circ, err := buildCircuit(req.Circuit)
	if err != nil {
		return nil, err
	}
	props, err := circuit.NewProperties(circ)
	if err != nil {
		return nil, err
	}
	if len(req.Mapping) != circ.NumQubits() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"mapping length %d does not match circuit qubits %d", len(req.Mapping), circ.NumQubits())
	}
	if err := device.ValidateMapping(req.Mapping, cfg.NumQubits()); err != nil {
		return nil, err
	}

	sched := latency.Schedule{}
	if req.Duration != nil && req.Dt != nil {
		sched = latency.Schedule{Duration: *req.Duration, Dt: *req.Dt}
	} else {
		sched, err = s.scheduler.Schedule(ctx, circ)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "schedule circuit")
		}
	}

	pairs, err := props.LayoutCifPairs(req.Mapping)
	if err != nil {
		return nil, err
	}
	var evalOpts []latency.Option
	if req.Dedup {
		evalOpts = append(evalOpts, latency.WithDedup())
	}
	ev := latency.NewEvaluator(cfg, evalOpts...)
	total, err := ev.Evaluate(sched, pairs)
	if err != nil {
		return nil, err
	}
	report, err := latencyReport(ev, total)
	if err != nil {
		return nil, err
	}

	return &models.EvaluateResponse{
		CrossPairs:   device.CrossControllerPairs(cfg, props.CifPairs(), req.Mapping),
		CouplingCost: refine.CouplingCost(cfg, props.TwoQubitGates(), req.Mapping),
		Latency:      report,
	}, nil
}

// resolveStrategy applies the service default and validates the name.
func (s *Service) resolveStrategy(name string) (mapper.Strategy, error) {
	if name == "" {
		name = s.defaults.Strategy
	}
	return mapper.ParseStrategy(name)
}

// checkOptionNames rejects unknown refiner and pruner names at submit
// time instead of failing the job later.
func checkOptionNames(opts models.PlacementOptions) error {
	switch opts.Refine {
	case "", refineNone, refineIntra, refineSabre:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown refiner %q", opts.Refine)
	}
	if opts.Prune != "" {
		if _, err := prune.ParseMethod(opts.Prune); err != nil {
			return err
		}
	}
	if opts.PruneProbability < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "options.prune_probability must not be negative")
	}
	return nil
}

// nopEvents drops lifecycle events when no publisher is configured.
type nopEvents struct{}

func (nopEvents) Publish(context.Context, models.Event) error { return nil }
