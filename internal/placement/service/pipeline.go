package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/latency"
	"qplace/internal/mapper"
	"qplace/internal/placement/models"
	"qplace/internal/prune"
	"qplace/internal/refine"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/platform/sentinel"
)

var tracer = otel.Tracer("qplace/placement")

// Refiner names accepted in job options.
const (
	refineNone  = "none"
	refineIntra = "intra"
	refineSabre = "sabre"
)

// Process runs one queued job to a terminal state. Called by the worker
// pool; the returned error is for logging, the job row carries the
// user-facing failure.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load queued job")
	}

	job.Status = models.StatusRunning
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark job running")
	}

	start := s.now()
	result, err := s.run(ctx, job)
	elapsed := time.Since(start)
	if err != nil {
		return s.failJob(ctx, job, err, elapsed)
	}
	return s.completeJob(ctx, job, result, elapsed)
}

func (s *Service) failJob(ctx context.Context, job *models.Job, cause error, elapsed time.Duration) error {
	job.Status = models.StatusFailed
	job.Error = cause.Error()
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark job failed", "job_id", job.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveJob(job.Strategy, string(models.StatusFailed), 0, elapsed)
	}
	_ = s.events.Publish(ctx, models.Event{
		Type:     models.EventJobFailed,
		JobID:    job.ID,
		Strategy: job.Strategy,
		Error:    job.Error,
		At:       s.now().UTC(),
	})
	s.logger.WarnContext(ctx, "job failed",
		"job_id", job.ID,
		"strategy", job.Strategy,
		"elapsed_ms", elapsed.Milliseconds(),
		"error", cause,
	)
	return cause
}

func (s *Service) completeJob(ctx context.Context, job *models.Job, result *models.Result, elapsed time.Duration) error {
	job.Status = models.StatusCompleted
	job.UpdatedAt = s.now().UTC()
	// The result row and the status flip land together or not at all.
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.jobs.SaveResult(ctx, result); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save result")
		}
		if err := s.jobs.UpdateJob(ctx, job); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark job completed")
		}
		return nil
	})
	if err != nil {
		return s.failJob(ctx, job, err, elapsed)
	}
	if s.metrics != nil {
		s.metrics.ObserveJob(job.Strategy, string(models.StatusCompleted), result.CrossPairs, elapsed)
	}
	_ = s.events.Publish(ctx, models.Event{
		Type:     models.EventJobCompleted,
		JobID:    job.ID,
		Strategy: job.Strategy,
		Score:    result.CrossPairs,
		At:       s.now().UTC(),
	})
	s.logger.InfoContext(ctx, "job completed",
		"job_id", job.ID,
		"strategy", job.Strategy,
		"cross_pairs", result.CrossPairs,
		"from_cache", result.FromCache,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// run executes the pipeline and assembles the result.
func (s *Service) run(ctx context.Context, job *models.Job) (*models.Result, error) {
	ctx, span := tracer.Start(ctx, "placement.run",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.strategy", job.Strategy),
		),
	)
	defer span.End()

	start := s.now()
	req := &job.Request

	if cached := s.cachedResult(ctx, job); cached != nil {
		span.SetAttributes(attribute.Bool("job.from_cache", true))
		cached.Elapsed = time.Since(start)
		return cached, nil
	}

	result, err := s.compute(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.Elapsed = time.Since(start)

	if s.cache != nil && cacheable(req) {
		if err := s.cache.Set(ctx, cacheKey(req), result, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "result cache store failed", "job_id", job.ID, "error", err)
		}
	}

	span.SetAttributes(attribute.Int("job.cross_pairs", result.CrossPairs))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// compute is the uncached pipeline: build, search, prune, evaluate.
func (s *Service) compute(ctx context.Context, job *models.Job) (*models.Result, error) {
	req := &job.Request

	cfg, props, circ, err := s.buildStage(ctx, req)
	if err != nil {
		return nil, err
	}

	mapping, crossPairs, trials, err := s.searchStage(ctx, job, cfg, props)
	if err != nil {
		return nil, err
	}

	prunedCoupling, err := s.pruneStage(ctx, req, cfg, props, mapping)
	if err != nil {
		return nil, err
	}

	report, err := s.latencyStage(ctx, req, cfg, props, circ, mapping)
	if err != nil {
		return nil, err
	}

	return &models.Result{
		JobID:          job.ID,
		Mapping:        mapping,
		CrossPairs:     crossPairs,
		CouplingCost:   refine.CouplingCost(cfg, props.TwoQubitGates(), mapping),
		PrunedCoupling: prunedCoupling,
		Latency:        report,
		Trials:         trials,
		CompletedAt:    s.now().UTC(),
	}, nil
}

// buildStage turns the request specs into domain objects.
func (s *Service) buildStage(ctx context.Context, req *models.SubmitRequest) (*device.ControllerConfig, *circuit.Properties, *circuit.Circuit, error) {
	_, span := tracer.Start(ctx, "placement.build")
	defer span.End()

	cfg, err := s.buildDevice(req.Device)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, nil, err
	}
	circ, err := buildCircuit(req.Circuit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, nil, err
	}
	props, err := circuit.NewProperties(circ)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("device.qubits", cfg.NumQubits()),
		attribute.Int("device.controllers", cfg.NumControllers()),
		attribute.Int("circuit.cif_pairs", len(props.CifPairs())),
	)
	return cfg, props, circ, nil
}

type trialOutcome struct {
	mapping []int
	score   int
}

// searchStage runs the seeded trials in parallel and keeps the best
// mapping. Ties go to the lowest trial index so a fixed seed always
// reproduces the same result.
func (s *Service) searchStage(ctx context.Context, job *models.Job, cfg *device.ControllerConfig, props *circuit.Properties) ([]int, int, int, error) {
	opts := job.Request.Options

	trials := opts.Trials
	if trials == 0 {
		trials = s.defaults.Trials
	}
	strategy, err := s.resolveStrategy(opts.Strategy)
	if err != nil {
		return nil, 0, 0, err
	}

	baseSeed := s.now().UnixNano()
	if opts.Seed != nil {
		baseSeed = *opts.Seed
	}

	ctx, span := tracer.Start(ctx, "placement.search",
		trace.WithAttributes(
			attribute.String("search.strategy", strategy.String()),
			attribute.Int("search.trials", trials),
		),
	)
	defer span.End()

	outcomes := make([]trialOutcome, trials)
	g, gctx := errgroup.WithContext(ctx)
	for i := range trials {
		seed := baseSeed + int64(i)
		g.Go(func() error {
			m, err := mapper.New(strategy, cfg, props, mapper.WithSeed(seed), mapper.WithLogger(s.logger))
			if err != nil {
				return err
			}
			mapping, err := m.Run(gctx)
			if err != nil {
				return err
			}
			mapping, err = s.applyRefine(gctx, opts.Refine, cfg, props, mapping, seed)
			if err != nil {
				return err
			}
			outcomes[i] = trialOutcome{mapping: mapping, score: mapper.Score(cfg, props, mapping)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, 0, err
	}
	if s.metrics != nil {
		s.metrics.TrialRestarts.Add(float64(trials))
	}

	best := outcomes[0]
	for _, outcome := range outcomes[1:] {
		if outcome.score < best.score {
			best = outcome
		}
	}

	span.SetAttributes(attribute.Int("search.best_score", best.score))
	span.SetStatus(codes.Ok, "")
	return best.mapping, best.score, trials, nil
}

// applyRefine runs the requested intra-region refinement pass.
func (s *Service) applyRefine(ctx context.Context, name string, cfg *device.ControllerConfig, props *circuit.Properties, mapping []int, seed int64) ([]int, error) {
	switch name {
	case "", refineNone:
		return mapping, nil
	case refineIntra:
		opt, err := refine.NewIntraOptimizer(cfg, props, refine.WithSeed(seed), refine.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		return opt.Refine(ctx, mapping)
	case refineSabre:
		sab, err := refine.NewSabreRefiner(cfg, props, refine.WithSeed(seed), refine.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		return sab.Refine(ctx, mapping)
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown refiner %q", name)
	}
}

// pruneStage thins the inter-region coupling for downstream routers
// when the job asked for it.
func (s *Service) pruneStage(ctx context.Context, req *models.SubmitRequest, cfg *device.ControllerConfig, props *circuit.Properties, mapping []int) ([][2]int, error) {
	opts := req.Options
	if opts.Prune == "" {
		return nil, nil
	}

	_, span := tracer.Start(ctx, "placement.prune",
		trace.WithAttributes(attribute.String("prune.method", opts.Prune)),
	)
	defer span.End()

	method, err := prune.ParseMethod(opts.Prune)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	pruneOpts := []prune.Option{prune.WithLogger(s.logger)}
	if opts.Seed != nil {
		pruneOpts = append(pruneOpts, prune.WithSeed(*opts.Seed))
	}
	if opts.PruneProbability > 0 {
		pruneOpts = append(pruneOpts, prune.WithProbability(opts.PruneProbability))
	}

	pruned, err := prune.Apply(method, cfg.Graph(), cfg.Regions(), mapping, props.MultiOps(), pruneOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("prune.kept_edges", len(pruned)))
	span.SetStatus(codes.Ok, "")
	return pruned, nil
}

// latencyStage schedules the circuit and evaluates the mapped latency.
func (s *Service) latencyStage(ctx context.Context, req *models.SubmitRequest, cfg *device.ControllerConfig, props *circuit.Properties, circ *circuit.Circuit, mapping []int) (models.LatencyReport, error) {
	ctx, span := tracer.Start(ctx, "placement.latency")
	defer span.End()

	sched, err := s.scheduler.Schedule(ctx, circ)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.LatencyReport{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "schedule circuit")
	}
	pairs, err := props.LayoutCifPairs(mapping)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.LatencyReport{}, err
	}

	var evalOpts []latency.Option
	if req.Options.DedupLatency {
		evalOpts = append(evalOpts, latency.WithDedup())
	}
	ev := latency.NewEvaluator(cfg, evalOpts...)
	total, err := ev.Evaluate(sched, pairs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.LatencyReport{}, err
	}
	report, err := latencyReport(ev, total)
	if err != nil {
		return models.LatencyReport{}, err
	}

	span.SetAttributes(attribute.Float64("latency.total_seconds", report.Total))
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// cachedResult returns a copy of a cached result for this request, or
// nil on miss. Only seeded requests are cache-eligible.
func (s *Service) cachedResult(ctx context.Context, job *models.Job) *models.Result {
	if s.cache == nil || !cacheable(&job.Request) {
		return nil
	}
	cached, err := s.cache.Get(ctx, cacheKey(&job.Request))
	if err != nil {
		if !errors.Is(err, sentinel.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "result cache lookup failed", "job_id", job.ID, "error", err)
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
		return nil
	}
	if s.metrics != nil {
		s.metrics.CacheHits.Inc()
	}
	cached.JobID = job.ID
	cached.FromCache = true
	cached.CompletedAt = s.now().UTC()
	return cached
}

// cacheable reports whether two identical submissions are guaranteed to
// produce identical results. Unseeded jobs draw their seeds from the
// clock, so their results must not be reused.
func cacheable(req *models.SubmitRequest) bool {
	return req.Options.Seed != nil
}

// cacheKey digests the canonical request encoding.
func cacheKey(req *models.SubmitRequest) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// latencyReport reads every evaluator figure into the wire report.
func latencyReport(ev *latency.Evaluator, total float64) (models.LatencyReport, error) {
	gate, err := ev.GateLatency()
	if err != nil {
		return models.LatencyReport{}, err
	}
	ctrl, err := ev.CtrlLatency()
	if err != nil {
		return models.LatencyReport{}, err
	}
	inner, err := ev.InnerLatency()
	if err != nil {
		return models.LatencyReport{}, err
	}
	inter, err := ev.InterLatency()
	if err != nil {
		return models.LatencyReport{}, err
	}
	interCount, err := ev.InterCount()
	if err != nil {
		return models.LatencyReport{}, err
	}
	return models.LatencyReport{
		Total:      total,
		Gate:       gate,
		Ctrl:       ctrl,
		Inner:      inner,
		Inter:      inter,
		InterCount: interCount,
	}, nil
}
