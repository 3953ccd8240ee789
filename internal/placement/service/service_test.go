package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qplace/internal/circuit"
	"qplace/internal/device"
	"qplace/internal/latency"
	"qplace/internal/placement/models"
	"qplace/internal/placement/store/memory"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/platform/sentinel"
	"qplace/pkg/requestcontext"
)

// =============================================================================
// Placement Service Test Suite
// =============================================================================
// The pipeline combines partitioning, the mapping search, pruning and
// latency evaluation; these tests pin the orchestration down with a
// deterministic scheduler and fixed seeds so outcomes are reproducible.

type recordedEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordedEvents) Publish(_ context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) byType(eventType string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]models.Result
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.Result)}
}

func (c *fakeCache) Get(_ context.Context, key string) (*models.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, sentinel.ErrCacheMiss
	}
	out := entry
	return &out, nil
}

func (c *fakeCache) Set(_ context.Context, key string, result *models.Result, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *result
	c.sets++
	return nil
}

type fixedScheduler struct {
	sched latency.Schedule
}

func (f fixedScheduler) Schedule(context.Context, *circuit.Circuit) (latency.Schedule, error) {
	return f.sched, nil
}

type PlacementServiceSuite struct {
	suite.Suite
	store   *memory.Store
	events  *recordedEvents
	service *Service
}

func TestPlacementServiceSuite(t *testing.T) {
	suite.Run(t, new(PlacementServiceSuite))
}

func (s *PlacementServiceSuite) SetupTest() {
	s.store = memory.New()
	s.events = &recordedEvents{}

	var err error
	s.service, err = New(s.store,
		WithEvents(s.events),
		WithScheduler(fixedScheduler{sched: latency.Schedule{Duration: 1000, Dt: 1e-9}}),
	)
	s.Require().NoError(err)
}

// placementRequest is a 6-qubit line device split across 2 controllers
// with two feedback pairs, (4<-1) and (2<-4). The trivial partition
// yields regions {0,1,2} and {3,4,5}.
func placementRequest(seed int64) *models.SubmitRequest {
	bit0, bit1 := 0, 1
	return &models.SubmitRequest{
		Device: models.DeviceSpec{
			NumQubits:      6,
			CouplingEdges:  [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}},
			NumControllers: 2,
		},
		Circuit: models.CircuitSpec{
			NumQubits: 6,
			NumClbits: 2,
			Instructions: []models.InstructionSpec{
				{Name: "h", Qubits: []int{0}},
				{Name: "cx", Qubits: []int{0, 1}},
				{Name: "measure", Qubits: []int{1}, Clbits: []int{0}},
				{Name: "x", Qubits: []int{4}, CondBit: &bit0, CondValue: 1},
				{Name: "measure", Qubits: []int{4}, Clbits: []int{1}},
				{Name: "x", Qubits: []int{2}, CondBit: &bit1, CondValue: 1},
			},
		},
		Options: models.PlacementOptions{Seed: &seed, Trials: 2},
	}
}

func (s *PlacementServiceSuite) processNext() string {
	var id string
	select {
	case id = <-s.service.Queue():
	default:
		s.FailNow("no job queued")
	}
	s.Require().NoError(s.service.Process(context.Background(), id))
	return id
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *PlacementServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("invalid default strategy returns error", func() {
		_, err := New(s.store, WithDefaults(Defaults{Strategy: "bogus"}))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	s.Run("valid store returns configured service", func() {
		svc, err := New(s.store)
		s.NoError(err)
		s.NotNil(svc)
	})
}

// =============================================================================
// Submit Tests
// =============================================================================

func (s *PlacementServiceSuite) TestSubmit() {
	ctx := context.Background()

	s.Run("accepts a valid request", func() {
		job, err := s.service.Submit(ctx, placementRequest(7), models.SubmittedBy{ClientID: "client-a"})
		s.Require().NoError(err)
		s.NotEmpty(job.ID)
		s.Equal(models.StatusPending, job.Status)
		s.Equal("graph_partition", job.Strategy)
		s.Equal("client-a", job.Submitter.ClientID)

		select {
		case queued := <-s.service.Queue():
			s.Equal(job.ID, queued)
		default:
			s.Fail("job was not queued")
		}

		accepted := s.events.byType(models.EventJobAccepted)
		s.Require().Len(accepted, 1)
		s.Equal(job.ID, accepted[0].JobID)
	})

	s.Run("stamps timestamps from the request-scoped clock", func() {
		at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		job, err := s.service.Submit(requestcontext.WithTime(ctx, at), placementRequest(8), models.SubmittedBy{})
		s.Require().NoError(err)
		s.Equal(at, job.CreatedAt)
		s.Equal(at, job.UpdatedAt)
		<-s.service.Queue()
	})

	s.Run("rejects a request without instructions", func() {
		req := placementRequest(7)
		req.Circuit.Instructions = nil
		_, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an unknown strategy", func() {
		req := placementRequest(7)
		req.Options.Strategy = "simulated_annealing"
		_, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an unknown refiner", func() {
		req := placementRequest(7)
		req.Options.Refine = "polish"
		_, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects an unknown pruner", func() {
		req := placementRequest(7)
		req.Options.Prune = "aggressive"
		_, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects submissions when the queue is full", func() {
		svc, err := New(memory.New(), WithQueueSize(1))
		s.Require().NoError(err)

		_, err = svc.Submit(ctx, placementRequest(7), models.SubmittedBy{})
		s.Require().NoError(err)

		_, err = svc.Submit(ctx, placementRequest(7), models.SubmittedBy{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

// =============================================================================
// Process Tests
// =============================================================================

func (s *PlacementServiceSuite) TestProcessCompletesJob() {
	ctx := context.Background()

	job, err := s.service.Submit(ctx, placementRequest(7), models.SubmittedBy{})
	s.Require().NoError(err)
	s.processNext()

	got, err := s.service.Get(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, got.Status)

	result, err := s.service.Result(ctx, job.ID)
	s.Require().NoError(err)
	s.Len(result.Mapping, 6)
	s.NoError(device.ValidateMapping(result.Mapping, 6))
	s.Equal(2, result.Trials)
	s.GreaterOrEqual(result.CrossPairs, 0)
	s.LessOrEqual(result.CrossPairs, 2)

	// Both feedback pairs either stay inside a controller or cross; the
	// undeduplicated inter count equals the cross-pair score.
	s.Equal(result.CrossPairs, result.Latency.InterCount)
	s.InDelta(1e-6, result.Latency.Gate, 1e-12)
	s.InDelta(result.Latency.Gate+result.Latency.Ctrl, result.Latency.Total, 1e-12)

	completed := s.events.byType(models.EventJobCompleted)
	s.Require().Len(completed, 1)
	s.Equal(job.ID, completed[0].JobID)
	s.Equal(result.CrossPairs, completed[0].Score)
}

func (s *PlacementServiceSuite) TestProcessRunsCompletionInTx() {
	ctx := context.Background()

	var txCalls int
	svc, err := New(s.store,
		WithEvents(s.events),
		WithScheduler(fixedScheduler{sched: latency.Schedule{Duration: 1000, Dt: 1e-9}}),
		WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			txCalls++
			return fn(ctx)
		}),
	)
	s.Require().NoError(err)

	job, err := svc.Submit(ctx, placementRequest(7), models.SubmittedBy{})
	s.Require().NoError(err)
	select {
	case id := <-svc.Queue():
		s.Require().NoError(svc.Process(ctx, id))
	default:
		s.FailNow("queue is empty")
	}

	s.Equal(1, txCalls)
	got, err := svc.Get(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, got.Status)
}

func (s *PlacementServiceSuite) TestProcessIsDeterministicWithSeed() {
	ctx := context.Background()

	first, err := s.service.Submit(ctx, placementRequest(42), models.SubmittedBy{})
	s.Require().NoError(err)
	s.processNext()

	second, err := s.service.Submit(ctx, placementRequest(42), models.SubmittedBy{})
	s.Require().NoError(err)
	s.processNext()

	resultA, err := s.service.Result(ctx, first.ID)
	s.Require().NoError(err)
	resultB, err := s.service.Result(ctx, second.ID)
	s.Require().NoError(err)

	s.Equal(resultA.Mapping, resultB.Mapping)
	s.Equal(resultA.CrossPairs, resultB.CrossPairs)
}

func (s *PlacementServiceSuite) TestProcessFailsOnImpossibleDevice() {
	ctx := context.Background()

	req := placementRequest(7)
	// 4 qubits cannot be split across 2 controllers: the partition
	// requires more than two qubits per controller on average.
	req.Device.NumQubits = 4
	req.Device.CouplingEdges = [][2]int{{0, 1}, {1, 2}, {2, 3}}
	req.Circuit.NumQubits = 4
	req.Circuit.Instructions = []models.InstructionSpec{
		{Name: "h", Qubits: []int{0}},
		{Name: "cx", Qubits: []int{0, 1}},
	}

	job, err := s.service.Submit(ctx, req, models.SubmittedBy{})
	s.Require().NoError(err)

	id := <-s.service.Queue()
	err = s.service.Process(ctx, id)
	s.Error(err)

	got, err := s.service.Get(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, got.Status)
	s.NotEmpty(got.Error)

	_, err = s.service.Result(ctx, job.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeMappingFailed))

	failed := s.events.byType(models.EventJobFailed)
	s.Require().Len(failed, 1)
	s.Equal(job.ID, failed[0].JobID)
}

func (s *PlacementServiceSuite) TestProcessWithRefinersAndPruner() {
	ctx := context.Background()

	s.Run("intra refiner", func() {
		req := placementRequest(11)
		req.Options.Refine = "intra"
		job, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.Require().NoError(err)
		s.processNext()

		result, err := s.service.Result(ctx, job.ID)
		s.Require().NoError(err)
		s.NoError(device.ValidateMapping(result.Mapping, 6))
	})

	s.Run("sabre refiner", func() {
		req := placementRequest(11)
		req.Options.Refine = "sabre"
		job, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.Require().NoError(err)
		s.processNext()

		result, err := s.service.Result(ctx, job.ID)
		s.Require().NoError(err)
		s.NoError(device.ValidateMapping(result.Mapping, 6))
	})

	s.Run("trivial pruner keeps a connected coupling", func() {
		req := placementRequest(11)
		req.Options.Prune = "trivial"
		job, err := s.service.Submit(ctx, req, models.SubmittedBy{})
		s.Require().NoError(err)
		s.processNext()

		result, err := s.service.Result(ctx, job.ID)
		s.Require().NoError(err)
		s.NotEmpty(result.PrunedCoupling)

		g, err := device.NewCouplingGraph(6, result.PrunedCoupling)
		s.Require().NoError(err)
		s.True(g.Connected())
	})
}

// =============================================================================
// Result State Tests
// =============================================================================

func (s *PlacementServiceSuite) TestResultStates() {
	ctx := context.Background()

	s.Run("missing job is not found", func() {
		_, err := s.service.Result(ctx, "no-such-job")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("pending job is not evaluated", func() {
		job, err := s.service.Submit(ctx, placementRequest(7), models.SubmittedBy{})
		s.Require().NoError(err)
		<-s.service.Queue()

		_, err = s.service.Result(ctx, job.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotEvaluated))
	})
}

// =============================================================================
// Cache Tests
// =============================================================================

func (s *PlacementServiceSuite) TestResultCache() {
	ctx := context.Background()

	s.Run("identical seeded requests hit the cache", func() {
		cache := newFakeCache()
		svc, err := New(memory.New(),
			WithCache(cache),
			WithScheduler(fixedScheduler{sched: latency.Schedule{Duration: 1000, Dt: 1e-9}}),
		)
		s.Require().NoError(err)

		first, err := svc.Submit(ctx, placementRequest(42), models.SubmittedBy{})
		s.Require().NoError(err)
		s.Require().NoError(svc.Process(ctx, <-svc.Queue()))
		s.Equal(1, cache.sets)

		second, err := svc.Submit(ctx, placementRequest(42), models.SubmittedBy{})
		s.Require().NoError(err)
		s.Require().NoError(svc.Process(ctx, <-svc.Queue()))
		s.Equal(1, cache.sets, "cache hit must not store again")

		resultA, err := svc.Result(ctx, first.ID)
		s.Require().NoError(err)
		resultB, err := svc.Result(ctx, second.ID)
		s.Require().NoError(err)

		s.False(resultA.FromCache)
		s.True(resultB.FromCache)
		s.Equal(resultA.Mapping, resultB.Mapping)
		s.Equal(second.ID, resultB.JobID)
	})

	s.Run("unseeded requests bypass the cache", func() {
		cache := newFakeCache()
		svc, err := New(memory.New(),
			WithCache(cache),
			WithScheduler(fixedScheduler{sched: latency.Schedule{Duration: 1000, Dt: 1e-9}}),
		)
		s.Require().NoError(err)

		req := placementRequest(0)
		req.Options.Seed = nil
		_, err = svc.Submit(ctx, req, models.SubmittedBy{})
		s.Require().NoError(err)
		s.Require().NoError(svc.Process(ctx, <-svc.Queue()))

		s.Equal(0, cache.sets)
	})
}

// =============================================================================
// Evaluate Tests
// =============================================================================

func (s *PlacementServiceSuite) TestEvaluate() {
	ctx := context.Background()

	base := func() *models.EvaluateRequest {
		req := placementRequest(0)
		duration, dt := 1000, 1e-9
		return &models.EvaluateRequest{
			Device:   req.Device,
			Circuit:  req.Circuit,
			Mapping:  []int{0, 1, 2, 3, 4, 5},
			Duration: &duration,
			Dt:       &dt,
		}
	}

	s.Run("scores the identity mapping", func() {
		resp, err := s.service.Evaluate(ctx, base())
		s.Require().NoError(err)

		// Pairs (4<-1) and (2<-4) both cross the {0,1,2}|{3,4,5} split.
		s.Equal(2, resp.CrossPairs)
		s.Equal(2, resp.Latency.InterCount)
		s.InDelta(1e-6, resp.Latency.Gate, 1e-12)
		s.InDelta(2*5e-7, resp.Latency.Inter, 1e-12)
		s.InDelta(2e-6, resp.Latency.Total, 1e-12)
	})

	s.Run("keeping feedback inside one controller removes the cost", func() {
		req := base()
		// Logical 1, 2 and 4 share controller 1: physical 3, 4, 5.
		req.Mapping = []int{0, 3, 4, 1, 5, 2}
		resp, err := s.service.Evaluate(ctx, req)
		s.Require().NoError(err)

		s.Equal(0, resp.CrossPairs)
		s.Equal(0, resp.Latency.InterCount)
		s.InDelta(2*5e-8, resp.Latency.Inner, 1e-12)
	})

	s.Run("deduplicates shared feedback sources", func() {
		req := base()
		bit0 := 0
		req.Circuit.Instructions = append(req.Circuit.Instructions,
			models.InstructionSpec{Name: "x", Qubits: []int{5}, CondBit: &bit0, CondValue: 1},
		)
		req.Dedup = true
		resp, err := s.service.Evaluate(ctx, req)
		s.Require().NoError(err)

		// Sources 1 and 4 are charged once each even though source 1
		// now feeds two conditioned gates.
		s.Equal(2, resp.Latency.InterCount)
		s.Equal(3, resp.CrossPairs)
	})

	s.Run("rejects a mapping of the wrong length", func() {
		req := base()
		req.Mapping = []int{0, 1, 2}
		_, err := s.service.Evaluate(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects a non-injective mapping", func() {
		req := base()
		req.Mapping = []int{0, 1, 2, 3, 4, 4}
		_, err := s.service.Evaluate(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duration without dt", func() {
		req := base()
		req.Dt = nil
		_, err := s.service.Evaluate(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Strategies Tests
// =============================================================================

func (s *PlacementServiceSuite) TestStrategies() {
	resp := s.service.Strategies(context.Background())

	s.Equal([]string{"graph_partition", "iter_kl", "two_step", "random_intra"}, resp.Strategies)
	s.Equal("graph_partition", resp.Default)
	s.Equal([]string{"none", "intra", "sabre"}, resp.Refiners)
	s.Equal([]string{"trivial", "mapping_aware"}, resp.Pruners)
}
