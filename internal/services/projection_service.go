// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"patrimonio/internal/cache"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/observability"
	"patrimonio/internal/ports"
	"patrimonio/internal/projection"
)

// ErrLimitExceeded is returned when a request asks for more work than the
// service accepts.
var ErrLimitExceeded = errors.New("simulation limit exceeded")

// Limits bounds the size of accepted requests. Zero disables a bound.
type Limits struct {
	MaxSamples      int
	MaxHorizonYears int
}

// ProjectionInput is a projection request as received from callers.
type ProjectionInput struct {
	Config core.SimulationConfig `json:"config"`
	Events []core.LifeEvent      `json:"events,omitempty"`
	// UseSavedEvents adds the stored life events to the inline ones.
	UseSavedEvents bool `json:"use_saved_events,omitempty"`
}

// ProjectionDeps wires a ProjectionService. Only Engine is required; a nil
// Publisher runs queued projections in-process, a nil Cache disables caching.
type ProjectionDeps struct {
	Engine    *projection.Engine
	Events    ports.LifeEventStore
	Runs      ports.RunStore
	Publisher ports.JobPublisher
	Exporter  ports.BandExporter
	Cache     cache.Cache[*core.ProjectionResult]
	Metrics   *observability.Metrics
	Limits    Limits
	Timeout   time.Duration
	Logger    *log.Logger
}

// ProjectionService runs projections synchronously and manages asynchronous
// projection runs.
type ProjectionService struct {
	engine    *projection.Engine
	events    ports.LifeEventStore
	runs      ports.RunStore
	publisher ports.JobPublisher
	exporter  ports.BandExporter
	cache     cache.Cache[*core.ProjectionResult]
	metrics   *observability.Metrics
	limits    Limits
	timeout   time.Duration
	logger    *log.Logger

	group    singleflight.Group
	inflight sync.WaitGroup
	now      func() time.Time
}

func NewProjectionService(deps ProjectionDeps) *ProjectionService {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ProjectionService{
		engine:    deps.Engine,
		events:    deps.Events,
		runs:      deps.Runs,
		publisher: deps.Publisher,
		exporter:  deps.Exporter,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		limits:    deps.Limits,
		timeout:   deps.Timeout,
		logger:    logger.WithComponent(log.ComponentProjection),
		now:       time.Now,
	}
}

// Project runs a projection and waits for its result. Seeded requests are
// reproducible, so their results are cached and concurrent identical
// requests share one run. The boolean reports a cache hit.
func (s *ProjectionService) Project(ctx context.Context, in ProjectionInput) (*core.ProjectionResult, bool, error) {
	req, err := s.resolve(ctx, in)
	if err != nil {
		s.metrics.RecordProjection(observability.ModeSync, observability.StatusRejected, 0, 0)
		return nil, false, err
	}

	if req.Config.Seed == nil {
		res, err := s.run(ctx, observability.ModeSync, req)
		return res, false, err
	}

	key, err := cache.HashKey("projection:", req)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, key); ok {
			s.metrics.RecordCacheLookup(true)
			s.logger.DebugContext(ctx, "Projection served from cache", log.FieldCacheHit, true, log.FieldSeed, res.Seed)
			return res, true, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	// Joined callers wait on the same run, so it must not inherit the
	// first caller's cancellation. s.run still applies the timeout.
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		res, err := s.run(runCtx, observability.ModeSync, req)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(runCtx, key, res)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*core.ProjectionResult), false, nil
	}
}

func (s *ProjectionService) run(ctx context.Context, mode string, req core.ProjectionRequest) (*core.ProjectionResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out := <-s.engine.Submit(ctx, req.Config, req.Events)
	status := observability.StatusOK
	switch {
	case out.Err == nil:
		s.metrics.RecordSuccessProbability(out.Result.Goal.SuccessProbability)
	case errors.Is(out.Err, context.Canceled), errors.Is(out.Err, context.DeadlineExceeded):
		status = observability.StatusCancelled
	default:
		status = observability.StatusError
	}
	s.metrics.RecordProjection(mode, status, req.Config.SampleCount, time.Since(start))
	return out.Result, out.Err
}

// resolve applies defaults and limits and merges saved life events into the
// request.
func (s *ProjectionService) resolve(ctx context.Context, in ProjectionInput) (core.ProjectionRequest, error) {
	cfg := in.Config.Clone().WithDefaults()
	if err := cfg.Validate(); err != nil {
		return core.ProjectionRequest{}, err
	}
	if err := s.checkLimits(cfg); err != nil {
		return core.ProjectionRequest{}, err
	}

	events := slices.Clone(in.Events)
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return core.ProjectionRequest{}, err
		}
	}
	if in.UseSavedEvents && s.events != nil {
		saved, err := s.events.ListLifeEvents(ctx)
		if err != nil {
			return core.ProjectionRequest{}, fmt.Errorf("load saved life events: %w", err)
		}
		events = append(events, saved...)
	}
	return core.ProjectionRequest{Config: cfg, Events: events}, nil
}

func (s *ProjectionService) checkLimits(cfg core.SimulationConfig) error {
	if s.limits.MaxSamples > 0 && cfg.SampleCount > s.limits.MaxSamples {
		return fmt.Errorf("%w: sample_count %d above maximum %d", ErrLimitExceeded, cfg.SampleCount, s.limits.MaxSamples)
	}
	if s.limits.MaxHorizonYears > 0 && cfg.HorizonYears > s.limits.MaxHorizonYears {
		return fmt.Errorf("%w: horizon_years %d above maximum %d", ErrLimitExceeded, cfg.HorizonYears, s.limits.MaxHorizonYears)
	}
	return nil
}

// Enqueue stores a queued run and hands it to the workers. When no publisher
// is configured the run executes in-process. A failed publish leaves the run
// queued for the recovery sweep.
func (s *ProjectionService) Enqueue(ctx context.Context, in ProjectionInput, planID int64) (core.ProjectionRun, error) {
	if s.runs == nil {
		return core.ProjectionRun{}, errors.New("projection runs are not configured")
	}
	req, err := s.resolve(ctx, in)
	if err != nil {
		return core.ProjectionRun{}, err
	}

	run := core.ProjectionRun{
		ID:        uuid.NewString(),
		PlanID:    planID,
		Status:    core.RunQueued,
		Request:   req,
		CreatedAt: s.now().UTC(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return core.ProjectionRun{}, fmt.Errorf("store run: %w", err)
	}
	s.metrics.RecordRunTransition(string(core.RunQueued))

	s.logger.InfoContext(ctx, "Projection run queued",
		log.FieldRunID, run.ID,
		log.FieldPlanID, planID,
		log.FieldSamples, req.Config.SampleCount,
		log.FieldHorizon, req.Config.HorizonYears)

	if s.publisher == nil {
		s.dispatchLocal(ctx, run.ID)
		return run, nil
	}

	err = s.publisher.PublishProjectionJob(ctx, run.ID)
	s.metrics.RecordJobPublished(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish projection job",
			log.FieldRunID, run.ID,
			log.FieldError, err)
	}
	return run, nil
}

func (s *ProjectionService) dispatchLocal(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.ExecuteRun(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "In-process projection run failed", log.FieldRunID, id, log.FieldError, err)
		}
	}()
}

// Wait blocks until every in-process run has finished.
func (s *ProjectionService) Wait() {
	s.inflight.Wait()
}

// ExecuteRun moves a queued run through running to done or failed. Runs that
// are no longer queued are left alone, so redelivered jobs are harmless.
// A run interrupted by ctx is put back in the queue and ExecuteRun returns the
// cancellation error.
// Errors are returned only when the store cannot be read or written.
func (s *ProjectionService) ExecuteRun(ctx context.Context, id string) error {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("load run %s: %w", id, err)
	}
	if run.Status != core.RunQueued {
		s.logger.InfoContext(ctx, "Skipping run that is not queued", log.FieldRunID, id, "status", run.Status)
		return nil
	}

	claimed, err := s.runs.MarkRunRunning(ctx, id, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark run %s running: %w", id, err)
	}
	if !claimed {
		s.logger.InfoContext(ctx, "Run already claimed", log.FieldRunID, id)
		return nil
	}
	s.metrics.RecordRunTransition(string(core.RunRunning))

	res, runErr := s.run(ctx, observability.ModeAsync, run.Request)

	// The outcome is recorded even when ctx was cancelled mid-run.
	storeCtx := context.WithoutCancel(ctx)
	if runErr != nil && ctx.Err() != nil {
		// Interrupted by shutdown rather than by the run timeout: the run
		// goes back to the queue for the next worker.
		if _, err := s.runs.RequeueRun(storeCtx, id); err != nil {
			return fmt.Errorf("requeue run %s: %w", id, err)
		}
		s.metrics.RecordRunTransition(string(core.RunQueued))
		s.logger.WarnContext(storeCtx, "Projection run interrupted, requeued", log.FieldRunID, id)
		return fmt.Errorf("run %s interrupted: %w", id, ctx.Err())
	}
	if runErr != nil {
		s.metrics.RecordRunTransition(string(core.RunFailed))
		s.logger.WarnContext(ctx, "Projection run failed", log.FieldRunID, id, log.FieldError, runErr)
		if err := s.runs.FailRun(storeCtx, id, runErr.Error(), s.now().UTC()); err != nil {
			return fmt.Errorf("mark run %s failed: %w", id, err)
		}
		return nil
	}

	if err := s.runs.CompleteRun(storeCtx, id, res, s.now().UTC()); err != nil {
		return fmt.Errorf("complete run %s: %w", id, err)
	}
	s.metrics.RecordRunTransition(string(core.RunDone))

	s.logger.InfoContext(ctx, "Projection run completed",
		log.FieldRunID, id,
		log.FieldSeed, res.Seed,
		log.FieldSuccessProbability, res.Goal.SuccessProbability,
		log.FieldDuration, res.Duration.Milliseconds())

	s.export(storeCtx, run, res)
	return nil
}

func (s *ProjectionService) export(ctx context.Context, run core.ProjectionRun, res *core.ProjectionResult) {
	if s.exporter == nil {
		return
	}
	label := "run " + run.ID
	if run.PlanID != 0 {
		label = fmt.Sprintf("plan %d run %s", run.PlanID, run.ID)
	}
	ref, err := s.exporter.ExportBands(ctx, label, res)
	s.metrics.RecordBandExport(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to export percentile bands", log.FieldRunID, run.ID, log.FieldError, err)
		return
	}
	s.logger.InfoContext(ctx, "Exported percentile bands", log.FieldRunID, run.ID, log.FieldSheetsRef, ref)
}

func (s *ProjectionService) GetRun(ctx context.Context, id string) (core.ProjectionRun, error) {
	if s.runs == nil {
		return core.ProjectionRun{}, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
	}
	return s.runs.GetRun(ctx, id)
}
