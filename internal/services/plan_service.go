package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
)

// PlanService manages saved plans and turns them into projection runs.
type PlanService struct {
	store       ports.PlanStore
	projections *ProjectionService
	logger      *log.Logger
	now         func() time.Time
}

func NewPlanService(store ports.PlanStore, projections *ProjectionService, logger *log.Logger) *PlanService {
	if logger == nil {
		logger = log.Default()
	}
	return &PlanService{
		store:       store,
		projections: projections,
		logger:      logger.WithComponent(log.ComponentPlans),
		now:         time.Now,
	}
}

// Create validates and stores a new plan. The config is stored without a
// seed so every refresh draws fresh paths.
func (s *PlanService) Create(ctx context.Context, p core.Plan) (core.Plan, error) {
	p.ID = 0
	p.Name = strings.TrimSpace(p.Name)
	if p.Cadence == "" {
		p.Cadence = core.Never
	}
	p.Config = p.Config.WithDefaults()
	p.Config.Seed = nil
	p.LastProjectedAt = time.Time{}
	p.CreatedAt = s.now().UTC()
	if err := p.Validate(); err != nil {
		return core.Plan{}, err
	}
	if s.projections != nil {
		if err := s.projections.checkLimits(p.Config); err != nil {
			return core.Plan{}, err
		}
	}

	saved, err := s.store.SavePlan(ctx, p)
	if err != nil {
		return core.Plan{}, fmt.Errorf("save plan: %w", err)
	}
	s.logger.InfoContext(ctx, "Plan saved",
		log.FieldPlanID, saved.ID,
		log.FieldOperation, log.OpCreate,
		"cadence", saved.Cadence)
	return saved, nil
}

func (s *PlanService) Get(ctx context.Context, id int64) (core.Plan, error) {
	return s.store.GetPlan(ctx, id)
}

func (s *PlanService) List(ctx context.Context) ([]core.Plan, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// Project queues a run for the plan with id and records when it happened.
func (s *PlanService) Project(ctx context.Context, id int64) (core.ProjectionRun, error) {
	p, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return core.ProjectionRun{}, err
	}
	return s.project(ctx, p, s.now())
}

func (s *PlanService) project(ctx context.Context, p core.Plan, now time.Time) (core.ProjectionRun, error) {
	if s.projections == nil {
		return core.ProjectionRun{}, fmt.Errorf("plan %d: projections are not configured", p.ID)
	}
	cfg := p.Config.Clone()
	// A plan without a start year projects from the year it runs in.
	if cfg.StartYear == 0 {
		cfg.StartYear = now.Year()
	}
	run, err := s.projections.Enqueue(ctx, ProjectionInput{Config: cfg, UseSavedEvents: p.UseSavedEvents}, p.ID)
	if err != nil {
		return core.ProjectionRun{}, fmt.Errorf("enqueue plan %d: %w", p.ID, err)
	}
	if err := s.store.MarkPlanProjected(ctx, p.ID, now.UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record plan projection time",
			log.FieldPlanID, p.ID,
			log.FieldError, err)
	}
	return run, nil
}
