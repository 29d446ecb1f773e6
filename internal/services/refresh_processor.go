package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"patrimonio/internal/log"
	"patrimonio/internal/observability"
)

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// Interval is how often saved plans are checked (default: 1h)
	Interval time.Duration
}

func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{Interval: time.Hour}
}

// RefreshProcessor periodically queues projections for plans whose cadence
// says they are due.
type RefreshProcessor struct {
	plans   *PlanService
	metrics *observability.Metrics
	config  RefreshProcessorConfig
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRefreshProcessor(plans *PlanService, metrics *observability.Metrics, config RefreshProcessorConfig, logger *log.Logger) *RefreshProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RefreshProcessor{
		plans:   plans,
		metrics: metrics,
		config:  config,
		logger:  logger.WithComponent(log.ComponentRefresh),
	}
}

// ProcessDuePlans queues a run for every due plan and returns how many were
// queued. A failing plan is logged and skipped.
func (p *RefreshProcessor) ProcessDuePlans(ctx context.Context, now time.Time) (int, error) {
	if p.plans == nil {
		return 0, errors.New("processor not properly initialized")
	}

	plans, err := p.plans.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list plans: %w", err)
	}

	p.logger.InfoContext(ctx, "Checking saved plans",
		"total", len(plans),
		"processing_date", now.Format(time.DateOnly))

	processed := 0
	for _, plan := range plans {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		checker, err := GetCadenceChecker(plan.Cadence)
		if err != nil {
			p.logger.ErrorContext(ctx, "Skipping plan with unknown cadence",
				log.FieldPlanID, plan.ID,
				log.FieldError, err)
			continue
		}
		if !checker.IsDue(plan.LastProjectedAt, now, plan.CreatedAt) {
			continue
		}

		run, err := p.plans.project(ctx, plan, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to queue plan projection",
				log.FieldPlanID, plan.ID,
				log.FieldError, err)
			continue
		}

		processed++
		p.metrics.RecordPlanRefreshed()
		p.logger.InfoContext(ctx, "Queued plan projection",
			log.FieldPlanID, plan.ID,
			log.FieldRunID, run.ID,
			"cadence", plan.Cadence)
	}

	p.logger.InfoContext(ctx, "Plan refresh complete",
		"queued", processed,
		"total_checked", len(plans))
	return processed, nil
}

// Start begins the refresh loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	p.logger.InfoContext(ctx, "Refresh processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Refresh processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}
}

func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RefreshProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	p.tick(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *RefreshProcessor) tick(ctx context.Context) {
	if _, err := p.ProcessDuePlans(ctx, time.Now()); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Plan refresh failed", log.FieldError, err)
	}
}
