// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"
	"errors"
	"time"

	"patrimonio/internal/core"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

type (
	LifeEventStore interface {
		ListLifeEvents(ctx context.Context) ([]core.LifeEvent, error)
		CreateLifeEvent(ctx context.Context, e core.LifeEvent) (core.LifeEvent, error)
		DeleteLifeEvent(ctx context.Context, id int64) error
	}

	PlanStore interface {
		SavePlan(ctx context.Context, p core.Plan) (core.Plan, error)
		GetPlan(ctx context.Context, id int64) (core.Plan, error)
		ListPlans(ctx context.Context) ([]core.Plan, error)
		MarkPlanProjected(ctx context.Context, id int64, at time.Time) error
	}

	RunStore interface {
		CreateRun(ctx context.Context, run core.ProjectionRun) error
		GetRun(ctx context.Context, id string) (core.ProjectionRun, error)
		// ListQueuedRuns returns runs still queued that were created before the cutoff.
		ListQueuedRuns(ctx context.Context, before time.Time, limit int) ([]core.ProjectionRun, error)
		// MarkRunRunning moves a queued run to running. It returns false when
		// the run was not queued anymore.
		MarkRunRunning(ctx context.Context, id string, at time.Time) (bool, error)
		// RequeueRun moves a running run back to queued. It returns false when
		// the run was not running.
		RequeueRun(ctx context.Context, id string) (bool, error)
		// RequeueStaleRuns moves runs that started before the cutoff and never
		// finished back to queued.
		RequeueStaleRuns(ctx context.Context, startedBefore time.Time) (int, error)
		CompleteRun(ctx context.Context, id string, result *core.ProjectionResult, at time.Time) error
		FailRun(ctx context.Context, id string, reason string, at time.Time) error
	}

	// BandExporter publishes the bands of a finished run somewhere people read them.
	BandExporter interface {
		ExportBands(ctx context.Context, label string, result *core.ProjectionResult) (ref string, err error)
	}

	// JobPublisher hands a queued run to the asynchronous workers.
	JobPublisher interface {
		PublishProjectionJob(ctx context.Context, runID string) error
	}
)
