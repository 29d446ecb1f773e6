// Package worker executes queued projection runs delivered over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"patrimonio/internal/amqp"
	"patrimonio/internal/log"
	"patrimonio/internal/ports"
)

// RunExecutor executes one queued run by id.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, id string) error
}

// ProjectionWorker handles projection job messages and recovers runs whose
// message was lost or whose worker died mid-run.
type ProjectionWorker struct {
	runs       ports.RunStore
	executor   RunExecutor
	batchSize  int
	staleAfter time.Duration
	stuckAfter time.Duration
	logger     *log.Logger
}

// NewProjectionWorker builds a worker. Runs queued for longer than staleAfter
// are picked up by the sweep, batchSize at a time. Runs still running
// stuckAfter after they started are put back in the queue first; zero
// disables that step.
func NewProjectionWorker(runs ports.RunStore, executor RunExecutor, batchSize int, staleAfter, stuckAfter time.Duration, logger *log.Logger) *ProjectionWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ProjectionWorker{
		runs:       runs,
		executor:   executor,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		stuckAfter: stuckAfter,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleProjectionJob processes a single projection job message from AMQP.
// Unknown runs are reported as permanent so the message is dropped.
func (w *ProjectionWorker) HandleProjectionJob(ctx context.Context, msg *amqp.ProjectionJobMessage) error {
	w.logger.InfoContext(ctx, "Processing projection job",
		log.FieldRunID, msg.RunID,
		"published_at", msg.Timestamp)

	if err := w.executor.ExecuteRun(ctx, msg.RunID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return amqp.Permanent(err)
		}
		return fmt.Errorf("execute run: %w", err)
	}
	return nil
}

// ProcessQueuedRuns executes runs that have been queued longer than the
// stale threshold. This is a backup mechanism in case AMQP messages are lost
// or a worker crashed while running.
func (w *ProjectionWorker) ProcessQueuedRuns(ctx context.Context, now time.Time) (int, error) {
	return w.processQueued(ctx, now, w.batchSize)
}

// StartupCheck recovers queued runs at worker startup with a larger batch.
func (w *ProjectionWorker) StartupCheck(ctx context.Context) error {
	n, err := w.processQueued(ctx, time.Now(), w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	if n == 0 {
		w.logger.InfoContext(ctx, "No stale queued runs found on startup")
	}
	return nil
}

func (w *ProjectionWorker) processQueued(ctx context.Context, now time.Time, limit int) (int, error) {
	if w.stuckAfter > 0 {
		n, err := w.runs.RequeueStaleRuns(ctx, now.Add(-w.stuckAfter))
		if err != nil {
			return 0, fmt.Errorf("requeue stuck runs: %w", err)
		}
		if n > 0 {
			w.logger.WarnContext(ctx, "Requeued stuck running runs", "count", n)
		}
	}

	queued, err := w.runs.ListQueuedRuns(ctx, now.Add(-w.staleAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("list queued runs: %w", err)
	}
	if len(queued) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Recovering queued runs", "count", len(queued))

	executed, failed := 0, 0
	for _, run := range queued {
		if ctx.Err() != nil {
			return executed, ctx.Err()
		}
		if err := w.executor.ExecuteRun(ctx, run.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to execute queued run", log.FieldRunID, run.ID, log.FieldError, err)
			failed++
			continue
		}
		executed++
	}

	w.logger.InfoContext(ctx, "Queued run recovery completed",
		"total", len(queued),
		"executed", executed,
		"errors", failed)
	return executed, nil
}

// RunSweep calls ProcessQueuedRuns every interval until ctx is cancelled.
func (w *ProjectionWorker) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := w.ProcessQueuedRuns(ctx, now); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Queued run sweep failed", log.FieldError, err)
			}
		}
	}
}
