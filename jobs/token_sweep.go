package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TokenSweeper is the slice of the identity repository the sweep needs.
type TokenSweeper interface {
	ActiveCount(ctx context.Context) (int64, error)
	MarkExpiredRevoked(ctx context.Context, now time.Time) (int64, error)
}

// TokenSweepJob flags refresh tokens that expired without being revoked.
// Rows are never deleted; the sweep only closes them out so the audit trail
// distinguishes live tokens from dead ones at a glance.
type TokenSweepJob struct {
	sweeper TokenSweeper
	logger  *slog.Logger
	metrics *Metrics
}

// NewTokenSweepJob constructs the sweep job. A nil metrics disables
// instrumentation.
func NewTokenSweepJob(sweeper TokenSweeper, logger *slog.Logger, metrics *Metrics) *TokenSweepJob {
	return &TokenSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes one sweep task.
func (j *TokenSweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.metrics.Track(TaskTokenSweep)

	var payload TokenSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("jobs: unmarshal token sweep payload: %w", err))
	}

	if payload.DryRun {
		count, err := j.sweeper.ActiveCount(ctx)
		if err != nil {
			return tracker.End(fmt.Errorf("jobs: token sweep dry run: %w", err))
		}
		j.logger.Info("token sweep dry run", slog.Int64("active_tokens", count))
		return tracker.End(nil)
	}

	flagged, err := j.sweeper.MarkExpiredRevoked(ctx, time.Now())
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: token sweep: %w", err))
	}
	j.metrics.AddFlagged(flagged)
	j.logger.Info("token sweep completed", slog.Int64("flagged", flagged))
	return tracker.End(nil)
}
