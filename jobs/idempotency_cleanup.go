package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

const (
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

	// idempotencyRetention is how long a processed key is kept before the
	// nightly prune removes it. Keys are released inline on completion;
	// this sweep only catches keys orphaned by a crash mid-submission.
	idempotencyRetention = 24 * time.Hour
)

// IdempotencyCleanupPayload carries scheduling metadata.
type IdempotencyCleanupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for the nightly prune.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleaner removes idempotency keys past their retention.
type IdempotencyCleaner struct {
	store interface {
		Cleanup(ctx context.Context, olderThan time.Duration) error
	}
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleaner constructs an IdempotencyCleaner.
func NewIdempotencyCleaner(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleaner {
	return &IdempotencyCleaner{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := c.metrics.Track(TaskIdempotencyCleanup)
	return tracker.End(c.clean(ctx))
}

func (c *IdempotencyCleaner) clean(ctx context.Context) error {
	if err := c.store.Cleanup(ctx, idempotencyRetention); err != nil {
		return fmt.Errorf("jobs: idempotency cleanup: %w", err)
	}
	c.logger.Info("idempotency keys pruned", slog.Duration("retention", idempotencyRetention))
	return nil
}
