package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/exhibit-pos/exhibit-pos/internal/jobs"
)

// DefaultIdempotencyRetention keeps sale keys for a day.
const DefaultIdempotencyRetention = 24 * time.Hour

// KeyPurger removes idempotency keys older than the retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired Idempotency-Key records.
type IdempotencyCleanupJob struct {
	store   KeyPurger
	log     *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{store: store, log: logger.With("job", TaskIdempotencyCleanup), metrics: metrics}
}

// Handle executes the purge.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	payload := IdempotencyCleanupPayload{OlderThan: DefaultIdempotencyRetention}
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
		}
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = DefaultIdempotencyRetention
	}
	n, err := j.store.Cleanup(ctx, payload.OlderThan)
	if err != nil {
		return err
	}
	j.metrics.AddPurged(n)
	j.log.Info("idempotency keys purged", slog.Int64("deleted", n))
	return nil
}
