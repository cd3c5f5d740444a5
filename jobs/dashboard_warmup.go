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

// DashboardWarmer precomputes cached dashboard statistics.
type DashboardWarmer interface {
	Warm(ctx context.Context) error
}

// DashboardWarmupJob refreshes the dashboard cache ahead of requests.
type DashboardWarmupJob struct {
	dashboard DashboardWarmer
	log       *slog.Logger
	metrics   *jobmetrics.Metrics
	clock     func() time.Time
	maxLag    time.Duration
}

// NewDashboardWarmupJob constructs the job.
func NewDashboardWarmupJob(dashboard DashboardWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &DashboardWarmupJob{
		dashboard: dashboard,
		log:       logger,
		metrics:   metrics,
		clock:     time.Now,
		maxLag:    10 * time.Minute,
	}
}

// Handle executes the warmup. Tasks scheduled long ago are dropped since a
// newer warmup will already have run.
func (j *DashboardWarmupJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskDashboardWarmup)
	defer func() { err = tracker.End(err) }()

	var payload DashboardWarmupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
		}
	}
	log := j.logger()
	if !payload.ScheduledFor.IsZero() && j.clock().Sub(payload.ScheduledFor) > j.maxLag {
		log.Info("skip stale warmup", slog.Time("scheduled_for", payload.ScheduledFor))
		return nil
	}
	if j.dashboard == nil {
		return nil
	}
	start := j.clock()
	if err := j.dashboard.Warm(ctx); err != nil {
		return err
	}
	log.Info("dashboard warmed", slog.Duration("took", j.clock().Sub(start)))
	return nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.log != nil {
		return j.log.With("job", TaskDashboardWarmup)
	}
	return slog.Default().With("job", TaskDashboardWarmup)
}
