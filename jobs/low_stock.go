package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	jobmetrics "github.com/exhibit-pos/exhibit-pos/internal/jobs"
)

const defaultLowStockLimit = 500

// LowStockSource lists products at or below their reorder level.
type LowStockSource interface {
	LowStock(ctx context.Context, limit int) ([]catalog.Product, error)
}

// LowStockScanJob reports low-stock products and publishes the count as a gauge.
type LowStockScanJob struct {
	source  LowStockSource
	log     *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &LowStockScanJob{source: source, log: logger, metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	var payload LowStockScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
		}
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = defaultLowStockLimit
	}

	products, err := j.source.LowStock(ctx, limit)
	if err != nil {
		return err
	}
	j.metrics.SetLowStock(len(products))

	log := j.logger()
	for _, p := range products {
		log.Warn("low stock",
			slog.String("sku", p.SKU),
			slog.String("name", p.Name),
			slog.Int("stock", p.StockQuantity),
			slog.Int("min", p.MinStockLevel),
		)
	}
	log.Info("low stock scan", slog.Int("products", len(products)), slog.String("reason", payload.Reason))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.log != nil {
		return j.log.With("job", TaskLowStockScan)
	}
	return slog.Default().With("job", TaskLowStockScan)
}
