package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	jobmetrics "github.com/exhibit-pos/exhibit-pos/internal/jobs"
	"github.com/exhibit-pos/exhibit-pos/internal/sales"
	"github.com/exhibit-pos/exhibit-pos/jobs"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type lowStockSource struct {
	products []catalog.Product
	limit    int
	err      error
}

func (s *lowStockSource) LowStock(_ context.Context, limit int) ([]catalog.Product, error) {
	s.limit = limit
	return s.products, s.err
}

func TestLowStockScanSetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	source := &lowStockSource{products: []catalog.Product{
		{SKU: "CH-1", Name: "Chair", StockQuantity: 2, MinStockLevel: 10},
		{SKU: "LM-1", Name: "Lamp", StockQuantity: 0, MinStockLevel: 5},
	}}
	job := jobs.NewLowStockScanJob(source, quiet, metrics)

	task, err := jobs.NewLowStockScanTask(0, "test")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 500, source.limit)
	count, err := testutil.GatherAndCount(reg, "exhibitpos_low_stock_products")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "exhibitpos_low_stock_products" {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestLowStockScanFailureCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := jobs.NewLowStockScanJob(&lowStockSource{err: errors.New("db down")}, quiet, metrics)

	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskLowStockScan, nil))
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "exhibitpos_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLowStockScanRejectsBadPayload(t *testing.T) {
	job := jobs.NewLowStockScanJob(&lowStockSource{}, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type warmer struct{ calls int }

func (w *warmer) Warm(context.Context) error {
	w.calls++
	return nil
}

func TestDashboardWarmupSkipsStaleTasks(t *testing.T) {
	w := &warmer{}
	job := jobs.NewDashboardWarmupJob(w, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	fresh, err := jobs.NewDashboardWarmupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), fresh))
	assert.Equal(t, 1, w.calls)

	stale, err := jobs.NewDashboardWarmupTask(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), stale))
	assert.Equal(t, 1, w.calls)
}

type purger struct {
	olderThan time.Duration
	deleted   int64
}

func (p *purger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.olderThan = olderThan
	return p.deleted, nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := &purger{deleted: 4}
	job := jobs.NewIdempotencyCleanupJob(p, quiet, jobmetrics.NewMetrics(reg))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskIdempotencyCleanup, nil)))
	assert.Equal(t, jobs.DefaultIdempotencyRetention, p.olderThan)

	task, err := jobs.NewIdempotencyCleanupTask(time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, time.Hour, p.olderThan)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func TestClientSchedulesScanAfterSale(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := jobs.NewClientWith(enq, quiet)

	var listener sales.Listener = client
	listener.SaleCommitted(context.Background(), sales.Sale{SaleNumber: "SALE-20261018-0000ABCD"})
	listener.SaleFailed(context.Background(), errors.New("boom"))

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, jobs.TaskLowStockScan, enq.tasks[0].Type())
	assert.Contains(t, string(enq.tasks[0].Payload()), "SALE-20261018-0000ABCD")
}

func TestClientIgnoresDuplicateScan(t *testing.T) {
	client := jobs.NewClientWith(&recordingEnqueuer{err: asynq.ErrDuplicateTask}, quiet)
	client.SaleCancelled(context.Background(), sales.Sale{SaleNumber: "SALE-1"})
}

type inspector struct {
	info *asynq.QueueInfo
	err  error
}

func (i inspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return i.info, i.err }

func TestHealthReportsQueueDepth(t *testing.T) {
	r := chi.NewRouter()
	jobs.NewHandler(inspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3}}, quiet).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"failed":0}`, rec.Body.String())

	r = chi.NewRouter()
	jobs.NewHandler(inspector{err: errors.New("redis")}, quiet).MountRoutes(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
