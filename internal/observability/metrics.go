package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/sales"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	salesTotal      *prometheus.CounterVec
	salesFailed     *prometheus.CounterVec
	salesAmount     *prometheus.HistogramVec
	compensations   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exhibitpos_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exhibitpos_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	salesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exhibitpos_sales_total",
		Help: "Jumlah penjualan berdasarkan channel dan status.",
	}, []string{"channel", "status"})
	salesFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exhibitpos_sales_failed_total",
		Help: "Jumlah penjualan yang ditolak berdasarkan alasan.",
	}, []string{"reason"})
	salesAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exhibitpos_sale_amount",
		Help:    "Distribusi nilai total penjualan.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"channel"})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exhibitpos_stock_compensations_total",
		Help: "Jumlah kompensasi stok berdasarkan hasil.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, salesTotal, salesFailed, salesAmount, compensations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		salesTotal:      salesTotal,
		salesFailed:     salesFailed,
		salesAmount:     salesAmount,
		compensations:   compensations,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// SaleCommitted mencatat penjualan yang berhasil.
func (m *Metrics) SaleCommitted(_ context.Context, sale sales.Sale) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(string(sale.Channel), string(sale.Status)).Inc()
	m.salesAmount.WithLabelValues(string(sale.Channel)).Observe(sale.TotalAmount.InexactFloat64())
}

// SaleCancelled mencatat pembatalan penjualan.
func (m *Metrics) SaleCancelled(_ context.Context, sale sales.Sale) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(string(sale.Channel), string(sales.StatusCancelled)).Inc()
}

// SaleFailed mencatat penjualan yang gagal berdasarkan kategori error.
func (m *Metrics) SaleFailed(_ context.Context, err error) {
	if m == nil {
		return
	}
	m.salesFailed.WithLabelValues(failureReason(err)).Inc()
}

// Compensated mencatat hasil kompensasi stok.
func (m *Metrics) Compensated(lines int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.compensations.WithLabelValues(result).Add(float64(lines))
}

var _ sales.Listener = (*Metrics)(nil)

func failureReason(err error) string {
	switch {
	case errors.Is(err, httpx.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, httpx.ErrNotFound):
		return "not_found"
	case errors.Is(err, httpx.ErrValidation):
		return "validation"
	case errors.Is(err, httpx.ErrForbidden), errors.Is(err, httpx.ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, httpx.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
