package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
)

const requestTimeout = 5 * time.Second

// Handler serves dashboard and report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountAnalyticsRoutes registers /analytics.
func (h *Handler) MountAnalyticsRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermDashboard)).Get("/dashboard", h.stats)
}

// MountReportRoutes registers /reports.
func (h *Handler) MountReportRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermDayEndClose, rbac.PermReports)).Get("/day-end", h.dayEnd)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.Error("dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) dayEnd(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDayEnd(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.DayEnd(ctx, filter)
	if err != nil {
		h.logger.Error("day-end report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseDayEnd(r *http.Request) (DayEndFilter, error) {
	var f DayEndFilter
	q := r.URL.Query()
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
		}
		f.Date = d
	}
	if raw := q.Get("exhibition_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, fmt.Errorf("%w: invalid exhibition_id", httpx.ErrValidation)
		}
		f.ExhibitionID = &id
	}
	return f, nil
}
