package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/exhibit-pos/exhibit-pos/internal/auth"
	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	"github.com/exhibit-pos/exhibit-pos/internal/dashboard"
	"github.com/exhibit-pos/exhibit-pos/internal/exhibitions"
	"github.com/exhibit-pos/exhibit-pos/internal/observability"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/sales"
	"github.com/exhibit-pos/exhibit-pos/internal/users"
	"github.com/exhibit-pos/exhibit-pos/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	CatalogHandler     *catalog.Handler
	ExhibitionsHandler *exhibitions.Handler
	SalesHandler       *sales.Handler
	DashboardHandler   *dashboard.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	HealthChecks       map[string]Pinger
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/health", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.Authenticate)

			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.CatalogHandler != nil {
				r.Route("/products", params.CatalogHandler.MountProductRoutes)
				r.Route("/categories", params.CatalogHandler.MountCategoryRoutes)
			}
			if params.ExhibitionsHandler != nil {
				r.Route("/exhibitions", params.ExhibitionsHandler.MountRoutes)
				r.Route("/inventory", params.ExhibitionsHandler.MountInventoryRoutes)
			}
			if params.SalesHandler != nil {
				r.Route("/sales", params.SalesHandler.MountRoutes)
			}
			if params.DashboardHandler != nil {
				r.Route("/analytics", params.DashboardHandler.MountAnalyticsRoutes)
				r.Route("/reports", params.DashboardHandler.MountReportRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	return r
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		out := healthStatus{Status: "ok"}
		code := http.StatusOK
		if len(checks) > 0 {
			out.Checks = make(map[string]string, len(checks))
		}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				out.Checks[name] = "down"
				out.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "up"
		}
		httpx.JSON(w, code, out)
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
