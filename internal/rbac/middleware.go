package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Sessions *shared.SessionManager
	Service  *Service
	Logger   *slog.Logger
}

// Authenticate resolves the bearer token into a Principal and stores both the
// session and the principal in the request context. Requests without a valid
// token are rejected with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := m.Sessions.Resolve(ctx, shared.BearerToken(r))
		if err != nil {
			m.fail(w, "rbac resolve session", err)
			return
		}
		principal, err := m.Service.Resolve(ctx, sess.UserID)
		if err != nil {
			m.fail(w, "rbac resolve principal", err)
			return
		}
		ctx = shared.ContextWithSession(ctx, sess)
		ctx = ContextWithPrincipal(ctx, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.require("rbac require any", func(p Principal) bool { return p.CanAny(perms...) })
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.require("rbac require all", func(p Principal) bool { return p.CanAll(perms...) })
}

func (m Middleware) require(op string, allowed func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !allowed(principal) {
				if m.Logger != nil {
					m.Logger.Debug(op+" denied", slog.String("user", principal.Username), slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrUnauthorized) && m.Logger != nil {
		m.Logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
