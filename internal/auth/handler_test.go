package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/exhibit-pos/exhibit-pos/internal/auth"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
	"github.com/exhibit-pos/exhibit-pos/internal/users"
	_ "github.com/exhibit-pos/exhibit-pos/testing"
)

type stubRepo struct {
	user    *users.User
	touched bool
}

func (s *stubRepo) FindByUsername(_ context.Context, username string) (users.User, error) {
	if s.user == nil || s.user.Username != username {
		return users.User{}, httpx.ErrNotFound
	}
	return *s.user, nil
}

func (s *stubRepo) GetUser(_ context.Context, id uuid.UUID) (users.User, error) {
	if s.user == nil || s.user.ID != id {
		return users.User{}, httpx.ErrNotFound
	}
	return *s.user, nil
}

func (s *stubRepo) TouchLastLogin(context.Context, uuid.UUID, time.Time) error {
	s.touched = true
	return nil
}

func (s *stubRepo) LoadPrincipal(ctx context.Context, id uuid.UUID) (rbac.Principal, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	return u.Principal(), nil
}

func newRouter(t *testing.T, repo *stubRepo) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "secret", time.Hour)
	mw := rbac.Middleware{Sessions: sessionManager, Service: rbac.NewService(repo)}
	handler := auth.NewHandler(nil, auth.NewService(repo, sessionManager, nil), mw)
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

func cashier(t *testing.T, password string) *users.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &users.User{ID: uuid.New(), Username: "cashier1", FullName: "Front Desk", Role: rbac.RoleCashier, PasswordHash: string(hashed), IsActive: true}
}

func post(h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newRouter(t, &stubRepo{user: cashier(t, "correctpass")})

	res := post(h, "/auth/login", `{"username":"cashier1","password":"wrongpass"}`, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = post(h, "/auth/login", `{"username":"nobody","password":"correctpass"}`, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = post(h, "/auth/login", `{"username":"cashier1"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	u := cashier(t, "correctpass")
	u.IsActive = false
	h := newRouter(t, &stubRepo{user: u})

	res := post(h, "/auth/login", `{"username":"cashier1","password":"correctpass"}`, "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginMeLogout(t *testing.T) {
	repo := &stubRepo{user: cashier(t, "correctpass")}
	h := newRouter(t, repo)

	res := post(h, "/auth/login", `{"username":"cashier1","password":"correctpass"}`, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.True(t, repo.touched)

	var token auth.TokenResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &token))
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, "bearer", token.TokenType)
	require.Equal(t, int64(3600), token.ExpiresIn)
	require.Contains(t, token.User.EffectivePermissions, rbac.PermPOS)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	me := httptest.NewRecorder()
	h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), `"username":"cashier1"`)
	require.NotContains(t, me.Body.String(), "password")

	res = post(h, "/auth/logout", "", token.AccessToken)
	require.Equal(t, http.StatusNoContent, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	me = httptest.NewRecorder()
	h.ServeHTTP(me, req)
	require.Equal(t, http.StatusUnauthorized, me.Code)
}
