package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]User
	history map[uuid.UUID]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[uuid.UUID]User), history: make(map[uuid.UUID]bool)}
}

func (m *memoryRepo) ListUsers(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) GetUser(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return User{}, ErrUsernameTaken
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) UpdatePermissions(_ context.Context, id uuid.UUID, perms []rbac.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.Permissions = perms
	m.users[id] = u
	return nil
}

func (m *memoryRepo) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.history[id] {
		return ErrUserHasHistory
	}
	delete(m.users, id)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *memoryRepo, *recordingAudit) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit)
	svc.hashCost = bcrypt.MinCost
	return svc, repo, audit
}

var superAdmin = rbac.Principal{UserID: uuid.New(), Username: "root", Role: rbac.RoleSuperAdmin, Active: true}

func TestCreateUserHashesPasswordAndAudits(t *testing.T) {
	svc, _, audit := newTestService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, superAdmin, CreateInput{
		Username: "  cashier1 ", FullName: "Front Desk", Password: "s3cretpass", Role: "Cashier", Permissions: []string{"reports"},
	})
	require.NoError(t, err)
	require.Equal(t, "cashier1", u.Username)
	require.Equal(t, rbac.RoleCashier, u.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cretpass")))
	require.Len(t, audit.logs, 1)

	p, err := svc.LoadPrincipal(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, p.Can(rbac.PermPOS))
	require.True(t, p.Can(rbac.PermReports))
	require.False(t, p.Can(rbac.PermUserManagement))

	_, err = svc.CreateUser(ctx, superAdmin, CreateInput{Username: "cashier1", FullName: "Dup", Password: "anotherpass", Role: "cashier"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, superAdmin, CreateInput{Username: "ab", FullName: "x", Password: "short", Role: "cashier"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	_, err = svc.CreateUser(ctx, superAdmin, CreateInput{Username: "valid", FullName: "x", Password: "longenough", Role: "owner"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	admin := rbac.Principal{UserID: uuid.New(), Role: rbac.RoleAdmin, Active: true}
	_, err = svc.CreateUser(ctx, admin, CreateInput{Username: "boss", FullName: "x", Password: "longenough", Role: "super_admin"})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestDeleteUserGuards(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	rootUser := User{ID: superAdmin.UserID, Username: "root", Role: rbac.RoleSuperAdmin, IsActive: true}
	repo.users[rootUser.ID] = rootUser

	require.ErrorIs(t, svc.DeleteUser(ctx, superAdmin, superAdmin.UserID), httpx.ErrValidation)

	admin := rbac.Principal{UserID: uuid.New(), Role: rbac.RoleAdmin, Active: true}
	require.ErrorIs(t, svc.DeleteUser(ctx, admin, rootUser.ID), httpx.ErrForbidden)

	u, err := svc.CreateUser(ctx, superAdmin, CreateInput{Username: "temp", FullName: "Temp", Password: "longenough", Role: "inventory"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, admin, u.ID))
	_, err = svc.GetUser(ctx, u.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdatePermissions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, superAdmin, CreateInput{Username: "stock", FullName: "Stock", Password: "longenough", Role: "inventory"})
	require.NoError(t, err)

	updated, err := svc.UpdatePermissions(ctx, superAdmin, u.ID, PermissionsInput{Permissions: []string{"pos", "reports"}})
	require.NoError(t, err)
	require.Equal(t, []rbac.Permission{rbac.PermPOS, rbac.PermReports}, updated.Permissions)

	profile := NewProfile(updated)
	require.Contains(t, profile.EffectivePermissions, rbac.PermProducts)
	require.Contains(t, profile.EffectivePermissions, rbac.PermReports)

	_, err = svc.UpdatePermissions(ctx, superAdmin, u.ID, PermissionsInput{Permissions: []string{"everything"}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteUserWithHistoryConflicts(t *testing.T) {
	svc, repo, audit := newTestService()
	ctx := context.Background()
	admin := rbac.Principal{UserID: uuid.New(), Role: rbac.RoleAdmin, Active: true}

	u, err := svc.CreateUser(ctx, superAdmin, CreateInput{Username: "seller", FullName: "Seller", Password: "longenough", Role: "cashier"})
	require.NoError(t, err)
	repo.history[u.ID] = true
	recorded := len(audit.logs)

	err = svc.DeleteUser(ctx, admin, u.ID)
	require.ErrorIs(t, err, httpx.ErrConflict)
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, err)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, audit.logs, recorded)
	_, err = svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
}
