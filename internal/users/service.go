package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdatePermissions(ctx context.Context, id uuid.UUID, perms []rbac.Permission) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	validator *validator.Validate
	hashCost  int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, validator: validator.New(), hashCost: bcrypt.DefaultCost}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// LoadPrincipal satisfies rbac.PrincipalSource.
func (s *Service) LoadPrincipal(ctx context.Context, id uuid.UUID) (rbac.Principal, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return rbac.Principal{}, err
	}
	return u.Principal(), nil
}

// CreateUser registers a staff account. Only a super admin may create
// another super admin.
func (s *Service) CreateUser(ctx context.Context, actor rbac.Principal, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validator.Struct(in); err != nil {
		return User{}, err
	}
	role := rbac.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, in.Role)
	}
	if role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return User{}, fmt.Errorf("%w: only a super admin can create a super admin", httpx.ErrForbidden)
	}
	perms, err := rbac.ParsePermissions(in.Permissions)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.CreateUser(ctx, User{
		ID:           uuid.New(),
		Username:     in.Username,
		FullName:     in.FullName,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		Permissions:  perms,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.record(ctx, actor, "users:create", u.ID, map[string]any{"username": u.Username, "role": u.Role})
	return u, nil
}

// UpdatePermissions replaces the explicit grants of a user.
func (s *Service) UpdatePermissions(ctx context.Context, actor rbac.Principal, id uuid.UUID, in PermissionsInput) (User, error) {
	perms, err := rbac.ParsePermissions(in.Permissions)
	if err != nil {
		return User{}, err
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if target.Role == rbac.RoleSuperAdmin && actor.Role != rbac.RoleSuperAdmin {
		return User{}, fmt.Errorf("%w: cannot modify a super admin", httpx.ErrForbidden)
	}
	if err := s.repo.UpdatePermissions(ctx, id, perms); err != nil {
		return User{}, fmt.Errorf("update permissions: %w", err)
	}
	target.Permissions = perms
	s.record(ctx, actor, "users:permissions", id, map[string]any{"permissions": perms})
	return target, nil
}

// DeleteUser removes an account. Users cannot delete themselves and super
// admins cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, actor rbac.Principal, id uuid.UUID) error {
	if actor.UserID == id {
		return fmt.Errorf("%w: cannot delete your own account", httpx.ErrValidation)
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == rbac.RoleSuperAdmin {
		return fmt.Errorf("%w: super admin accounts cannot be deleted", httpx.ErrForbidden)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.record(ctx, actor, "users:delete", id, map[string]any{"username": target.Username})
	return nil
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "user",
		EntityID: id.String(),
		Meta:     meta,
	})
}
