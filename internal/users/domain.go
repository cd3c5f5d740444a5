package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
)

// User represents a staff account.
type User struct {
	ID           uuid.UUID         `json:"id"`
	Username     string            `json:"username"`
	FullName     string            `json:"full_name"`
	Phone        string            `json:"phone,omitempty"`
	Role         rbac.Role         `json:"role"`
	Permissions  []rbac.Permission `json:"permissions"`
	PasswordHash string            `json:"-"`
	IsActive     bool              `json:"is_active"`
	LastLogin    *time.Time        `json:"last_login,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Principal converts the account into an authorization principal.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{
		UserID:      u.ID,
		Username:    u.Username,
		FullName:    u.FullName,
		Role:        u.Role,
		Active:      u.IsActive,
		Permissions: rbac.Effective(u.Role, u.Permissions),
	}
}

// Profile is the user as returned to clients, with effective permissions.
type Profile struct {
	User
	EffectivePermissions []rbac.Permission `json:"effective_permissions"`
}

// NewProfile builds a Profile.
func NewProfile(u User) Profile {
	perms := u.Principal().Permissions.Sorted()
	if u.Role == rbac.RoleSuperAdmin {
		perms = rbac.AllPermissions()
	}
	return Profile{User: u, EffectivePermissions: perms}
}

// CreateInput carries a new account.
type CreateInput struct {
	Username    string   `json:"username" validate:"required,min=3,max=64"`
	FullName    string   `json:"full_name" validate:"required,max=128"`
	Phone       string   `json:"phone" validate:"omitempty,max=32"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	Role        string   `json:"role" validate:"required"`
	Permissions []string `json:"permissions"`
}

// PermissionsInput replaces the explicit grants of a user.
type PermissionsInput struct {
	Permissions []string `json:"permissions" validate:"required"`
}
