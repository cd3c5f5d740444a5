package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/db"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
)

var (
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = fmt.Errorf("%w: username already registered", httpx.ErrDuplicate)
	// ErrUserHasHistory indicates sales or catalog rows still reference the user.
	ErrUserHasHistory = fmt.Errorf("%w: user has recorded sales or catalog entries; revoke their permissions instead", httpx.ErrConflict)
)

// Repository provides user persistence backed by PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, full_name, phone, role, permissions, password_hash, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	var perms []string
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Phone, &role, &perms, &u.PasswordHash, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, err
	}
	u.Role = rbac.Role(role)
	u.Permissions = make([]rbac.Permission, 0, len(perms))
	for _, p := range perms {
		u.Permissions = append(u.Permissions, rbac.Permission(p))
	}
	return u, nil
}

// ListUsers returns all users ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser loads a user by ID.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByUsername loads a user by username, case-insensitively.
func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $9)`,
		u.ID, u.Username, u.FullName, u.Phone, string(u.Role), permissionStrings(u.Permissions), u.PasswordHash, u.IsActive, now)
	if err != nil {
		if db.IsUniqueViolation(err, "users_username_key") {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

// UpdatePermissions replaces the explicit grants.
func (r *Repository) UpdatePermissions(ctx context.Context, id uuid.UUID, perms []rbac.Permission) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET permissions = $2, updated_at = NOW() WHERE id = $1`, id, permissionStrings(perms))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteUser removes a user.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserHasHistory
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// CountUsers returns the number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func permissionStrings(perms []rbac.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}
