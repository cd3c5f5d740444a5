package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/users"
)

// Repository defines the account lookups the login flow needs.
// users.Repository satisfies it.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (users.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (users.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
