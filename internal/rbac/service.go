package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// ErrInactive indicates the account has been disabled.
var ErrInactive = fmt.Errorf("%w: account disabled", httpx.ErrUnauthorized)

// PrincipalSource loads the current role and grants of a user.
type PrincipalSource interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (Principal, error)
}

// Service resolves principals and their effective permissions.
type Service struct {
	source PrincipalSource
}

// NewService constructs a Service.
func NewService(source PrincipalSource) *Service {
	return &Service{source: source}
}

// Resolve loads the principal for userID. Missing or inactive users are
// reported as unauthorized.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (Principal, error) {
	p, err := s.source.LoadPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: unknown user", httpx.ErrUnauthorized)
		}
		return Principal{}, err
	}
	if !p.Active {
		return Principal{}, ErrInactive
	}
	return p, nil
}

// EffectivePermissions returns the sorted effective permissions of a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]Permission, error) {
	p, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Role == RoleSuperAdmin {
		return AllPermissions(), nil
	}
	return p.Permissions.Sorted(), nil
}
