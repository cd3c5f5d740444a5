package exhibitions

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

// RepositoryPort abstracts exhibition persistence.
type RepositoryPort interface {
	Create(ctx context.Context, e Exhibition) (Exhibition, error)
	Get(ctx context.Context, id uuid.UUID) (Exhibition, error)
	List(ctx context.Context, filter ListFilter) ([]Exhibition, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Exhibition, error)
}

// AllocationPort moves stock into exhibitions and reads it back.
type AllocationPort interface {
	Allocate(ctx context.Context, in inventory.AllocationInput) (inventory.Allocation, error)
	ListAllocations(ctx context.Context, exhibitionID uuid.UUID) ([]inventory.Allocation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ErrClosed indicates the exhibition no longer accepts changes.
var ErrClosed = fmt.Errorf("%w: exhibition is completed", httpx.ErrConflict)

// Service coordinates exhibition operations.
type Service struct {
	repo        RepositoryPort
	allocations AllocationPort
	audit       AuditPort
	validator   *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, allocations AllocationPort, audit AuditPort) *Service {
	return &Service{repo: repo, allocations: allocations, audit: audit, validator: validator.New()}
}

// Create registers an exhibition.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in CreateInput) (Exhibition, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	if err := s.validator.Struct(in); err != nil {
		return Exhibition{}, err
	}
	if in.EndDate.Before(in.StartDate) {
		return Exhibition{}, fmt.Errorf("%w: end date precedes start date", httpx.ErrValidation)
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	e, err := s.repo.Create(ctx, Exhibition{
		ID:          uuid.New(),
		Name:        in.Name,
		Location:    in.Location,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		return Exhibition{}, fmt.Errorf("create exhibition: %w", err)
	}
	return e, nil
}

// Get returns an exhibition.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Exhibition, error) {
	return s.repo.Get(ctx, id)
}

// List returns exhibitions.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Exhibition, error) {
	return s.repo.List(ctx, filter)
}

// UpdateStatus changes the status. Completing an exhibition needs the
// exhibition_closure capability and cannot be undone.
func (s *Service) UpdateStatus(ctx context.Context, actor rbac.Principal, id uuid.UUID, in StatusInput) (Exhibition, error) {
	if err := s.validator.Struct(in); err != nil {
		return Exhibition{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Exhibition{}, err
	}
	if current.Status == StatusCompleted {
		return Exhibition{}, ErrClosed
	}
	if in.Status == StatusCompleted && !actor.Can(rbac.PermExhibitionClosure) {
		return Exhibition{}, fmt.Errorf("%w: closing an exhibition requires %s", httpx.ErrForbidden, rbac.PermExhibitionClosure)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, in.Status)
	if err != nil {
		return Exhibition{}, fmt.Errorf("update exhibition status: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "exhibitions:status",
			Entity:   "exhibition",
			EntityID: id.String(),
			Meta:     map[string]any{"from": current.Status, "to": in.Status},
		})
	}
	return updated, nil
}

// Allocate moves product stock into the exhibition.
func (s *Service) Allocate(ctx context.Context, actor rbac.Principal, in inventory.AllocationInput) (inventory.Allocation, error) {
	if err := s.validator.Struct(in); err != nil {
		return inventory.Allocation{}, err
	}
	e, err := s.repo.Get(ctx, in.ExhibitionID)
	if err != nil {
		return inventory.Allocation{}, err
	}
	if !e.Sellable() {
		return inventory.Allocation{}, ErrClosed
	}
	alloc, err := s.allocations.Allocate(ctx, in)
	if err != nil {
		return inventory.Allocation{}, fmt.Errorf("allocate: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "exhibitions:allocate",
			Entity:   "exhibition",
			EntityID: in.ExhibitionID.String(),
			Meta:     map[string]any{"product_id": in.ProductID, "qty": in.Qty},
		})
	}
	return alloc, nil
}

// Allocations lists the stock pool of an exhibition.
func (s *Service) Allocations(ctx context.Context, id uuid.UUID) ([]inventory.Allocation, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.allocations.ListAllocations(ctx, id)
}
