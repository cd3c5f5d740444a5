package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ProductStock decrements and restores product stock counters.
type ProductStock interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error
}

// AllocationStock decrements and restores exhibition allocation counters.
type AllocationStock interface {
	DecrementAllocation(ctx context.Context, exhibitionID, productID uuid.UUID, qty int) error
	IncrementAllocation(ctx context.Context, exhibitionID, productID uuid.UUID, qty int) error
}

// Observer receives compensation outcomes.
type Observer interface {
	Compensated(lines int, err error)
}

// Service routes stock movements to the right counter.
type Service struct {
	products    ProductStock
	allocations AllocationStock
	logger      *slog.Logger
	observer    Observer
}

// NewService builds Service.
func NewService(products ProductStock, allocations AllocationStock, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{products: products, allocations: allocations, logger: logger, observer: observer}
}

// Take atomically decrements the counter addressed by line.
func (s *Service) Take(ctx context.Context, line Line) error {
	if line.Qty <= 0 {
		return ErrInvalidQuantity
	}
	var err error
	if line.FromAllocation() {
		if s.allocations == nil {
			return ErrNotConfigured
		}
		err = s.allocations.DecrementAllocation(ctx, line.ExhibitionID, line.ProductID, line.Qty)
	} else {
		if s.products == nil {
			return ErrNotConfigured
		}
		err = s.products.DecrementStock(ctx, line.ProductID, line.Qty)
	}
	var short *InsufficientStockError
	if errors.As(err, &short) && short.ProductName == "" {
		short.ProductName = line.ProductName
	}
	return err
}

// Put increments the counter addressed by line.
func (s *Service) Put(ctx context.Context, line Line) error {
	if line.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if line.FromAllocation() {
		if s.allocations == nil {
			return ErrNotConfigured
		}
		return s.allocations.IncrementAllocation(ctx, line.ExhibitionID, line.ProductID, line.Qty)
	}
	if s.products == nil {
		return ErrNotConfigured
	}
	return s.products.IncrementStock(ctx, line.ProductID, line.Qty)
}

// Restock returns every line to its counter, attempting all of them and
// joining the failures.
func (s *Service) Restock(ctx context.Context, lines []Line) error {
	var errs []error
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if err := s.Put(ctx, line); err != nil {
			s.logger.Error("inventory restock",
				slog.String("product_id", line.ProductID.String()),
				slog.Int("qty", line.Qty),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("restock %s: %w", line.ProductID, err))
		}
	}
	err := errors.Join(errs...)
	if s.observer != nil && len(lines) > 0 {
		s.observer.Compensated(len(lines), err)
	}
	return err
}

// Reserve starts a reservation that remembers every successful Take so it
// can be undone.
func (s *Service) Reserve() *Reservation {
	return &Reservation{svc: s}
}

// Reservation is a compensation stack of taken lines.
type Reservation struct {
	svc   *Service
	mu    sync.Mutex
	taken []Line
}

// Take decrements stock for line and records it on success.
func (r *Reservation) Take(ctx context.Context, line Line) error {
	if err := r.svc.Take(ctx, line); err != nil {
		return err
	}
	r.mu.Lock()
	r.taken = append(r.taken, line)
	r.mu.Unlock()
	return nil
}

// Lines returns a copy of the taken lines in order.
func (r *Reservation) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.taken))
	copy(out, r.taken)
	return out
}

// Release restores every taken line in reverse order. The stack is cleared
// even when some increments fail.
func (r *Reservation) Release(ctx context.Context) error {
	r.mu.Lock()
	taken := r.taken
	r.taken = nil
	r.mu.Unlock()
	if len(taken) == 0 {
		return nil
	}
	// Compensation must finish even if the request context is gone.
	return r.svc.Restock(context.WithoutCancel(ctx), taken)
}
