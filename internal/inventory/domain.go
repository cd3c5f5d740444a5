// Package inventory owns the stock counters: product stock and per-exhibition
// allocations. Every write is a single conditional statement so concurrent
// sales can never drive a counter below zero.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// Line is one stock movement request.
type Line struct {
	ProductID    uuid.UUID
	ExhibitionID uuid.UUID
	ProductName  string
	Qty          int
}

// FromAllocation reports whether the line draws on an exhibition allocation
// rather than on product stock.
func (l Line) FromAllocation() bool {
	return l.ExhibitionID != uuid.Nil
}

var (
	// ErrInvalidQuantity indicates a non-positive movement.
	ErrInvalidQuantity = fmt.Errorf("%w: inventory: quantity must be positive", httpx.ErrValidation)
	// ErrProductNotFound indicates the product row does not exist.
	ErrProductNotFound = fmt.Errorf("%w: inventory: product", httpx.ErrNotFound)
	// ErrAllocationNotFound indicates no allocation exists for the exhibition and product.
	ErrAllocationNotFound = fmt.Errorf("%w: inventory: allocation", httpx.ErrNotFound)
	// ErrNotConfigured is returned when a stock backend is missing.
	ErrNotConfigured = errors.New("inventory: stock backend not configured")
)

// InsufficientStockError reports that a counter cannot cover a request.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return httpx.ErrInsufficientStock
}

// AllocationInput moves units from product stock into an exhibition pool.
type AllocationInput struct {
	ExhibitionID uuid.UUID `json:"exhibition_id" validate:"required"`
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	Qty          int       `json:"quantity" validate:"required,gt=0"`
}

// Allocation is the stock pool an exhibition sells from.
// Remaining always equals Allocated minus Sold.
type Allocation struct {
	ID           uuid.UUID       `json:"id"`
	ExhibitionID uuid.UUID       `json:"exhibition_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name,omitempty"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Allocated    int             `json:"allocated_quantity"`
	Sold         int             `json:"sold_quantity"`
	Remaining    int             `json:"remaining_quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
