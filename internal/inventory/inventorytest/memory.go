// Package inventorytest provides an in-memory stock backend honouring the
// same conditional-decrement contract as the PostgreSQL repository.
package inventorytest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
)

type allocKey struct {
	exhibition uuid.UUID
	product    uuid.UUID
}

// Memory is a mutex guarded stock store.
type Memory struct {
	mu          sync.Mutex
	names       map[uuid.UUID]string
	stock       map[uuid.UUID]int
	allocations map[allocKey]*inventory.Allocation

	// FailIncrement, when set, is consulted before every increment.
	FailIncrement func(productID uuid.UUID) error
	Decrements    int
	Increments    int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		names:       make(map[uuid.UUID]string),
		stock:       make(map[uuid.UUID]int),
		allocations: make(map[allocKey]*inventory.Allocation),
	}
}

// SetStock registers a product with the given on-hand quantity.
func (m *Memory) SetStock(productID uuid.UUID, name string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[productID] = name
	m.stock[productID] = qty
}

// Stock returns the on-hand quantity for a product.
func (m *Memory) Stock(productID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

// Allocation returns a copy of the allocation, if any.
func (m *Memory) Allocation(exhibitionID, productID uuid.UUID) (inventory.Allocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocations[allocKey{exhibitionID, productID}]
	if !ok {
		return inventory.Allocation{}, false
	}
	return *a, true
}

func (m *Memory) DecrementStock(_ context.Context, productID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	on, ok := m.stock[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if on < qty {
		return &inventory.InsufficientStockError{ProductID: productID, ProductName: m.names[productID], Requested: qty, Available: on}
	}
	m.stock[productID] = on - qty
	m.Decrements++
	return nil
}

func (m *Memory) IncrementStock(_ context.Context, productID uuid.UUID, qty int) error {
	if m.FailIncrement != nil {
		if err := m.FailIncrement(productID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[productID]; !ok {
		return inventory.ErrProductNotFound
	}
	m.stock[productID] += qty
	m.Increments++
	return nil
}

func (m *Memory) DecrementAllocation(_ context.Context, exhibitionID, productID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocations[allocKey{exhibitionID, productID}]
	if !ok {
		return inventory.ErrAllocationNotFound
	}
	if a.Remaining < qty {
		return &inventory.InsufficientStockError{ProductID: productID, ProductName: m.names[productID], Requested: qty, Available: a.Remaining}
	}
	a.Sold += qty
	a.Remaining -= qty
	m.Decrements++
	return nil
}

func (m *Memory) IncrementAllocation(_ context.Context, exhibitionID, productID uuid.UUID, qty int) error {
	if m.FailIncrement != nil {
		if err := m.FailIncrement(productID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allocations[allocKey{exhibitionID, productID}]
	if !ok || a.Sold < qty {
		return inventory.ErrAllocationNotFound
	}
	a.Sold -= qty
	a.Remaining += qty
	m.Increments++
	return nil
}

// Allocate moves product stock into an exhibition allocation atomically.
func (m *Memory) Allocate(_ context.Context, in inventory.AllocationInput) (inventory.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	on, ok := m.stock[in.ProductID]
	if !ok {
		return inventory.Allocation{}, inventory.ErrProductNotFound
	}
	if on < in.Qty {
		return inventory.Allocation{}, &inventory.InsufficientStockError{ProductID: in.ProductID, ProductName: m.names[in.ProductID], Requested: in.Qty, Available: on}
	}
	m.stock[in.ProductID] = on - in.Qty
	key := allocKey{in.ExhibitionID, in.ProductID}
	a, ok := m.allocations[key]
	if !ok {
		a = &inventory.Allocation{ID: uuid.New(), ExhibitionID: in.ExhibitionID, ProductID: in.ProductID, ProductName: m.names[in.ProductID]}
		m.allocations[key] = a
	}
	a.Allocated += in.Qty
	a.Remaining += in.Qty
	return *a, nil
}

// ListAllocations returns the allocations of an exhibition.
func (m *Memory) ListAllocations(_ context.Context, exhibitionID uuid.UUID) ([]inventory.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventory.Allocation
	for k, a := range m.allocations {
		if k.exhibition == exhibitionID {
			out = append(out, *a)
		}
	}
	return out, nil
}
