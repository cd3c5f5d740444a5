package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/db"
)

// Repository persists stock counters in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const decrementStockSQL = `UPDATE products
SET stock_quantity = stock_quantity - $2,
    status = CASE WHEN stock_quantity - $2 = 0 AND status = 'active' THEN 'out_of_stock' ELSE status END,
    updated_at = NOW()
WHERE id = $1 AND stock_quantity >= $2`

// DecrementStock subtracts qty from product stock only when enough is on hand.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return decrementStock(ctx, r.pool, productID, qty)
}

func decrementStock(ctx context.Context, q db.DBTX, productID uuid.UUID, qty int) error {
	tag, err := q.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var name string
	var available int
	err = q.QueryRow(ctx, `SELECT name, stock_quantity FROM products WHERE id = $1`, productID).Scan(&name, &available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return &InsufficientStockError{ProductID: productID, ProductName: name, Requested: qty, Available: available}
}

// IncrementStock adds qty back to product stock.
func (r *Repository) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
SET stock_quantity = stock_quantity + $2,
    status = CASE WHEN status = 'out_of_stock' THEN 'active' ELSE status END,
    updated_at = NOW()
WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementAllocation records qty as sold from an exhibition allocation.
func (r *Repository) DecrementAllocation(ctx context.Context, exhibitionID, productID uuid.UUID, qty int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exhibition_inventory
SET sold_quantity = sold_quantity + $3, remaining_quantity = remaining_quantity - $3, updated_at = NOW()
WHERE exhibition_id = $1 AND product_id = $2 AND remaining_quantity >= $3`, exhibitionID, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement allocation: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var name string
	var remaining int
	err = r.pool.QueryRow(ctx, `SELECT p.name, ei.remaining_quantity
FROM exhibition_inventory ei JOIN products p ON p.id = ei.product_id
WHERE ei.exhibition_id = $1 AND ei.product_id = $2`, exhibitionID, productID).Scan(&name, &remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAllocationNotFound
	}
	if err != nil {
		return fmt.Errorf("decrement allocation: %w", err)
	}
	return &InsufficientStockError{ProductID: productID, ProductName: name, Requested: qty, Available: remaining}
}

// IncrementAllocation reverses a sold quantity on an exhibition allocation.
func (r *Repository) IncrementAllocation(ctx context.Context, exhibitionID, productID uuid.UUID, qty int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exhibition_inventory
SET sold_quantity = sold_quantity - $3, remaining_quantity = remaining_quantity + $3, updated_at = NOW()
WHERE exhibition_id = $1 AND product_id = $2 AND sold_quantity >= $3`, exhibitionID, productID, qty)
	if err != nil {
		return fmt.Errorf("increment allocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}
	return nil
}

// Allocate moves qty units from product stock into the exhibition pool in a
// single transaction.
func (r *Repository) Allocate(ctx context.Context, in AllocationInput) (Allocation, error) {
	var alloc Allocation
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := decrementStock(ctx, tx, in.ProductID, in.Qty); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO exhibition_inventory
    (id, exhibition_id, product_id, allocated_quantity, sold_quantity, remaining_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $4, NOW(), NOW())
ON CONFLICT (exhibition_id, product_id) DO UPDATE
SET allocated_quantity = exhibition_inventory.allocated_quantity + EXCLUDED.allocated_quantity,
    remaining_quantity = exhibition_inventory.remaining_quantity + EXCLUDED.allocated_quantity,
    updated_at = NOW()
RETURNING id, exhibition_id, product_id, allocated_quantity, sold_quantity, remaining_quantity, created_at, updated_at`,
			uuid.New(), in.ExhibitionID, in.ProductID, in.Qty,
		).Scan(&alloc.ID, &alloc.ExhibitionID, &alloc.ProductID, &alloc.Allocated, &alloc.Sold, &alloc.Remaining, &alloc.CreatedAt, &alloc.UpdatedAt)
	})
	if err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}

// GetAllocation loads one allocation with its product name and price.
func (r *Repository) GetAllocation(ctx context.Context, exhibitionID, productID uuid.UUID) (Allocation, error) {
	rows, err := r.pool.Query(ctx, allocationSelect+` WHERE ei.exhibition_id = $1 AND ei.product_id = $2`, exhibitionID, productID)
	if err != nil {
		return Allocation{}, err
	}
	allocs, err := scanAllocations(rows)
	if err != nil {
		return Allocation{}, err
	}
	if len(allocs) == 0 {
		return Allocation{}, ErrAllocationNotFound
	}
	return allocs[0], nil
}

// ListAllocations returns the allocations of an exhibition ordered by product name.
func (r *Repository) ListAllocations(ctx context.Context, exhibitionID uuid.UUID) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx, allocationSelect+` WHERE ei.exhibition_id = $1 ORDER BY p.name`, exhibitionID)
	if err != nil {
		return nil, err
	}
	return scanAllocations(rows)
}

const allocationSelect = `SELECT ei.id, ei.exhibition_id, ei.product_id, p.name, p.price,
    ei.allocated_quantity, ei.sold_quantity, ei.remaining_quantity, ei.created_at, ei.updated_at
FROM exhibition_inventory ei JOIN products p ON p.id = ei.product_id`

func scanAllocations(rows pgx.Rows) ([]Allocation, error) {
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.ExhibitionID, &a.ProductID, &a.ProductName, &a.ProductPrice,
			&a.Allocated, &a.Sold, &a.Remaining, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
