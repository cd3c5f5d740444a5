package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the dashboard aggregates against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesTotals sums non-cancelled sales.
func (r *Repository) SalesTotals(ctx context.Context) (SalesTotals, error) {
	var t SalesTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM sales WHERE status <> 'cancelled'`).
		Scan(&t.Amount, &t.Count)
	return t, err
}

// ProductCounts counts active and low-stock products.
func (r *Repository) ProductCounts(ctx context.Context) (ProductCounts, error) {
	var c ProductCounts
	err := r.pool.QueryRow(ctx, `SELECT
    COUNT(*) FILTER (WHERE status = 'active'),
    COUNT(*) FILTER (WHERE status <> 'inactive' AND stock_quantity <= min_stock_level)
FROM products`).Scan(&c.Active, &c.LowStock)
	return c, err
}

// CountUsers returns the number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// RecentSales returns the latest sales of any status.
func (r *Repository) RecentSales(ctx context.Context, limit int) ([]RecentSale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_number, cashier_name, total_amount, status, created_at
FROM sales ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentSale
	for rows.Next() {
		var s RecentSale
		if err := rows.Scan(&s.ID, &s.SaleNumber, &s.CashierName, &s.TotalAmount, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopProducts ranks products by units sold in non-cancelled sales.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT (item->>'product_id')::uuid, MAX(item->>'product_name'), SUM((item->>'quantity')::int) AS qty
FROM sales, jsonb_array_elements(items) AS item
WHERE status <> 'cancelled'
GROUP BY 1
ORDER BY qty DESC, 2 ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.TotalQuantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DailyTotals returns the per-day totals of days with sales in [from, to).
func (r *Repository) DailyTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(total_amount)
FROM sales
WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2
GROUP BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day string
		var total decimal.Decimal
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		out[day] = total
	}
	return out, rows.Err()
}

// DayEnd collects the rows for a day-end report.
func (r *Repository) DayEnd(ctx context.Context, filter DayEndFilter) (DayEndRows, error) {
	start, end := filter.Window()
	scope := `created_at >= $1 AND created_at < $2`
	args := []any{start, end}
	if filter.ExhibitionID != nil {
		scope += ` AND exhibition_id = $3`
		args = append(args, *filter.ExhibitionID)
	}

	var out DayEndRows
	err := r.pool.QueryRow(ctx, `SELECT
    COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled'), 0),
    COUNT(*) FILTER (WHERE status <> 'cancelled'),
    COUNT(*) FILTER (WHERE status = 'cancelled'),
    COALESCE(SUM(change_given) FILTER (WHERE status <> 'cancelled'), 0)
FROM sales WHERE `+scope, args...).Scan(&out.Totals.Amount, &out.Totals.Count, &out.Cancelled, &out.ChangeGiven)
	if err != nil {
		return DayEndRows{}, fmt.Errorf("day-end totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT p->>'type', SUM((p->>'amount')::numeric)
FROM sales, jsonb_array_elements(payments) AS p
WHERE status <> 'cancelled' AND `+scope+`
GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return DayEndRows{}, fmt.Errorf("day-end payments: %w", err)
	}
	for rows.Next() {
		var p PaymentTotal
		if err := rows.Scan(&p.Type, &p.Amount); err != nil {
			rows.Close()
			return DayEndRows{}, err
		}
		out.Payments = append(out.Payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DayEndRows{}, err
	}

	rows, err = r.pool.Query(ctx, `SELECT cashier_id, MAX(cashier_name), COUNT(*), SUM(total_amount)
FROM sales
WHERE status <> 'cancelled' AND `+scope+`
GROUP BY cashier_id ORDER BY 4 DESC`, args...)
	if err != nil {
		return DayEndRows{}, fmt.Errorf("day-end cashiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CashierTotal
		if err := rows.Scan(&c.CashierID, &c.CashierName, &c.Transactions, &c.Total); err != nil {
			return DayEndRows{}, err
		}
		out.Cashiers = append(out.Cashiers, c)
	}
	return out, rows.Err()
}
