package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/db"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
)

var (
	// ErrNotFound indicates the sale does not exist.
	ErrNotFound = fmt.Errorf("%w: sale", httpx.ErrNotFound)
	// ErrSaleNumberTaken indicates the generated sale number already exists.
	ErrSaleNumberTaken = fmt.Errorf("%w: sale number already exists", httpx.ErrConflict)
	// ErrAlreadyCancelled indicates the sale was voided before.
	ErrAlreadyCancelled = fmt.Errorf("%w: sale already cancelled", httpx.ErrConflict)
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, sale_number, channel, exhibition_id, cashier_id, cashier_name, customer, items,
    subtotal, tax_amount, discount_amount, shipping_amount, total_amount, payments, amount_paid, change_given,
    status, created_at, cancelled_at, cancelled_by, cancel_reason`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var channel, status string
	err := row.Scan(&s.ID, &s.SaleNumber, &channel, &s.ExhibitionID, &s.CashierID, &s.CashierName, &s.Customer, &s.Items,
		&s.Subtotal, &s.TaxAmount, &s.DiscountAmount, &s.ShippingAmount, &s.TotalAmount, &s.Payments, &s.AmountPaid, &s.ChangeGiven,
		&status, &s.CreatedAt, &s.CancelledAt, &s.CancelledBy, &s.CancelReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	s.Channel = pricing.Channel(channel)
	s.Status = Status(status)
	return s, nil
}

// InsertSale stores a finalized sale. The id and created_at are assigned by
// the database.
func (r *Repository) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO sales (sale_number, channel, exhibition_id, cashier_id, cashier_name, customer, items,
    subtotal, tax_amount, discount_amount, shipping_amount, total_amount, payments, amount_paid, change_given, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, created_at`,
		s.SaleNumber, string(s.Channel), s.ExhibitionID, s.CashierID, s.CashierName, s.Customer, s.Items,
		s.Subtotal, s.TaxAmount, s.DiscountAmount, s.ShippingAmount, s.TotalAmount, s.Payments, s.AmountPaid, s.ChangeGiven,
		string(s.Status),
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "sales_sale_number_key") {
			return Sale{}, ErrSaleNumberTaken
		}
		return Sale{}, err
	}
	return s, nil
}

// GetSale loads a sale by id.
func (r *Repository) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
}

// ListSales returns sales newest first with the total count.
func (r *Repository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	where := sq.And{}
	if filter.CashierID != nil {
		where = append(where, sq.Eq{"cashier_id": *filter.CashierID})
	}
	if filter.ExhibitionID != nil {
		where = append(where, sq.Eq{"exhibition_id": *filter.ExhibitionID})
	}

	countSQL, args, err := psql.Select("COUNT(*)").From("sales").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := psql.Select(saleColumns).From("sales").Where(where).OrderBy("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(max(filter.Offset, 0)))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// MarkCancelled moves a sale to cancelled if it is not cancelled already.
func (r *Repository) MarkCancelled(ctx context.Context, id, by uuid.UUID, reason string, at time.Time) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `UPDATE sales
SET status = 'cancelled', cancelled_at = $3, cancelled_by = $2, cancel_reason = $4
WHERE id = $1 AND status <> 'cancelled'
RETURNING `+saleColumns, id, by, at, reason))
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing sale from one already cancelled.
		if _, getErr := r.GetSale(ctx, id); getErr != nil {
			return Sale{}, getErr
		}
		return Sale{}, ErrAlreadyCancelled
	}
	return s, err
}
