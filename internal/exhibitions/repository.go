package exhibitions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// ErrNotFound indicates the exhibition does not exist.
var ErrNotFound = fmt.Errorf("%w: exhibition", httpx.ErrNotFound)

// Repository persists exhibitions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const exhibitionColumns = `id, name, location, start_date, end_date, description, status, created_by, created_at, updated_at`

func scanExhibition(row pgx.Row) (Exhibition, error) {
	var e Exhibition
	var status string
	if err := row.Scan(&e.ID, &e.Name, &e.Location, &e.StartDate, &e.EndDate, &e.Description, &status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Exhibition{}, ErrNotFound
		}
		return Exhibition{}, err
	}
	e.Status = Status(status)
	return e, nil
}

// Create inserts an exhibition.
func (r *Repository) Create(ctx context.Context, e Exhibition) (Exhibition, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO exhibitions (`+exhibitionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Location, e.StartDate, e.EndDate, e.Description, string(e.Status), e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Exhibition{}, err
	}
	return e, nil
}

// Get loads an exhibition.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Exhibition, error) {
	return scanExhibition(r.pool.QueryRow(ctx, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = $1`, id))
}

// List returns exhibitions, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Exhibition, error) {
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY start_date DESC, name ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exhibition
	for rows.Next() {
		e, err := scanExhibition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status and returns the updated exhibition.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Exhibition, error) {
	return scanExhibition(r.pool.QueryRow(ctx, `UPDATE exhibitions SET status = $2, updated_at = NOW() WHERE id = $1
RETURNING `+exhibitionColumns, id, string(status)))
}
