package catalog

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/db"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

var (
	// ErrSKUTaken indicates another product already uses the SKU.
	ErrSKUTaken = fmt.Errorf("%w: sku already exists", httpx.ErrDuplicate)
	// ErrCategoryTaken indicates a category with the same name exists.
	ErrCategoryTaken = fmt.Errorf("%w: category already exists", httpx.ErrDuplicate)
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists the catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, description, category, price, cost_price, barcode, sku, tags, images, variations,
    stock_quantity, min_stock_level, status, created_by, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.CostPrice, &p.Barcode, &p.SKU,
		&p.Tags, &p.Images, &p.Variations, &p.StockQuantity, &p.MinStockLevel, &status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product", httpx.ErrNotFound)
		}
		return Product{}, err
	}
	p.Status = Status(status)
	return p, nil
}

// ListProducts returns products matching the filter and the total count.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := sq.And{}
	if !filter.IncludeInactive {
		where = append(where, sq.NotEq{"status": string(StatusInactive)})
	}
	if filter.Category != "" {
		where = append(where, sq.Expr("lower(category) = lower(?)", filter.Category))
	}
	if filter.Barcode != "" {
		where = append(where, sq.Eq{"barcode": filter.Barcode})
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		where = append(where, sq.Or{
			sq.ILike{"name": like},
			sq.ILike{"description": like},
			sq.ILike{"sku": like},
			sq.Expr("EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE ?)", like),
		})
	}

	countSQL, args, err := psql.Select("COUNT(*)").From("products").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := psql.Select(productColumns).From("products").Where(where).OrderBy("name ASC")
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

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// GetProduct loads a product by ID.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (`+productColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.CostPrice, p.Barcode, p.SKU, p.Tags, p.Images, p.Variations,
		p.StockQuantity, p.MinStockLevel, string(p.Status), p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "products_sku_key") {
			return Product{}, ErrSKUTaken
		}
		return Product{}, err
	}
	return p, nil
}

// UpdateProduct overwrites the descriptive fields of a product. Stock is only
// changed through the inventory counters.
func (r *Repository) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `UPDATE products
SET name = $2, description = $3, category = $4, price = $5, cost_price = $6, barcode = $7, sku = $8,
    tags = $9, images = $10, variations = $11, min_stock_level = $12, status = $13, updated_at = NOW()
WHERE id = $1
RETURNING stock_quantity, created_by, created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.CostPrice, p.Barcode, p.SKU, p.Tags, p.Images, p.Variations,
		p.MinStockLevel, string(p.Status),
	).Scan(&p.StockQuantity, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product", httpx.ErrNotFound)
		}
		if db.IsUniqueViolation(err, "products_sku_key") {
			return Product{}, ErrSKUTaken
		}
		return Product{}, err
	}
	return p, nil
}

// ListLowStock returns active products at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context, limit int) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE status <> 'inactive' AND stock_quantity <= min_stock_level
ORDER BY stock_quantity ASC, name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCategories returns categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (id, name, description, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`,
		c.ID, c.Name, c.Description).Scan(&c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Category{}, ErrCategoryTaken
		}
		return Category{}, err
	}
	return c, nil
}

// UpdateCategory renames or re-describes a category.
func (r *Repository) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `UPDATE categories SET name = $2, description = $3 WHERE id = $1 RETURNING created_at`,
		c.ID, c.Name, c.Description).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("%w: category", httpx.ErrNotFound)
		}
		if db.IsUniqueViolation(err, "") {
			return Category{}, ErrCategoryTaken
		}
		return Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category.
func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: category", httpx.ErrNotFound)
	}
	return nil
}
