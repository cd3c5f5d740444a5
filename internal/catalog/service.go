package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	ListLowStock(ctx context.Context, limit int) ([]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// StockPort returns units to a stock counter.
type StockPort interface {
	Put(ctx context.Context, line inventory.Line) error
}

// Service coordinates catalog operations.
type Service struct {
	repo      RepositoryPort
	stock     StockPort
	validator *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockPort) *Service {
	return &Service{
		repo:      repo,
		stock:     stock,
		validator: validator.New(),
	}
}

// ListProducts lists products.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Category != "" {
		filter.Category = s.normalizeName(filter.Category)
	}
	return s.repo.ListProducts(ctx, filter)
}

// GetProduct returns a product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, actorID uuid.UUID, in ProductInput) (Product, error) {
	p, err := s.buildProduct(in)
	if err != nil {
		return Product{}, err
	}
	p.ID = uuid.New()
	p.StockQuantity = in.StockQuantity
	p.CreatedBy = actorID
	if p.Status == StatusActive && p.StockQuantity == 0 {
		p.Status = StatusOutOfStock
	}
	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// UpdateProduct replaces the descriptive fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	p, err := s.buildProduct(in)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	updated, err := s.repo.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// Restock adds units to product stock.
func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) (Product, error) {
	if qty <= 0 {
		return Product{}, inventory.ErrInvalidQuantity
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.stock.Put(ctx, inventory.Line{ProductID: id, ProductName: p.Name, Qty: qty}); err != nil {
		return Product{}, fmt.Errorf("restock: %w", err)
	}
	return s.repo.GetProduct(ctx, id)
}

// LowStock lists products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListLowStock(ctx, limit)
}

func (s *Service) buildProduct(in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	if err := s.validator.Struct(in); err != nil {
		return Product{}, err
	}
	if in.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	if in.CostPrice != nil && in.CostPrice.IsNegative() {
		return Product{}, fmt.Errorf("%w: cost price must not be negative", httpx.ErrValidation)
	}
	if err := pricing.RequireCents("price", in.Price); err != nil {
		return Product{}, err
	}
	if in.CostPrice != nil {
		if err := pricing.RequireCents("cost price", *in.CostPrice); err != nil {
			return Product{}, err
		}
	}
	seen := make(map[string]struct{}, len(in.Variations))
	for i, v := range in.Variations {
		v.Name = strings.TrimSpace(v.Name)
		v.Value = strings.TrimSpace(v.Value)
		if v.Name == "" || v.Value == "" {
			return Product{}, fmt.Errorf("%w: variation %d needs a name and a value", httpx.ErrValidation, i)
		}
		if v.StockQuantity < 0 {
			return Product{}, fmt.Errorf("%w: variation %s=%s has negative stock", httpx.ErrValidation, v.Name, v.Value)
		}
		if err := pricing.RequireCents("variation "+v.Name+"="+v.Value+": price adjustment", v.PriceAdjustment); err != nil {
			return Product{}, err
		}
		if in.Price.Add(v.PriceAdjustment).IsNegative() {
			return Product{}, fmt.Errorf("%w: variation %s=%s would price the product below zero", httpx.ErrValidation, v.Name, v.Value)
		}
		key := v.Name + "\x00" + v.Value
		if _, dup := seen[key]; dup {
			return Product{}, fmt.Errorf("%w: duplicate variation %s=%s", httpx.ErrValidation, v.Name, v.Value)
		}
		seen[key] = struct{}{}
		in.Variations[i] = v
	}
	if in.Barcode != nil {
		trimmed := strings.TrimSpace(*in.Barcode)
		in.Barcode = &trimmed
		if trimmed == "" {
			in.Barcode = nil
		}
	}
	minStock := DefaultMinStockLevel
	if in.MinStockLevel != nil {
		minStock = *in.MinStockLevel
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	variations := in.Variations
	if variations == nil {
		variations = []Variation{}
	}
	return Product{
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Category:      s.normalizeName(in.Category),
		Price:         in.Price,
		CostPrice:     in.CostPrice,
		Barcode:       in.Barcode,
		SKU:           in.SKU,
		Tags:          tags,
		Images:        images,
		Variations:    variations,
		MinStockLevel: minStock,
		Status:        status,
	}, nil
}

// normalizeName collapses whitespace and title-cases each word so that
// "hand  made" and "Hand Made" land in the same category. Casers are
// stateful, so one is built per call.
func (s *Service) normalizeName(name string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(strings.Fields(name), " "))
}

// ListCategories lists categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := s.validator.Struct(in); err != nil {
		return Category{}, err
	}
	name := s.normalizeName(in.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", httpx.ErrValidation)
	}
	return s.repo.CreateCategory(ctx, Category{ID: uuid.New(), Name: name, Description: strings.TrimSpace(in.Description)})
}

// UpdateCategory edits a category.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (Category, error) {
	if err := s.validator.Struct(in); err != nil {
		return Category{}, err
	}
	name := s.normalizeName(in.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", httpx.ErrValidation)
	}
	return s.repo.UpdateCategory(ctx, Category{ID: id, Name: name, Description: strings.TrimSpace(in.Description)})
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCategory(ctx, id)
}
