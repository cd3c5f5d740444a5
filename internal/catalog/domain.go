// Package catalog manages products, their variations and categories.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
)

// Status of a product in the catalog.
type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusOutOfStock Status = "out_of_stock"
)

// DefaultMinStockLevel applies when a product is created without one.
const DefaultMinStockLevel = 10

// Variation is a selectable option that may carry its own stock count.
type Variation struct {
	pricing.Variation
	StockQuantity int `json:"stock_quantity"`
}

// Product is a sellable catalog entry.
type Product struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Price         decimal.Decimal  `json:"price"`
	CostPrice     *decimal.Decimal `json:"cost_price,omitempty"`
	Barcode       *string          `json:"barcode,omitempty"`
	SKU           string           `json:"sku"`
	Tags          []string         `json:"tags"`
	Images        []string         `json:"images"`
	Variations    []Variation      `json:"variations"`
	StockQuantity int              `json:"stock_quantity"`
	MinStockLevel int              `json:"min_stock_level"`
	Status        Status           `json:"status"`
	CreatedBy     uuid.UUID        `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PricingVariations projects the variations onto the pricing model.
func (p Product) PricingVariations() []pricing.Variation {
	out := make([]pricing.Variation, 0, len(p.Variations))
	for _, v := range p.Variations {
		out = append(out, v.Variation)
	}
	return out
}

// LowStock reports whether stock has fallen to the reorder level.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// ProductInput carries fields for create and full update.
type ProductInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=2000"`
	Category      string           `json:"category" validate:"required,max=100"`
	Price         decimal.Decimal  `json:"price"`
	CostPrice     *decimal.Decimal `json:"cost_price"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=64"`
	SKU           string           `json:"sku" validate:"required,max=64"`
	Tags          []string         `json:"tags" validate:"max=32,dive,max=64"`
	Images        []string         `json:"images" validate:"max=16,dive,max=2048"`
	Variations    []Variation      `json:"variations" validate:"max=64"`
	StockQuantity int              `json:"stock_quantity" validate:"gte=0"`
	MinStockLevel *int             `json:"min_stock_level" validate:"omitempty,gte=0"`
	Status        Status           `json:"status" validate:"omitempty,oneof=active inactive out_of_stock"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category        string
	Search          string
	Barcode         string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Category groups products.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryInput carries category fields.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}
