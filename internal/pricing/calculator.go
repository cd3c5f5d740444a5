package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// Variation is a priced product option such as size=L.
type Variation struct {
	Name            string          `json:"name"`
	Value           string          `json:"value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

// Totals is the monetary summary of a sale.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount_amount"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Shipping decimal.Decimal `json:"shipping_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// WholeCents reports whether d has no fractional part below one cent.
// Amounts are stored with two decimal places.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// RequireCents returns a ValidationError naming field when d is not a whole
// number of cents.
func RequireCents(field string, d decimal.Decimal) error {
	if !WholeCents(d) {
		return fmt.Errorf("%w: %s must have at most 2 decimal places, got %s", httpx.ErrValidation, field, d.String())
	}
	return nil
}

// UnitPrice adds the adjustment of every selected variation that matches the
// product's variations by name and value. Unmatched selections are ignored.
func UnitPrice(base decimal.Decimal, variations []Variation, selection map[string]string) decimal.Decimal {
	price := base
	if len(selection) == 0 {
		return price
	}
	for _, v := range variations {
		if chosen, ok := selection[v.Name]; ok && chosen == v.Value {
			price = price.Add(v.PriceAdjustment)
		}
	}
	return price
}

// LineTotal multiplies the unit price by a strictly positive quantity.
func LineTotal(unit decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be positive, got %d", httpx.ErrValidation, quantity)
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Compute derives the sale totals from line totals and a discount.
// The discount must lie within [0, subtotal]. Tax is rounded half-up to cents.
func Compute(policy Policy, lineTotals []decimal.Decimal, discount decimal.Decimal) (Totals, error) {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	if discount.IsNegative() {
		return Totals{}, fmt.Errorf("%w: discount must not be negative", httpx.ErrValidation)
	}
	if discount.GreaterThan(subtotal) {
		return Totals{}, fmt.Errorf("%w: discount %s exceeds subtotal %s", httpx.ErrValidation, discount.StringFixed(2), subtotal.StringFixed(2))
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(policy.TaxRate).Round(2)
	shipping := policy.Shipping(subtotal)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable.Add(tax).Add(shipping),
	}, nil
}

// Change returns max(0, paid - total).
func Change(paid, total decimal.Decimal) decimal.Decimal {
	diff := paid.Sub(total)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}
