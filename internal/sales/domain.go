// Package sales finalizes point-of-sale transactions. A sale either commits
// with every stock decrement applied or fails with all of them restored.
package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
)

// ============================================================================
// SALE
// ============================================================================

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// PaymentType is the tender used for a payment.
type PaymentType string

const (
	PaymentCash         PaymentType = "cash"
	PaymentCard         PaymentType = "card"
	PaymentMobile       PaymentType = "mobile"
	PaymentBankTransfer PaymentType = "bank_transfer"
)

// Valid reports whether t is a known tender.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentBankTransfer:
		return true
	}
	return false
}

// Payment is one tender applied to a sale.
type Payment struct {
	Type   PaymentType     `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Customer identifies the buyer when known.
type Customer struct {
	Name  string `json:"name,omitempty" validate:"max=200"`
	Phone string `json:"phone,omitempty" validate:"max=50"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Cashier is the authenticated operator recording the sale.
type Cashier struct {
	ID   uuid.UUID
	Name string
}

// LineItem snapshots the product as sold.
type LineItem struct {
	ProductID          uuid.UUID         `json:"product_id"`
	ProductName        string            `json:"product_name"`
	SKU                string            `json:"sku"`
	Quantity           int               `json:"quantity"`
	UnitPrice          decimal.Decimal   `json:"unit_price"`
	TotalPrice         decimal.Decimal   `json:"total_price"`
	VariationSelection map[string]string `json:"variation_selection"`
}

// Sale is an immutable record of a finalized transaction. Only the status
// may move from completed or pending to cancelled.
type Sale struct {
	ID             uuid.UUID       `json:"id"`
	SaleNumber     string          `json:"sale_number"`
	Channel        pricing.Channel `json:"channel"`
	ExhibitionID   *uuid.UUID      `json:"exhibition_id,omitempty"`
	CashierID      uuid.UUID       `json:"cashier_id"`
	CashierName    string          `json:"cashier_name"`
	Customer       *Customer       `json:"customer,omitempty"`
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Payments       []Payment       `json:"payments"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	ChangeGiven    decimal.Decimal `json:"change_given"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy    *uuid.UUID      `json:"cancelled_by,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
}

// StockLines maps the sale items back onto the counters they were taken from.
func (s Sale) StockLines() []inventory.Line {
	exhibitionID := uuid.Nil
	if s.ExhibitionID != nil {
		exhibitionID = *s.ExhibitionID
	}
	out := make([]inventory.Line, 0, len(s.Items))
	for _, item := range s.Items {
		out = append(out, inventory.Line{
			ProductID:    item.ProductID,
			ExhibitionID: exhibitionID,
			ProductName:  item.ProductName,
			Qty:          item.Quantity,
		})
	}
	return out
}

// Receipt is the result of a successful finalization.
type Receipt struct {
	ID          uuid.UUID       `json:"id"`
	SaleNumber  string          `json:"sale_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ChangeGiven decimal.Decimal `json:"change_given"`
	Status      Status          `json:"status"`
	Sale        Sale            `json:"sale"`
}

// ============================================================================
// INPUTS
// ============================================================================

// ItemInput requests a quantity of a product.
type ItemInput struct {
	ProductID          uuid.UUID         `json:"product_id"`
	Quantity           int               `json:"quantity"`
	UnitPriceOverride  *decimal.Decimal  `json:"unit_price,omitempty"`
	VariationSelection map[string]string `json:"variation_selection,omitempty"`
}

// FinalizeInput is the canonical multi-payment sale request.
type FinalizeInput struct {
	Cashier            Cashier         `json:"-"`
	ExhibitionID       *uuid.UUID      `json:"exhibition_id,omitempty"`
	Channel            pricing.Channel `json:"channel,omitempty"`
	Customer           *Customer       `json:"customer,omitempty"`
	Items              []ItemInput     `json:"items"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Payments           []Payment       `json:"payments"`
	AllowPriceOverride bool            `json:"-"`
}

// LegacyInput is the single-payment request shape.
type LegacyInput struct {
	ExhibitionID    *uuid.UUID      `json:"exhibition_id,omitempty"`
	Customer        *Customer       `json:"customer,omitempty"`
	Items           []ItemInput     `json:"items"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PaymentMethod   PaymentType     `json:"payment_method"`
	PaymentReceived decimal.Decimal `json:"payment_received"`
}

// Canonical converts the legacy shape into a FinalizeInput with one payment.
func (in LegacyInput) Canonical() FinalizeInput {
	out := FinalizeInput{
		ExhibitionID:   in.ExhibitionID,
		Customer:       in.Customer,
		Items:          in.Items,
		DiscountAmount: in.DiscountAmount,
	}
	if in.PaymentMethod != "" || !in.PaymentReceived.IsZero() {
		out.Payments = []Payment{{Type: in.PaymentMethod, Amount: in.PaymentReceived}}
	}
	return out
}

// CancelInput records why a sale was voided.
type CancelInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	CashierID    *uuid.UUID
	ExhibitionID *uuid.UUID
	Limit        int
	Offset       int
}
