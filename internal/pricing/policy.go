// Package pricing computes line prices and sale totals. It performs no I/O.
package pricing

import "github.com/shopspring/decimal"

// Channel identifies where a sale is rung up.
type Channel string

const (
	ChannelPOS        Channel = "pos"
	ChannelExhibition Channel = "exhibition"
	ChannelOnline     Channel = "online"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelPOS, ChannelExhibition, ChannelOnline:
		return true
	}
	return false
}

// Policy holds the tax and shipping parameters applied to a sale.
// A zero ShippingFee disables shipping.
type Policy struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Shipping returns the shipping charge for the given subtotal.
func (p Policy) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !p.ShippingFee.IsPositive() {
		return decimal.Zero
	}
	if subtotal.LessThan(p.FreeShippingThreshold) {
		return p.ShippingFee
	}
	return decimal.Zero
}

// Policies maps sale channels onto pricing policies. Counter covers both
// point-of-sale and exhibition sales.
type Policies struct {
	Counter Policy
	Online  Policy
}

// DefaultPolicies returns the stock rates: 5% at the counter, 10% online with
// a 15.00 shipping fee below 200.00.
func DefaultPolicies() Policies {
	return Policies{
		Counter: Policy{TaxRate: decimal.RequireFromString("0.05")},
		Online: Policy{
			TaxRate:               decimal.RequireFromString("0.10"),
			ShippingFee:           decimal.RequireFromString("15.00"),
			FreeShippingThreshold: decimal.RequireFromString("200.00"),
		},
	}
}

// For returns the policy for a channel.
func (p Policies) For(ch Channel) Policy {
	if ch == ChannelOnline {
		return p.Online
	}
	return p.Counter
}
