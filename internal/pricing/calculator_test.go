package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeCounterSale(t *testing.T) {
	policies := DefaultPolicies()

	first, err := LineTotal(dec("150"), 2)
	require.NoError(t, err)
	second, err := LineTotal(dec("85"), 1)
	require.NoError(t, err)

	totals, err := Compute(policies.For(ChannelExhibition), []decimal.Decimal{first, second}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(dec("385")), totals.Subtotal.String())
	assert.True(t, totals.Tax.Equal(dec("19.25")), totals.Tax.String())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Total.Equal(dec("404.25")), totals.Total.String())

	assert.True(t, Change(dec("404.25"), totals.Total).IsZero())
	assert.True(t, Change(dec("500"), totals.Total).Equal(dec("95.75")))
	assert.True(t, Change(dec("100"), totals.Total).IsZero())
}

func TestComputeTotalIdentity(t *testing.T) {
	policy := Policy{TaxRate: dec("0.0725")}
	lines := []decimal.Decimal{dec("19.99"), dec("0.01"), dec("3.33"), dec("3.33")}
	totals, err := Compute(policy, lines, dec("1.50"))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l)
	}
	assert.True(t, totals.Subtotal.Equal(sum))
	expected := totals.Subtotal.Sub(totals.Discount).Add(totals.Tax).Add(totals.Shipping)
	assert.True(t, totals.Total.Equal(expected))
	assert.Equal(t, int32(-2), totals.Tax.Exponent())
}

func TestComputeRejectsDiscountOutsideSubtotal(t *testing.T) {
	policy := DefaultPolicies().Counter

	_, err := Compute(policy, []decimal.Decimal{dec("10")}, dec("10.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	_, err = Compute(policy, []decimal.Decimal{dec("10")}, dec("-1"))
	require.ErrorIs(t, err, httpx.ErrValidation)

	totals, err := Compute(policy, []decimal.Decimal{dec("10")}, dec("10"))
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
}

func TestOnlineShippingThreshold(t *testing.T) {
	online := DefaultPolicies().For(ChannelOnline)

	below, err := Compute(online, []decimal.Decimal{dec("199.99")}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, below.Shipping.Equal(dec("15")))
	assert.True(t, below.Tax.Equal(dec("20.00")))
	assert.True(t, below.Total.Equal(dec("234.99")), below.Total.String())

	above, err := Compute(online, []decimal.Decimal{dec("200")}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, above.Shipping.IsZero())
}

func TestUnitPriceVariations(t *testing.T) {
	variations := []Variation{
		{Name: "size", Value: "L", PriceAdjustment: dec("5")},
		{Name: "size", Value: "S", PriceAdjustment: dec("-2")},
		{Name: "color", Value: "gold", PriceAdjustment: dec("12.50")},
	}

	assert.True(t, UnitPrice(dec("100"), variations, nil).Equal(dec("100")))
	assert.True(t, UnitPrice(dec("100"), variations, map[string]string{"size": "L"}).Equal(dec("105")))
	assert.True(t, UnitPrice(dec("100"), variations, map[string]string{"size": "L", "color": "gold"}).Equal(dec("117.50")))
	assert.True(t, UnitPrice(dec("100"), variations, map[string]string{"size": "XL", "finish": "matte"}).Equal(dec("100")))
}

func TestLineTotalRejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -3} {
		_, err := LineTotal(dec("10"), qty)
		require.ErrorIs(t, err, httpx.ErrValidation)
	}
}

func TestRequireCents(t *testing.T) {
	for _, ok := range []string{"0", "10", "10.5", "10.55", "10.500", "-3.20"} {
		assert.NoError(t, RequireCents("amount", dec(ok)), ok)
	}
	for _, bad := range []string{"10.555", "0.001", "20.123"} {
		err := RequireCents("amount", dec(bad))
		assert.True(t, errors.Is(err, httpx.ErrValidation), bad)
	}
}
