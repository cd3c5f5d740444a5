package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	"github.com/exhibit-pos/exhibit-pos/internal/exhibitions"
	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/inventory/inventorytest"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
)

// ============================================================================
// FIXTURES
// ============================================================================

type memoryRepo struct {
	mu        sync.Mutex
	sales     map[uuid.UUID]Sale
	numbers   map[string]bool
	insertErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sales: make(map[uuid.UUID]Sale), numbers: make(map[string]bool)}
}

func (m *memoryRepo) InsertSale(_ context.Context, s Sale) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return Sale{}, m.insertErr
	}
	if m.numbers[s.SaleNumber] {
		return Sale{}, ErrSaleNumberTaken
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	m.numbers[s.SaleNumber] = true
	m.sales[s.ID] = s
	return s, nil
}

func (m *memoryRepo) GetSale(_ context.Context, id uuid.UUID) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListSales(_ context.Context, filter ListFilter) ([]Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sale
	for _, s := range m.sales {
		if filter.CashierID != nil && s.CashierID != *filter.CashierID {
			continue
		}
		if filter.ExhibitionID != nil && (s.ExhibitionID == nil || *s.ExhibitionID != *filter.ExhibitionID) {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memoryRepo) MarkCancelled(_ context.Context, id, by uuid.UUID, reason string, at time.Time) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	if s.Status == StatusCancelled {
		return Sale{}, ErrAlreadyCancelled
	}
	s.Status = StatusCancelled
	s.CancelledAt = &at
	s.CancelledBy = &by
	s.CancelReason = reason
	m.sales[id] = s
	return s, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

type productBook map[uuid.UUID]catalog.Product

func (b productBook) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := b[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: product", httpx.ErrNotFound)
	}
	return p, nil
}

type exhibitionBook map[uuid.UUID]exhibitions.Exhibition

func (b exhibitionBook) Get(_ context.Context, id uuid.UUID) (exhibitions.Exhibition, error) {
	e, ok := b[id]
	if !ok {
		return exhibitions.Exhibition{}, exhibitions.ErrNotFound
	}
	return e, nil
}

type fixedNumbers struct {
	mu    sync.Mutex
	queue []string
}

func (f *fixedNumbers) Next(time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	return n
}

type recordingListener struct {
	mu        sync.Mutex
	committed []Sale
	cancelled []Sale
	failed    []error
}

func (l *recordingListener) SaleCommitted(_ context.Context, s Sale) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committed = append(l.committed, s)
}

func (l *recordingListener) SaleCancelled(_ context.Context, s Sale) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled = append(l.cancelled, s)
}

func (l *recordingListener) SaleFailed(_ context.Context, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

type harness struct {
	svc         *Service
	repo        *memoryRepo
	stock       *inventorytest.Memory
	products    productBook
	exhibitions exhibitionBook
	listener    *recordingListener
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:        newMemoryRepo(),
		stock:       inventorytest.NewMemory(),
		products:    productBook{},
		exhibitions: exhibitionBook{},
		listener:    &recordingListener{},
	}
	h.svc = NewService(Deps{
		Repo:        h.repo,
		Products:    h.products,
		Exhibitions: h.exhibitions,
		Stock:       inventory.NewService(h.stock, h.stock, nil, nil),
		Policies:    pricing.DefaultPolicies(),
		Listeners:   []Listener{h.listener},
	})
	return h
}

func (h *harness) product(name, price string, stock int) catalog.Product {
	p := catalog.Product{
		ID:            uuid.New(),
		Name:          name,
		SKU:           "SKU-" + name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		MinStockLevel: catalog.DefaultMinStockLevel,
		Status:        catalog.StatusActive,
	}
	h.products[p.ID] = p
	h.stock.SetStock(p.ID, name, stock)
	return p
}

var cashier = Cashier{ID: uuid.New(), Name: "Dana"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cash(amount string) []Payment {
	return []Payment{{Type: PaymentCash, Amount: dec(amount)}}
}

// ============================================================================
// FINALIZATION
// ============================================================================

func TestFinalizeWorkedExample(t *testing.T) {
	h := newHarness(t)
	scarf := h.product("Silk Scarf", "150.00", 10)
	mug := h.product("Mug", "85.00", 10)

	items := []ItemInput{{ProductID: scarf.ID, Quantity: 2}, {ProductID: mug.ID, Quantity: 1}}

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: items, Payments: cash("404.25")})
	require.NoError(t, err)
	require.True(t, receipt.Sale.Subtotal.Equal(dec("385")))
	require.True(t, receipt.Sale.TaxAmount.Equal(dec("19.25")))
	require.True(t, receipt.TotalAmount.Equal(dec("404.25")))
	require.True(t, receipt.ChangeGiven.IsZero())
	require.Equal(t, StatusCompleted, receipt.Status)
	require.Regexp(t, `^SALE-\d{8}-[0-9A-F]{8}$`, receipt.SaleNumber)
	require.Equal(t, pricing.ChannelPOS, receipt.Sale.Channel)

	receipt, err = h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: items, Payments: cash("500")})
	require.NoError(t, err)
	require.True(t, receipt.ChangeGiven.Equal(dec("95.75")))

	require.Equal(t, 6, h.stock.Stock(scarf.ID))
	require.Equal(t, 8, h.stock.Stock(mug.ID))

	line := receipt.Sale.Items[0]
	require.Equal(t, "Silk Scarf", line.ProductName)
	require.Equal(t, "SKU-Silk Scarf", line.SKU)
	require.True(t, line.TotalPrice.Equal(dec("300")))
	require.Len(t, h.listener.committed, 2)
}

func TestFinalizeTotalsIdentity(t *testing.T) {
	h := newHarness(t)
	a := h.product("Print", "19.99", 50)
	b := h.product("Frame", "7.35", 50)

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:        cashier,
		Items:          []ItemInput{{ProductID: a.ID, Quantity: 3}, {ProductID: b.ID, Quantity: 7}},
		DiscountAmount: dec("4.10"),
		Payments:       []Payment{{Type: PaymentCard, Amount: dec("50")}, {Type: PaymentCash, Amount: dec("60")}},
	})
	require.NoError(t, err)
	s := receipt.Sale

	sum := decimal.Zero
	for _, item := range s.Items {
		sum = sum.Add(item.TotalPrice)
	}
	require.True(t, s.Subtotal.Equal(sum))
	require.True(t, s.TotalAmount.Equal(s.Subtotal.Sub(s.DiscountAmount).Add(s.TaxAmount).Add(s.ShippingAmount)))
	require.True(t, s.AmountPaid.Equal(dec("110")))
	require.True(t, s.ChangeGiven.Equal(decimal.Max(decimal.Zero, s.AmountPaid.Sub(s.TotalAmount))))
}

func TestFinalizeUnderpaidIsPending(t *testing.T) {
	h := newHarness(t)
	p := h.product("Poster", "40.00", 5)

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:  cashier,
		Items:    []ItemInput{{ProductID: p.ID, Quantity: 1}},
		Payments: cash("10"),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, receipt.Status)
	require.True(t, receipt.ChangeGiven.IsZero())
}

func TestFinalizeInsufficientStockLeavesStock(t *testing.T) {
	h := newHarness(t)
	p := h.product("Lamp", "99.00", 5)

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items:   []ItemInput{{ProductID: p.ID, Quantity: 6}},
	})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, "Lamp", short.ProductName)
	require.Equal(t, 5, short.Available)
	require.ErrorIs(t, err, httpx.ErrInsufficientStock)
	require.Equal(t, 5, h.stock.Stock(p.ID))
	require.Zero(t, h.repo.count())
	require.Len(t, h.listener.failed, 1)
}

func TestFinalizeConcurrentSalesNeverOversell(t *testing.T) {
	h := newHarness(t)
	p := h.product("Vase", "30.00", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.FinalizeSale(context.Background(), FinalizeInput{
				Cashier:  cashier,
				Items:    []ItemInput{{ProductID: p.ID, Quantity: 3}},
				Payments: cash("100"),
			})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, httpx.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, short)
	require.Equal(t, 2, h.stock.Stock(p.ID))
	require.Equal(t, 1, h.repo.count())
}

func TestFinalizeCompensatesEarlierItems(t *testing.T) {
	h := newHarness(t)
	first := h.product("Bowl", "20.00", 10)
	second := h.product("Plate", "15.00", 1)
	third := h.product("Cup", "8.00", 10)

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items: []ItemInput{
			{ProductID: first.ID, Quantity: 4},
			{ProductID: second.ID, Quantity: 2},
			{ProductID: third.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInsufficientStock)
	require.Equal(t, 10, h.stock.Stock(first.ID))
	require.Equal(t, 1, h.stock.Stock(second.ID))
	require.Equal(t, 10, h.stock.Stock(third.ID))
	require.Equal(t, 1, h.stock.Increments)
	require.Zero(t, h.repo.count())
}

func TestFinalizeUnknownProductCompensates(t *testing.T) {
	h := newHarness(t)
	p := h.product("Card", "3.50", 10)

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items:   []ItemInput{{ProductID: p.ID, Quantity: 2}, {ProductID: uuid.New(), Quantity: 1}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.Equal(t, 10, h.stock.Stock(p.ID))
}

func TestFinalizePersistenceFailureCompensates(t *testing.T) {
	h := newHarness(t)
	a := h.product("Tote", "25.00", 4)
	b := h.product("Pin", "2.00", 4)
	h.repo.insertErr = errors.New("connection reset")

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items:   []ItemInput{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 3}},
	})
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, 4, h.stock.Stock(a.ID))
	require.Equal(t, 4, h.stock.Stock(b.ID))
}

func TestFinalizeDiscountAboveSubtotalCompensates(t *testing.T) {
	h := newHarness(t)
	p := h.product("Sticker", "1.00", 10)

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:        cashier,
		Items:          []ItemInput{{ProductID: p.ID, Quantity: 2}},
		DiscountAmount: dec("2.01"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, 10, h.stock.Stock(p.ID))
}

func TestFinalizeJoinsCompensationFailure(t *testing.T) {
	h := newHarness(t)
	p := h.product("Mirror", "60.00", 3)
	h.repo.insertErr = errors.New("disk full")
	h.stock.FailIncrement = func(uuid.UUID) error { return errors.New("restock unavailable") }

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items:   []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.ErrorContains(t, err, "disk full")
	require.ErrorContains(t, err, "restock unavailable")
}

func TestFinalizeRejectsBadInputBeforeTakingStock(t *testing.T) {
	h := newHarness(t)
	p := h.product("Brush", "5.00", 10)

	cases := map[string]FinalizeInput{
		"no items":      {Cashier: cashier},
		"zero quantity": {Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 0}}},
		"bad payment":   {Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, Payments: []Payment{{Type: "cheque", Amount: dec("5")}}},
		"negative pay":  {Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, Payments: cash("-1")},
		"bad channel":   {Cashier: cashier, Channel: "mail", Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.FinalizeSale(context.Background(), in)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
	require.Zero(t, h.stock.Decrements)
}

func TestFinalizePriceOverrideNeedsCapability(t *testing.T) {
	h := newHarness(t)
	p := h.product("Rug", "200.00", 2)
	override := dec("150.00")
	items := []ItemInput{{ProductID: p.ID, Quantity: 1, UnitPriceOverride: &override}}

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: items})
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Equal(t, 2, h.stock.Stock(p.ID))

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: items, AllowPriceOverride: true})
	require.NoError(t, err)
	require.True(t, receipt.Sale.Items[0].UnitPrice.Equal(override))
	require.True(t, receipt.Sale.Subtotal.Equal(override))
}

func TestFinalizeAppliesVariationsAndOnlinePolicy(t *testing.T) {
	h := newHarness(t)
	p := h.product("Tee", "20.00", 10)
	p.Variations = []catalog.Variation{
		{Variation: pricing.Variation{Name: "size", Value: "XL", PriceAdjustment: dec("5.00")}},
	}
	h.products[p.ID] = p

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Channel: pricing.ChannelOnline,
		Items:   []ItemInput{{ProductID: p.ID, Quantity: 2, VariationSelection: map[string]string{"size": "XL"}}},
	})
	require.NoError(t, err)
	s := receipt.Sale
	require.True(t, s.Items[0].UnitPrice.Equal(dec("25")))
	require.True(t, s.Subtotal.Equal(dec("50")))
	require.True(t, s.TaxAmount.Equal(dec("5")))
	require.True(t, s.ShippingAmount.Equal(dec("15")))
	require.True(t, s.TotalAmount.Equal(dec("70")))
}

func TestFinalizeRejectsSubCentAmounts(t *testing.T) {
	h := newHarness(t)
	p := h.product("Print", "10.00", 5)
	sub := dec("10.555")
	cases := map[string]FinalizeInput{
		"override": {Cashier: cashier, AllowPriceOverride: true, Items: []ItemInput{{ProductID: p.ID, Quantity: 1, UnitPriceOverride: &sub}}},
		"payment":  {Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, Payments: cash("20.123")},
		"discount": {Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}, DiscountAmount: dec("0.005")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.FinalizeSale(context.Background(), in)
			require.ErrorIs(t, err, httpx.ErrValidation)
			require.Equal(t, 5, h.stock.Stock(p.ID))
		})
	}
}

func TestFinalizeStoredTotalsStayInCents(t *testing.T) {
	h := newHarness(t)
	p := h.product("Card", "3.33", 10)

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:  cashier,
		Items:    []ItemInput{{ProductID: p.ID, Quantity: 3}},
		Payments: cash("20.00"),
	})
	require.NoError(t, err)
	s := receipt.Sale
	for _, d := range []decimal.Decimal{s.Subtotal, s.TaxAmount, s.TotalAmount, s.AmountPaid, s.ChangeGiven, s.Items[0].TotalPrice} {
		require.True(t, pricing.WholeCents(d), d.String())
	}
	require.True(t, s.ChangeGiven.Equal(s.AmountPaid.Sub(s.TotalAmount)))
}

func TestFinalizeRejectsNegativeUnitPrice(t *testing.T) {
	h := newHarness(t)
	vase := h.product("Vase", "100.00", 4)
	mug := h.product("Mug", "5.00", 6)
	mug.Variations = []catalog.Variation{
		{Variation: pricing.Variation{Name: "size", Value: "S", PriceAdjustment: dec("-10.00")}},
	}
	h.products[mug.ID] = mug

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier: cashier,
		Items: []ItemInput{
			{ProductID: vase.ID, Quantity: 1},
			{ProductID: mug.ID, Quantity: 3, VariationSelection: map[string]string{"size": "S"}},
		},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorContains(t, err, "Mug")
	require.Equal(t, 4, h.stock.Stock(vase.ID))
	require.Equal(t, 6, h.stock.Stock(mug.ID))
}

func TestFinalizeInactiveProduct(t *testing.T) {
	h := newHarness(t)
	p := h.product("Retired", "10.00", 10)
	p.Status = catalog.StatusInactive
	h.products[p.ID] = p

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, 10, h.stock.Stock(p.ID))
}

func TestFinalizeFromExhibitionAllocation(t *testing.T) {
	h := newHarness(t)
	p := h.product("Pottery", "45.00", 10)
	expo := exhibitions.Exhibition{ID: uuid.New(), Name: "Autumn Market", Status: exhibitions.StatusActive}
	h.exhibitions[expo.ID] = expo
	_, err := h.stock.Allocate(context.Background(), inventory.AllocationInput{ExhibitionID: expo.ID, ProductID: p.ID, Qty: 4})
	require.NoError(t, err)

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:      cashier,
		ExhibitionID: &expo.ID,
		Items:        []ItemInput{{ProductID: p.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.ChannelExhibition, receipt.Sale.Channel)

	alloc, ok := h.stock.Allocation(expo.ID, p.ID)
	require.True(t, ok)
	require.Equal(t, 3, alloc.Sold)
	require.Equal(t, 1, alloc.Remaining)
	require.Equal(t, 6, h.stock.Stock(p.ID))

	_, err = h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:      cashier,
		ExhibitionID: &expo.ID,
		Items:        []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, httpx.ErrInsufficientStock)

	expo.Status = exhibitions.StatusCompleted
	h.exhibitions[expo.ID] = expo
	_, err = h.svc.FinalizeSale(context.Background(), FinalizeInput{
		Cashier:      cashier,
		ExhibitionID: &expo.ID,
		Items:        []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, exhibitions.ErrClosed)
}

// ============================================================================
// SALE NUMBERS
// ============================================================================

func TestSaleNumbersUniqueWithinDay(t *testing.T) {
	src := NewSequenceNumbers()
	day := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		n := src.Next(day)
		require.Regexp(t, `^SALE-20261018-[0-9A-F]{8}$`, n)
		_, dup := seen[n]
		require.False(t, dup, "duplicate %s", n)
		seen[n] = struct{}{}
	}
}

func TestFinalizeRetriesNumberCollisionOnce(t *testing.T) {
	h := newHarness(t)
	p := h.product("Candle", "12.00", 5)
	h.repo.numbers["SALE-20261018-AAAAAAAA"] = true
	h.svc.numbers = &fixedNumbers{queue: []string{"SALE-20261018-AAAAAAAA", "SALE-20261018-BBBBBBBB"}}

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, "SALE-20261018-BBBBBBBB", receipt.SaleNumber)
	require.Equal(t, 4, h.stock.Stock(p.ID))
}

func TestFinalizeGivesUpAfterSecondCollision(t *testing.T) {
	h := newHarness(t)
	p := h.product("Soap", "6.00", 5)
	h.repo.numbers["SALE-20261018-AAAAAAAA"] = true
	h.svc.numbers = &fixedNumbers{queue: []string{"SALE-20261018-AAAAAAAA"}}

	_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 2}}})
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Equal(t, 5, h.stock.Stock(p.ID))
}

// ============================================================================
// CANCELLATION AND QUERIES
// ============================================================================

func principal(role rbac.Role) rbac.Principal {
	return rbac.Principal{UserID: uuid.New(), Username: string(role), Role: role, Active: true, Permissions: rbac.Effective(role, nil)}
}

func TestCancelSaleRestocks(t *testing.T) {
	h := newHarness(t)
	p := h.product("Basket", "35.00", 6)
	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, Items: []ItemInput{{ProductID: p.ID, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, 2, h.stock.Stock(p.ID))

	_, err = h.svc.CancelSale(context.Background(), principal(rbac.RoleCashier), receipt.ID, CancelInput{})
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Equal(t, 2, h.stock.Stock(p.ID))

	manager := principal(rbac.RoleAdmin)
	sale, err := h.svc.CancelSale(context.Background(), manager, receipt.ID, CancelInput{Reason: "customer returned"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, sale.Status)
	require.Equal(t, manager.UserID, *sale.CancelledBy)
	require.Equal(t, 6, h.stock.Stock(p.ID))
	require.Len(t, h.listener.cancelled, 1)

	_, err = h.svc.CancelSale(context.Background(), manager, receipt.ID, CancelInput{})
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Equal(t, 6, h.stock.Stock(p.ID))
}

func TestCancelExhibitionSaleReturnsAllocation(t *testing.T) {
	h := newHarness(t)
	p := h.product("Weaving", "80.00", 5)
	expo := exhibitions.Exhibition{ID: uuid.New(), Status: exhibitions.StatusActive}
	h.exhibitions[expo.ID] = expo
	_, err := h.stock.Allocate(context.Background(), inventory.AllocationInput{ExhibitionID: expo.ID, ProductID: p.ID, Qty: 3})
	require.NoError(t, err)

	receipt, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{Cashier: cashier, ExhibitionID: &expo.ID, Items: []ItemInput{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)

	_, err = h.svc.CancelSale(context.Background(), principal(rbac.RoleSuperAdmin), receipt.ID, CancelInput{})
	require.NoError(t, err)
	alloc, _ := h.stock.Allocation(expo.ID, p.ID)
	require.Equal(t, 0, alloc.Sold)
	require.Equal(t, 3, alloc.Remaining)
	require.Equal(t, 2, h.stock.Stock(p.ID))
}

func TestListSalesScopedToCashier(t *testing.T) {
	h := newHarness(t)
	p := h.product("Jar", "9.00", 20)
	clerk := principal(rbac.RoleCashier)
	other := principal(rbac.RoleCashier)

	for _, c := range []rbac.Principal{clerk, clerk, other} {
		_, err := h.svc.FinalizeSale(context.Background(), FinalizeInput{
			Cashier: Cashier{ID: c.UserID, Name: c.Username},
			Items:   []ItemInput{{ProductID: p.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	mine, total, err := h.svc.ListSales(context.Background(), clerk, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, s := range mine {
		require.Equal(t, clerk.UserID, s.CashierID)
	}

	_, total, err = h.svc.ListSales(context.Background(), principal(rbac.RoleAdmin), ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)

	_, err = h.svc.GetSale(context.Background(), other, mine[0].ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLegacyInputCanonical(t *testing.T) {
	id := uuid.New()
	in := LegacyInput{
		Items:           []ItemInput{{ProductID: id, Quantity: 2}},
		DiscountAmount:  dec("1"),
		PaymentMethod:   PaymentCard,
		PaymentReceived: dec("50"),
	}.Canonical()
	require.Len(t, in.Payments, 1)
	require.Equal(t, PaymentCard, in.Payments[0].Type)
	require.True(t, in.Payments[0].Amount.Equal(dec("50")))
	require.Equal(t, id, in.Items[0].ProductID)
	require.True(t, in.DiscountAmount.Equal(dec("1")))
}
