package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exhibit-pos/exhibit-pos/internal/catalog"
	"github.com/exhibit-pos/exhibit-pos/internal/exhibitions"
	"github.com/exhibit-pos/exhibit-pos/internal/inventory"
	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
	"github.com/exhibit-pos/exhibit-pos/internal/pricing"
	"github.com/exhibit-pos/exhibit-pos/internal/rbac"
	"github.com/exhibit-pos/exhibit-pos/internal/shared"
)

// RepositoryPort abstracts sale persistence.
type RepositoryPort interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
	MarkCancelled(ctx context.Context, id, by uuid.UUID, reason string, at time.Time) (Sale, error)
}

// ProductReader resolves catalog products.
type ProductReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// ExhibitionReader resolves exhibitions.
type ExhibitionReader interface {
	Get(ctx context.Context, id uuid.UUID) (exhibitions.Exhibition, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Listener observes sale lifecycle events after they are durable.
type Listener interface {
	SaleCommitted(ctx context.Context, sale Sale)
	SaleCancelled(ctx context.Context, sale Sale)
	SaleFailed(ctx context.Context, err error)
}

// Service finalizes, lists and cancels sales.
type Service struct {
	repo        RepositoryPort
	products    ProductReader
	exhibitions ExhibitionReader
	stock       *inventory.Service
	policies    pricing.Policies
	numbers     NumberSource
	audit       AuditPort
	listeners   []Listener
	logger      *slog.Logger
	validator   *validator.Validate
	now         func() time.Time
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo        RepositoryPort
	Products    ProductReader
	Exhibitions ExhibitionReader
	Stock       *inventory.Service
	Policies    pricing.Policies
	Numbers     NumberSource
	Audit       AuditPort
	Listeners   []Listener
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(d Deps) *Service {
	if d.Numbers == nil {
		d.Numbers = NewSequenceNumbers()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		repo:        d.Repo,
		products:    d.Products,
		exhibitions: d.Exhibitions,
		stock:       d.Stock,
		policies:    d.Policies,
		numbers:     d.Numbers,
		audit:       d.Audit,
		listeners:   d.Listeners,
		logger:      d.Logger,
		validator:   validator.New(),
		now:         time.Now,
	}
}

// ============================================================================
// FINALIZATION
// ============================================================================

// FinalizeSale validates the request, takes stock for every item in order,
// prices the sale and persists it. On any failure after the first stock
// decrement every taken line is restored in reverse order before the error
// is returned.
func (s *Service) FinalizeSale(ctx context.Context, in FinalizeInput) (Receipt, error) {
	if err := s.prepare(ctx, &in); err != nil {
		s.notifyFailed(ctx, err)
		return Receipt{}, err
	}

	reservation := s.stock.Reserve()
	sale, err := s.commit(ctx, in, reservation)
	if err != nil {
		if relErr := reservation.Release(ctx); relErr != nil {
			s.logger.Error("sale compensation incomplete", slog.Any("error", relErr))
			err = errors.Join(err, fmt.Errorf("compensate: %w", relErr))
		}
		s.notifyFailed(ctx, err)
		return Receipt{}, err
	}

	s.logger.Info("sale finalized",
		slog.String("sale_number", sale.SaleNumber),
		slog.String("cashier", sale.CashierName),
		slog.String("total", sale.TotalAmount.StringFixed(2)),
		slog.String("status", string(sale.Status)))
	s.record(ctx, sale.CashierID, "sales:finalize", sale)
	for _, l := range s.listeners {
		l.SaleCommitted(ctx, sale)
	}
	return Receipt{
		ID:          sale.ID,
		SaleNumber:  sale.SaleNumber,
		TotalAmount: sale.TotalAmount,
		ChangeGiven: sale.ChangeGiven,
		Status:      sale.Status,
		Sale:        sale,
	}, nil
}

// prepare checks everything that can be checked without touching stock.
func (s *Service) prepare(ctx context.Context, in *FinalizeInput) error {
	if in.Cashier.ID == uuid.Nil {
		return fmt.Errorf("%w: cashier required", httpx.ErrUnauthorized)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", httpx.ErrValidation)
	}
	if in.Customer != nil {
		if err := s.validator.Struct(in.Customer); err != nil {
			return err
		}
	}
	if in.Channel == "" {
		in.Channel = pricing.ChannelPOS
		if in.ExhibitionID != nil {
			in.Channel = pricing.ChannelExhibition
		}
	}
	if !in.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", httpx.ErrValidation, in.Channel)
	}
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item %d: product_id required", httpx.ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive, got %d", httpx.ErrValidation, i+1, item.Quantity)
		}
		if item.UnitPriceOverride != nil {
			if !in.AllowPriceOverride {
				return fmt.Errorf("%w: price override requires %s", httpx.ErrForbidden, rbac.PermPriceOverride)
			}
			if item.UnitPriceOverride.IsNegative() {
				return fmt.Errorf("%w: item %d: unit price must not be negative", httpx.ErrValidation, i+1)
			}
			if err := pricing.RequireCents(fmt.Sprintf("item %d: unit price", i+1), *item.UnitPriceOverride); err != nil {
				return err
			}
		}
	}
	if in.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount must not be negative", httpx.ErrValidation)
	}
	if err := pricing.RequireCents("discount", in.DiscountAmount); err != nil {
		return err
	}
	for i, p := range in.Payments {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: payment %d: unknown type %q", httpx.ErrValidation, i+1, p.Type)
		}
		if p.Amount.IsNegative() {
			return fmt.Errorf("%w: payment %d: amount must not be negative", httpx.ErrValidation, i+1)
		}
		if err := pricing.RequireCents(fmt.Sprintf("payment %d: amount", i+1), p.Amount); err != nil {
			return err
		}
	}
	if in.ExhibitionID != nil {
		if s.exhibitions == nil {
			return fmt.Errorf("%w: exhibition sales are not enabled", httpx.ErrValidation)
		}
		e, err := s.exhibitions.Get(ctx, *in.ExhibitionID)
		if err != nil {
			return err
		}
		if !e.Sellable() {
			return exhibitions.ErrClosed
		}
	}
	return nil
}

func (s *Service) commit(ctx context.Context, in FinalizeInput, reservation *inventory.Reservation) (Sale, error) {
	exhibitionID := uuid.Nil
	if in.ExhibitionID != nil {
		exhibitionID = *in.ExhibitionID
	}

	items := make([]LineItem, 0, len(in.Items))
	lineTotals := make([]decimal.Decimal, 0, len(in.Items))
	for _, req := range in.Items {
		product, err := s.products.GetProduct(ctx, req.ProductID)
		if err != nil {
			return Sale{}, err
		}
		if product.Status == catalog.StatusInactive {
			return Sale{}, fmt.Errorf("%w: product %s is not for sale", httpx.ErrValidation, product.Name)
		}

		unit := pricing.UnitPrice(product.Price, product.PricingVariations(), req.VariationSelection)
		if req.UnitPriceOverride != nil {
			unit = *req.UnitPriceOverride
		}
		if unit.IsNegative() {
			return Sale{}, fmt.Errorf("%w: product %s: unit price %s is negative", httpx.ErrValidation, product.Name, unit.String())
		}
		if err := pricing.RequireCents("product "+product.Name+": unit price", unit); err != nil {
			return Sale{}, err
		}
		total, err := pricing.LineTotal(unit, req.Quantity)
		if err != nil {
			return Sale{}, err
		}

		if err := reservation.Take(ctx, inventory.Line{
			ProductID:    product.ID,
			ExhibitionID: exhibitionID,
			ProductName:  product.Name,
			Qty:          req.Quantity,
		}); err != nil {
			return Sale{}, err
		}

		items = append(items, LineItem{
			ProductID:          product.ID,
			ProductName:        product.Name,
			SKU:                product.SKU,
			Quantity:           req.Quantity,
			UnitPrice:          unit,
			TotalPrice:         total,
			VariationSelection: req.VariationSelection,
		})
		lineTotals = append(lineTotals, total)
	}

	totals, err := pricing.Compute(s.policies.For(in.Channel), lineTotals, in.DiscountAmount)
	if err != nil {
		return Sale{}, err
	}

	paid := decimal.Zero
	for _, p := range in.Payments {
		paid = paid.Add(p.Amount)
	}
	status := StatusCompleted
	if paid.LessThan(totals.Total) {
		status = StatusPending
	}
	payments := in.Payments
	if payments == nil {
		payments = []Payment{}
	}

	sale := Sale{
		Channel:        in.Channel,
		ExhibitionID:   in.ExhibitionID,
		CashierID:      in.Cashier.ID,
		CashierName:    in.Cashier.Name,
		Customer:       in.Customer,
		Items:          items,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.Tax,
		DiscountAmount: totals.Discount,
		ShippingAmount: totals.Shipping,
		TotalAmount:    totals.Total,
		Payments:       payments,
		AmountPaid:     paid,
		ChangeGiven:    pricing.Change(paid, totals.Total),
		Status:         status,
	}
	return s.insert(ctx, sale)
}

// insert stores the sale, retrying once with a fresh number if the first
// one is already taken.
func (s *Service) insert(ctx context.Context, sale Sale) (Sale, error) {
	for attempt := 1; ; attempt++ {
		sale.SaleNumber = s.numbers.Next(s.now())
		stored, err := s.repo.InsertSale(ctx, sale)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, ErrSaleNumberTaken) && attempt == 1 {
			s.logger.Warn("sale number collision, retrying", slog.String("sale_number", sale.SaleNumber))
			continue
		}
		return Sale{}, fmt.Errorf("insert sale: %w", err)
	}
}

func (s *Service) notifyFailed(ctx context.Context, err error) {
	for _, l := range s.listeners {
		l.SaleFailed(ctx, err)
	}
}

func (s *Service) record(ctx context.Context, actor uuid.UUID, action string, sale Sale) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "sale",
		EntityID: sale.ID.String(),
		Meta: map[string]any{
			"sale_number": sale.SaleNumber,
			"total":       sale.TotalAmount.StringFixed(2),
			"status":      sale.Status,
		},
	})
	if err != nil {
		s.logger.Warn("audit sale", slog.String("action", action), slog.Any("error", err))
	}
}

// ============================================================================
// QUERIES AND CANCELLATION
// ============================================================================

// GetSale returns one sale. Callers without the reports capability may only
// read their own sales.
func (s *Service) GetSale(ctx context.Context, actor rbac.Principal, id uuid.UUID) (Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	if !actor.Can(rbac.PermReports) && sale.CashierID != actor.UserID {
		return Sale{}, ErrNotFound
	}
	return sale, nil
}

// ListSales returns all sales for callers holding reports and only their own
// sales for everyone else.
func (s *Service) ListSales(ctx context.Context, actor rbac.Principal, filter ListFilter) ([]Sale, int, error) {
	if !actor.Can(rbac.PermReports) {
		id := actor.UserID
		filter.CashierID = &id
	}
	return s.repo.ListSales(ctx, filter)
}

// ListByExhibition returns the sales recorded against an exhibition.
func (s *Service) ListByExhibition(ctx context.Context, exhibitionID uuid.UUID, filter ListFilter) ([]Sale, int, error) {
	if s.exhibitions != nil {
		if _, err := s.exhibitions.Get(ctx, exhibitionID); err != nil {
			return nil, 0, err
		}
	}
	filter.ExhibitionID = &exhibitionID
	return s.repo.ListSales(ctx, filter)
}

// CancelSale voids a sale and returns its items to the counters they were
// taken from.
func (s *Service) CancelSale(ctx context.Context, actor rbac.Principal, id uuid.UUID, in CancelInput) (Sale, error) {
	if !actor.Can(rbac.PermSalesCancel) {
		return Sale{}, fmt.Errorf("%w: cancelling a sale requires %s", httpx.ErrForbidden, rbac.PermSalesCancel)
	}
	if err := s.validator.Struct(in); err != nil {
		return Sale{}, err
	}
	sale, err := s.repo.MarkCancelled(ctx, id, actor.UserID, in.Reason, s.now().UTC())
	if err != nil {
		return Sale{}, err
	}
	if err := s.stock.Restock(ctx, sale.StockLines()); err != nil {
		// The sale stays cancelled; the failed lines are logged by inventory.
		s.logger.Error("restock cancelled sale", slog.String("sale_number", sale.SaleNumber), slog.Any("error", err))
		return sale, fmt.Errorf("restock cancelled sale %s: %w", sale.SaleNumber, err)
	}
	s.record(ctx, actor.UserID, "sales:cancel", sale)
	for _, l := range s.listeners {
		l.SaleCancelled(ctx, sale)
	}
	return sale, nil
}
