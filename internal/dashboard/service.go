package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/exhibit-pos/exhibit-pos/internal/sales"
)

// RepositoryPort exposes the aggregate queries.
type RepositoryPort interface {
	SalesTotals(ctx context.Context) (SalesTotals, error)
	ProductCounts(ctx context.Context) (ProductCounts, error)
	CountUsers(ctx context.Context) (int, error)
	RecentSales(ctx context.Context, limit int) ([]RecentSale, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	DailyTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
	DayEnd(ctx context.Context, filter DayEndFilter) (DayEndRows, error)
}

// Service coordinates dashboard queries with the cache layer.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Stats returns the dashboard summary, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	today := s.now().UTC()
	key, err := s.cache.BuildKey(ctx, "dashboard", "stats", today.Format("2006-01-02"))
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.loadStats(ctx, today)
	})
	return out, err
}

func (s *Service) loadStats(ctx context.Context, today time.Time) (Stats, error) {
	stats := Stats{GeneratedAt: today}
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -chartDays)
	var daily map[string]decimal.Decimal

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.SalesTotals(ctx)
		stats.TotalSales, stats.TotalTransactions = totals.Amount, totals.Count
		return err
	})
	g.Go(func() error {
		counts, err := s.repo.ProductCounts(ctx)
		stats.TotalProducts, stats.LowStockProducts = counts.Active, counts.LowStock
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountUsers(ctx)
		stats.TotalUsers = n
		return err
	})
	g.Go(func() error {
		recent, err := s.repo.RecentSales(ctx, recentSalesLimit)
		stats.RecentSales = recent
		return err
	})
	g.Go(func() error {
		top, err := s.repo.TopProducts(ctx, topProductsLimit)
		stats.TopSellingProducts = top
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.repo.DailyTotals(ctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.SalesChartData = fillChart(start, chartDays, daily)
	if stats.RecentSales == nil {
		stats.RecentSales = []RecentSale{}
	}
	if stats.TopSellingProducts == nil {
		stats.TopSellingProducts = []TopProduct{}
	}
	return stats, nil
}

// fillChart returns one point per day from start, oldest first, with zero for
// days without sales.
func fillChart(start time.Time, days int, totals map[string]decimal.Decimal) []ChartPoint {
	out := make([]ChartPoint, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, ChartPoint{Date: day, Sales: totals[day]})
	}
	return out
}

// DayEnd builds the close-out report for a day and optionally one exhibition.
// Cash is reported net of change handed back.
func (s *Service) DayEnd(ctx context.Context, filter DayEndFilter) (DayEndReport, error) {
	if filter.Date.IsZero() {
		filter.Date = s.now()
	}
	day, _ := filter.Window()
	parts := []string{"dashboard", "dayend", day.Format("2006-01-02")}
	if filter.ExhibitionID != nil {
		parts = append(parts, filter.ExhibitionID.String())
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		return DayEndReport{}, err
	}
	var out DayEndReport
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.DayEnd(ctx, filter)
		if err != nil {
			return nil, err
		}
		return buildDayEnd(day, filter, rows), nil
	})
	return out, err
}

func buildDayEnd(day time.Time, filter DayEndFilter, rows DayEndRows) DayEndReport {
	report := DayEndReport{
		Date:              day.Format("2006-01-02"),
		ExhibitionID:      filter.ExhibitionID,
		TotalTransactions: rows.Totals.Count,
		TotalSales:        rows.Totals.Amount,
		CancelledCount:    rows.Cancelled,
		ChangeGiven:       rows.ChangeGiven,
		Cashiers:          rows.Cashiers,
	}
	if rows.Totals.Count > 0 {
		report.AverageTransaction = rows.Totals.Amount.Div(decimal.NewFromInt(int64(rows.Totals.Count))).Round(2)
	}
	payments := make([]PaymentTotal, 0, len(rows.Payments))
	for _, p := range rows.Payments {
		if p.Type == string(sales.PaymentCash) {
			p.Amount = p.Amount.Sub(rows.ChangeGiven)
		}
		payments = append(payments, p)
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].Type < payments[j].Type })
	report.Payments = payments
	if report.Cashiers == nil {
		report.Cashiers = []CashierTotal{}
	}
	return report
}

// Invalidate drops every cached aggregate.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump", slog.Any("error", err))
	}
}

// SaleCommitted implements sales.Listener.
func (s *Service) SaleCommitted(ctx context.Context, _ sales.Sale) { s.Invalidate(ctx) }

// SaleCancelled implements sales.Listener.
func (s *Service) SaleCancelled(ctx context.Context, _ sales.Sale) { s.Invalidate(ctx) }

// SaleFailed implements sales.Listener.
func (s *Service) SaleFailed(context.Context, error) {}

var _ sales.Listener = (*Service)(nil)

// Warm precomputes today's stats.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Stats(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
