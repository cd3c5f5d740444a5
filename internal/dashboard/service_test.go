package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-pos/exhibit-pos/internal/sales"
)

type mockRepo struct {
	totalsCalls atomic.Int32
	totals      SalesTotals
	daily       map[string]decimal.Decimal
	dayEnd      DayEndRows
	gate        chan struct{}
}

func (m *mockRepo) SalesTotals(context.Context) (SalesTotals, error) {
	m.totalsCalls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.totals, nil
}

func (m *mockRepo) ProductCounts(context.Context) (ProductCounts, error) {
	return ProductCounts{Active: 12, LowStock: 3}, nil
}

func (m *mockRepo) CountUsers(context.Context) (int, error) { return 4, nil }

func (m *mockRepo) RecentSales(context.Context, int) ([]RecentSale, error) { return nil, nil }

func (m *mockRepo) TopProducts(context.Context, int) ([]TopProduct, error) {
	return []TopProduct{{ProductID: uuid.New(), ProductName: "Mug", TotalQuantity: 9}}, nil
}

func (m *mockRepo) DailyTotals(context.Context, time.Time, time.Time) (map[string]decimal.Decimal, error) {
	return m.daily, nil
}

func (m *mockRepo) DayEnd(context.Context, DayEndFilter) (DayEndRows, error) { return m.dayEnd, nil }

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute), nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC) }
	return svc
}

func TestStatsZeroFillsChartOldestFirst(t *testing.T) {
	repo := &mockRepo{
		totals: SalesTotals{Amount: decimal.RequireFromString("404.25"), Count: 1},
		daily:  map[string]decimal.Decimal{"2026-10-16": decimal.RequireFromString("404.25")},
	}
	svc := newTestService(t, repo)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "404.25", stats.TotalSales.String())
	require.Equal(t, 12, stats.TotalProducts)
	require.Equal(t, 3, stats.LowStockProducts)
	require.Equal(t, 4, stats.TotalUsers)
	require.Empty(t, stats.RecentSales)
	require.Len(t, stats.TopSellingProducts, 1)

	require.Len(t, stats.SalesChartData, 7)
	require.Equal(t, "2026-10-12", stats.SalesChartData[0].Date)
	require.Equal(t, "2026-10-18", stats.SalesChartData[6].Date)
	require.True(t, stats.SalesChartData[0].Sales.IsZero())
	require.Equal(t, "404.25", stats.SalesChartData[4].Sales.String())
}

func TestStatsCachedUntilBump(t *testing.T) {
	repo := &mockRepo{totals: SalesTotals{Amount: decimal.NewFromInt(10), Count: 1}}
	svc := newTestService(t, repo)

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)
	repo.totals = SalesTotals{Amount: decimal.NewFromInt(25), Count: 2}
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10", stats.TotalSales.String())
	require.EqualValues(t, 1, repo.totalsCalls.Load())

	svc.SaleCommitted(context.Background(), sales.Sale{})
	stats, err = svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "25", stats.TotalSales.String())
	require.EqualValues(t, 2, repo.totalsCalls.Load())
}

func TestStatsCollapsesConcurrentMisses(t *testing.T) {
	repo := &mockRepo{gate: make(chan struct{})}
	svc := newTestService(t, repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Stats(context.Background())
			require.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return repo.totalsCalls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	require.EqualValues(t, 1, repo.totalsCalls.Load())
}

func TestDayEndNetsChangeFromCash(t *testing.T) {
	cashier := uuid.New()
	repo := &mockRepo{dayEnd: DayEndRows{
		Totals:      SalesTotals{Amount: decimal.RequireFromString("751.25"), Count: 3},
		Cancelled:   1,
		ChangeGiven: decimal.RequireFromString("20.75"),
		Payments: []PaymentTotal{
			{Type: "card", Amount: decimal.RequireFromString("246.75")},
			{Type: "cash", Amount: decimal.RequireFromString("525.25")},
		},
		Cashiers: []CashierTotal{{CashierID: cashier, CashierName: "Dana", Transactions: 3, Total: decimal.RequireFromString("751.25")}},
	}}
	svc := newTestService(t, repo)
	expo := uuid.New()

	report, err := svc.DayEnd(context.Background(), DayEndFilter{Date: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), ExhibitionID: &expo})
	require.NoError(t, err)
	require.Equal(t, "2026-10-17", report.Date)
	require.Equal(t, 3, report.TotalTransactions)
	require.Equal(t, 1, report.CancelledCount)
	require.Equal(t, "250.42", report.AverageTransaction.String())
	require.Equal(t, "cash", report.Payments[1].Type)
	require.Equal(t, "504.5", report.Payments[1].Amount.String())
	require.Equal(t, expo, *report.ExhibitionID)
	require.Len(t, report.Cashiers, 1)
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	repo := &mockRepo{totals: SalesTotals{Amount: decimal.NewFromInt(5), Count: 1}}
	svc := NewService(repo, nil, nil)
	_, err := svc.Stats(context.Background())
	require.NoError(t, err)
	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.totalsCalls.Load())
	svc.Invalidate(context.Background())
}
