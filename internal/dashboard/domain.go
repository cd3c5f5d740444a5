// Package dashboard aggregates read-only sales and inventory figures.
package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	recentSalesLimit = 5
	topProductsLimit = 5
	chartDays        = 7
)

// Stats is the dashboard summary. Amounts exclude cancelled sales.
type Stats struct {
	TotalSales         decimal.Decimal `json:"total_sales"`
	TotalTransactions  int             `json:"total_transactions"`
	TotalProducts      int             `json:"total_products"`
	TotalUsers         int             `json:"total_users"`
	LowStockProducts   int             `json:"low_stock_products"`
	RecentSales        []RecentSale    `json:"recent_sales"`
	TopSellingProducts []TopProduct    `json:"top_selling_products"`
	SalesChartData     []ChartPoint    `json:"sales_chart_data"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// RecentSale is a compact sale row.
type RecentSale struct {
	ID          uuid.UUID       `json:"id"`
	SaleNumber  string          `json:"sale_number"`
	CashierName string          `json:"cashier_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name"`
	TotalQuantity int       `json:"total_quantity"`
}

// ChartPoint is the sales total for one calendar day (UTC).
type ChartPoint struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
}

// SalesTotals aggregates non-cancelled sales.
type SalesTotals struct {
	Amount decimal.Decimal
	Count  int
}

// ProductCounts aggregates the catalog.
type ProductCounts struct {
	Active   int
	LowStock int
}

// DayEndFilter scopes a day-end report.
type DayEndFilter struct {
	Date         time.Time
	ExhibitionID *uuid.UUID
}

// Window returns the [start, end) bounds of the filter's day in UTC.
func (f DayEndFilter) Window() (time.Time, time.Time) {
	d := f.Date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// PaymentTotal sums one tender type.
type PaymentTotal struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// CashierTotal sums the sales of one cashier.
type CashierTotal struct {
	CashierID    uuid.UUID       `json:"cashier_id"`
	CashierName  string          `json:"cashier_name"`
	Transactions int             `json:"transactions"`
	Total        decimal.Decimal `json:"total"`
}

// DayEndReport closes out one trading day.
type DayEndReport struct {
	Date               string          `json:"date"`
	ExhibitionID       *uuid.UUID      `json:"exhibition_id,omitempty"`
	TotalTransactions  int             `json:"total_transactions"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	AverageTransaction decimal.Decimal `json:"average_transaction_value"`
	CancelledCount     int             `json:"cancelled_transactions"`
	ChangeGiven        decimal.Decimal `json:"change_given"`
	Payments           []PaymentTotal  `json:"payment_breakdown"`
	Cashiers           []CashierTotal  `json:"cashiers"`
}

// DayEndRows is the raw material of a DayEndReport.
type DayEndRows struct {
	Totals      SalesTotals
	Cancelled   int
	ChangeGiven decimal.Decimal
	Payments    []PaymentTotal
	Cashiers    []CashierTotal
}
