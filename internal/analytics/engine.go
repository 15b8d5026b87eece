package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"omset/backend/internal/domain"
)

const (
	weekDays  = 7
	monthDays = 30
)

// Engine folds a ledger snapshot into dashboard metrics. It holds no state beyond the
// location used to decide which calendar day "now" falls on.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Summarize computes revenue windows, unit counts and the best seller. Revenue is
// quantity * price per row; the stored total is ignored here.
func (e *Engine) Summarize(now time.Time, ledger []domain.TransactionView) domain.DashboardSummary {
	today := domain.DateOf(now.In(e.loc))
	weekStart := today.AddDays(-(weekDays - 1))
	monthStart := today.AddDays(-(monthDays - 1))

	summary := domain.DashboardSummary{
		TodayRevenue: decimal.Zero,
		WeekRevenue:  decimal.Zero,
		MonthRevenue: decimal.Zero,
		ProductSales: []domain.ProductSales{},
	}

	byProduct := make(map[int64]*domain.ProductSales)
	for _, row := range ledger {
		summary.TotalUnitsSold += int64(row.Quantity)

		sales, ok := byProduct[row.ProductID]
		if !ok {
			sales = &domain.ProductSales{ProductID: row.ProductID, Name: row.ProductName}
			byProduct[row.ProductID] = sales
		}
		sales.TotalSold += int64(row.Quantity)

		day := row.TransactionDate
		if day.After(today) {
			continue
		}
		revenue := domain.LineTotal(row.Quantity, row.Price)
		if !day.Before(monthStart) {
			summary.MonthRevenue = summary.MonthRevenue.Add(revenue)
		}
		if !day.Before(weekStart) {
			summary.WeekRevenue = summary.WeekRevenue.Add(revenue)
		}
		if day.Equal(today) {
			summary.TodayRevenue = summary.TodayRevenue.Add(revenue)
		}
	}

	for _, sales := range byProduct {
		summary.ProductSales = append(summary.ProductSales, *sales)
	}
	sort.Slice(summary.ProductSales, func(i, j int) bool {
		a, b := summary.ProductSales[i], summary.ProductSales[j]
		if a.TotalSold != b.TotalSold {
			return a.TotalSold > b.TotalSold
		}
		return a.ProductID < b.ProductID
	})

	if len(summary.ProductSales) > 0 {
		best := summary.ProductSales[0].Name
		summary.BestSellingProduct = &best
	}
	return summary
}
