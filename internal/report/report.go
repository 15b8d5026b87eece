// Package report renders the transaction ledger as downloadable spreadsheets and PDFs.
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"omset/backend/internal/domain"
)

const (
	SheetName = "Sales Report"
	Title     = "Laporan Penjualan"
)

var Columns = []string{"ID", "Date", "Product", "Quantity", "Unit Price", "Total"}

// FormatIDR renders an amount as Indonesian rupiah, e.g. "Rp 12.500". Fractions are rounded away.
func FormatIDR(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	digits := rounded.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp " + b.String()
}

// GrandTotal sums quantity * price over the rows.
func GrandTotal(rows []domain.TransactionView) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(domain.LineTotal(row.Quantity, row.Price))
	}
	return total
}
