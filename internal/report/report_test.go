package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"omset/backend/internal/domain"
)

func sampleLedger() []domain.TransactionView {
	return []domain.TransactionView{
		{
			Transaction: domain.Transaction{
				ID:              2,
				TransactionDate: domain.NewDate(2026, time.October, 18),
				ProductID:       1,
				Quantity:        3,
				Price:           decimal.NewFromInt(18000),
				Total:           decimal.NewFromInt(54000),
			},
			ProductName: "Kopi Susu Gula Aren",
		},
		{
			Transaction: domain.Transaction{
				ID:              1,
				TransactionDate: domain.NewDate(2026, time.October, 17),
				ProductID:       2,
				Quantity:        2,
				Price:           decimal.RequireFromString("4500.50"),
				Total:           decimal.RequireFromString("9001"),
			},
			ProductName: "Es Teh Manis",
		},
	}
}

func TestFormatIDR(t *testing.T) {
	cases := map[string]string{
		"0":         "Rp 0",
		"500":       "Rp 500",
		"12500":     "Rp 12.500",
		"1000000":   "Rp 1.000.000",
		"4500.50":   "Rp 4.501",
		"-250000":   "-Rp 250.000",
		"123456789": "Rp 123.456.789",
	}
	for raw, want := range cases {
		assert.Equal(t, want, FormatIDR(decimal.RequireFromString(raw)), raw)
	}
}

func TestGrandTotalRecomputesFromQuantityAndPrice(t *testing.T) {
	assert.True(t, GrandTotal(sampleLedger()).Equal(decimal.NewFromInt(63001)))
	assert.True(t, GrandTotal(nil).IsZero())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleLedger()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "2026-10-18", rows[1][1])
	assert.Equal(t, "Kopi Susu Gula Aren", rows[1][2])
	assert.Equal(t, "3", rows[1][3])

	raw, err := f.GetCellValue(SheetName, "F2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "54000", raw)
}

func TestWriteXLSXEmptyLedgerHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleLedger(), time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}
