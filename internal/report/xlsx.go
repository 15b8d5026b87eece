package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"omset/backend/internal/domain"
)

// WriteXLSX writes one sheet with a header row and one row per transaction. Amounts are numeric cells.
func WriteXLSX(w io.Writer, rows []domain.TransactionView) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("xlsx: new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("xlsx: drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}
	// 3 = "#,##0"
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("xlsx: amount style: %w", err)
	}

	for col, name := range Columns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("xlsx: header %s: %w", name, err)
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, row := range rows {
		line := i + 2
		price, _ := row.Price.Float64()
		total, _ := row.Total.Float64()
		values := []any{row.ID, row.TransactionDate.String(), row.ProductName, row.Quantity, price, total}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, line)
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return fmt.Errorf("xlsx: row %d: %w", line, err)
			}
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("E%d", line), fmt.Sprintf("F%d", line), amountStyle); err != nil {
			return fmt.Errorf("xlsx: row %d style: %w", line, err)
		}
	}

	_ = f.SetColWidth(SheetName, "B", "B", 12)
	_ = f.SetColWidth(SheetName, "C", "C", 28)
	_ = f.SetColWidth(SheetName, "E", "F", 14)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}
