package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"omset/backend/internal/domain"
)

// WritePDF renders an A4 table of the ledger with IDR-formatted amounts and a grand total line.
func WritePDF(w io.Writer, rows []domain.TransactionView, generatedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24
	widths := []float64{
		contentW * 0.08,
		contentW * 0.15,
		contentW * 0.33,
		contentW * 0.10,
		contentW * 0.17,
		contentW * 0.17,
	}
	aligns := []string{"C", "C", "L", "C", "R", "R"}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Dibuat: "+generatedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, name := range Columns {
			pdf.CellFormat(widths[i], 7, name, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	header()

	for _, row := range rows {
		cells := []string{
			strconv.FormatInt(row.ID, 10),
			row.TransactionDate.String(),
			tr(row.ProductName),
			strconv.Itoa(row.Quantity),
			FormatIDR(row.Price),
			FormatIDR(row.Total),
		}
		for i, text := range cells {
			pdf.CellFormat(widths[i], 6, text, "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	labelW := widths[0] + widths[1] + widths[2] + widths[3] + widths[4]
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(labelW, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[5], 7, FormatIDR(GrandTotal(rows)), "1", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	return nil
}
