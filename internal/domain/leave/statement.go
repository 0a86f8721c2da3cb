package leave

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderStatementPDF lays out a balance and its ledger entries as an A4 page.
func RenderStatementPDF(st Statement, employeeName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if employeeName != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", employeeName))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Policy: %s (%s)", st.Policy.DisplayName, st.Policy.Code))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Year: %d", st.Balance.Year))
	pdf.Ln(10)

	b := st.Balance
	summary := [][2]string{
		{"Opening", b.OpeningBalance.StringFixed(2)},
		{"Accrued", b.Accrued.StringFixed(2)},
		{"Adjustment", b.Adjustment.StringFixed(2)},
		{"Used", b.Used.StringFixed(2)},
		{"Current", b.CurrentBalance.StringFixed(2)},
	}
	for _, row := range summary {
		pdf.CellFormat(40, 7, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, row[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{28, 26, 22, 24, 90}
	headers := []string{"Date", "Type", "Amount", "Balance", "Notes"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, t := range st.Transactions {
		cells := []string{
			t.CreatedAt.Format(time.DateOnly),
			t.TransactionType,
			t.Amount.StringFixed(2),
			t.BalanceAfter.StringFixed(2),
			truncate(t.Notes, 55),
		}
		for i, c := range cells {
			align := "L"
			if i == 2 || i == 3 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
