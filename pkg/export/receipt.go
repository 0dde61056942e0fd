package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries the printable fields of a settled payment.
type Receipt struct {
	StudioName    string
	ReceiptNumber string
	StudentName   string
	StudentEmail  string
	ClassName     string
	Month         string
	Amount        float64
	PaidDate      time.Time
	PaymentMethod string
	TransactionID string
	IssuedAt      time.Time
}

// RenderReceipt draws a one page A4 payment receipt.
func RenderReceipt(r Receipt) ([]byte, error) {
	if r.ReceiptNumber == "" {
		return nil, fmt.Errorf("receipt number required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle("Receipt "+r.ReceiptNumber, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, r.StudioName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	rows := [][2]string{
		{"Receipt No.", r.ReceiptNumber},
		{"Student", r.StudentName},
		{"Email", r.StudentEmail},
		{"Class", r.ClassName},
		{"Billing month", r.Month},
		{"Amount", fmt.Sprintf("%.2f", r.Amount)},
		{"Paid on", formatDate(r.PaidDate)},
		{"Method", r.PaymentMethod},
		{"Transaction", r.TransactionID},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(50, 9, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(120, 9, pdf.UnicodeTranslatorFromDescriptor("")(row[1]), "1", 1, "", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Issued "+r.IssuedAt.UTC().Format(time.RFC1123), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006")
}
