package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"truthsig/internal/usecase"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF renders the snapshot payload as a PDF. The body is the same
// line-for-line payload as the text rendering; only the framing differs.
func RenderPDF(s usecase.ReportSnapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Evidence Integrity Report", false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Evidence Integrity Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Case %s, generated %s", s.Case.ID, s.GeneratedAt.UTC().Format(time.RFC3339)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Courier", "", 8)
	for _, line := range strings.Split(s.PayloadText, "\n") {
		if strings.HasPrefix(line, "[") {
			pdf.SetFont("Courier", "B", 8)
			pdf.CellFormat(0, 4, line, "", 1, "L", false, 0, "")
			pdf.SetFont("Courier", "", 8)
			continue
		}
		pdf.MultiCell(0, 4, line, "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "payload sha256: "+s.PayloadHash, "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
