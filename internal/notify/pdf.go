package notify

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/scoring"
)

const (
	pageWidth  = 210.0
	pageHeight = 297.0
	pageMargin = 22.0
	labelWidth = 42.0
	rowHeight  = 8.0
)

type pdfRow struct {
	label string
	value string
}

// PDF renders the one page result summary attached to result mails.
func (c *Composer) PDF(r models.ExamResult) ([]byte, error) {
	summary := c.grader.Summarize(&r)
	if r.Outcome != "" {
		summary.Outcome = r.Outcome
	}
	return renderSummaryPDF(c.data(r), summary, r, true)
}

func renderSummaryPDF(d messageData, s scoring.Summary, r models.ExamResult, compress bool) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetTitle("EMIS Examination Result Summary", true)
	pdf.SetCreator("EMIS Exam Portal", true)
	if !r.SubmittedAt.IsZero() {
		pdf.SetCreationDate(r.SubmittedAt)
	}
	pdf.SetMargins(pageMargin, 25, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTextColor(0x0f, 0x2b, 0x46)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "EMIS - Examination Result Summary", "", 1, "L", false, 0, "")

	y := pdf.GetY() + 2
	pdf.SetDrawColor(0x38, 0xbd, 0xf8)
	pdf.SetLineWidth(0.7)
	pdf.Line(pageMargin, y, pageWidth-pageMargin, y)
	pdf.SetY(y + 8)

	if s.Outcome == models.OutcomePass {
		pdf.SetTextColor(0x16, 0xa3, 0x4a)
	} else {
		pdf.SetTextColor(0xdc, 0x26, 0x26)
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, rowHeight, "Outcome: "+string(s.Outcome), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := []pdfRow{
		{"Candidate", fmt.Sprintf("%s (%s)", d.FullName, d.Username)},
		{"Subject", d.Subject},
		{"Score", fmt.Sprintf("%d/%d  (%d%%)", d.Correct, d.Total, d.Score)},
		{"Answered", fmt.Sprintf("%d  (%d skipped)", r.Answered, s.Skipped)},
		{"Accuracy", fmt.Sprintf("%d%%", s.AccuracyPercent)},
		{"Time Taken", s.TimeTaken},
		{"Avg per Answer", fmt.Sprintf("%ds", s.AvgSecondsPerAnswer)},
		{"Submitted", d.SubmittedAt},
	}
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(labelWidth, rowHeight, row.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, rowHeight, tr(row.value), "", 1, "L", false, 0, "")
	}

	pdf.SetTextColor(0x6b, 0x72, 0x80)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetXY(pageMargin, pageHeight-20)
	pdf.CellFormat(0, 5, "Generated automatically by EMIS Exam Portal", "", 0, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render result pdf: %w", err)
	}
	return buf.Bytes(), nil
}
