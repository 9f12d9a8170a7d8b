package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// PDF Generator — native layout via fpdf, no external engine
// ════════════════════════════════════════════════════════════════════

// PDFConfig holds page settings for PDF generation.
type PDFConfig struct {
	PageSize    string  // default: "A4"
	Orientation string  // "P" (default) or "L"
	Margin      float64 // mm, applied to left, top and right; default 15
}

// DefaultPDFConfig returns sensible defaults for PDF generation.
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		PageSize:    "A4",
		Orientation: "P",
		Margin:      15,
	}
}

// GeneratePDF writes s to w as a PDF document using the default page setup.
func GeneratePDF(w io.Writer, s *models.MarketSummary, cfg ReportConfig) error {
	return GeneratePDFWith(w, s, cfg, DefaultPDFConfig())
}

// GeneratePDFWith is GeneratePDF with explicit page settings.
func GeneratePDFWith(w io.Writer, s *models.MarketSummary, cfg ReportConfig, pc PDFConfig) error {
	if s == nil {
		return fmt.Errorf("summary is nil")
	}
	if pc.PageSize == "" {
		pc.PageSize = "A4"
	}
	if pc.Orientation == "" {
		pc.Orientation = "P"
	}
	if pc.Margin <= 0 {
		pc.Margin = 15
	}

	d := buildReportData(s, cfg)

	pdf := fpdf.New(pc.Orientation, "mm", pc.PageSize, "")
	pdf.SetMargins(pc.Margin, pc.Margin, pc.Margin)
	pdf.SetAutoPageBreak(true, pc.Margin)
	pdf.SetTitle(d.Title, true)
	pdf.SetAuthor(d.Author, true)
	pdf.AddPage()

	// The core fonts are cp1252. Characters outside it are dropped.
	text := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, text(d.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.MultiCell(0, 5, text(fmt.Sprintf("As of %s UTC | %s", d.AsOf, d.Author)), "", "L", false)
	pdf.SetTextColor(26, 26, 46)
	pdf.Ln(3)

	heading := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetDrawColor(37, 99, 235)
		pdf.CellFormat(0, 7, text(title), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", 10)
	}
	bullets := func(items []string) {
		for _, it := range items {
			pdf.MultiCell(0, 5, text("- "+it), "", "L", false)
		}
	}

	if d.ShowPrice {
		heading("Price Snapshot")
		last := d.LastClose
		if d.Currency != "" {
			last += " " + d.Currency
		}
		pdf.MultiCell(0, 5, text(fmt.Sprintf("%s (%s), %s", d.Company, d.Ticker, d.Exchange)), "", "L", false)
		pdf.MultiCell(0, 5, text(fmt.Sprintf("Last Close: %s | 5D Change: %s | Market Cap: %s", last, d.Change, d.MarketCap)), "", "L", false)
	}

	if d.ShowNews {
		heading("Top News")
		if len(d.News) == 0 {
			pdf.MultiCell(0, 5, "No news available.", "", "L", false)
		}
		for _, n := range d.News {
			line := "- " + n.Title
			if n.Meta != "" {
				line += " (" + n.Meta + ")"
			}
			pdf.MultiCell(0, 5, text(line), "", "L", false)
		}
	}

	if d.ShowAnalysis {
		heading("Analysis")
		body := d.Analysis
		if body == "" {
			body = "No analysis text produced."
		}
		pdf.MultiCell(0, 5, text(body), "", "L", false)
	}

	if d.ShowRisks {
		heading("Risks")
		bullets(d.Risks)
	}
	if d.ShowRecommendations {
		heading("Recommendations")
		bullets(d.Recommendations)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(107, 114, 128)
	pdf.MultiCell(0, 4, "This summary is AI-generated for educational purposes. Not financial advice.", "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
