package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func sampleSummary() *models.MarketSummary {
	return &models.MarketSummary{
		Company: "Apple Inc.",
		AsOf:    "2025-03-14T15:09:26.535897",
		PriceSnapshot: models.StockSnapshot{
			Ticker:           "AAPL",
			Currency:         utils.Ptr("USD"),
			Exchange:         utils.Ptr("NasdaqGS"),
			LastClose:        utils.Ptr(189.84),
			FiveDayChangePct: utils.Ptr(1.23),
			MarketCap:        utils.Ptr(2.95e12),
		},
		TopNews: []models.NewsItem{
			{Title: "Apple unveils new chip", Source: "Reuters", Date: "2025-03-13T10:00:00Z", URL: "https://example.com/a"},
			{Title: "Apple & suppliers", Source: "Bloomberg"},
		},
		Analysis:        "- **Risk:** supply chain disruption\n- Recommend: hold position\n\nThe company grew revenue 10%.",
		Risks:           []string{"supply chain disruption"},
		Recommendations: []string{"Recommend: hold position"},
	}
}

func emptySummary() *models.MarketSummary {
	return &models.MarketSummary{
		Company:         "Nobody Corp",
		AsOf:            "2025-03-14T15:09:26.000000",
		PriceSnapshot:   models.EmptySnapshot("ZZZZ"),
		TopNews:         []models.NewsItem{},
		Risks:           []string{},
		Recommendations: []string{},
	}
}

func assertContains(t *testing.T, out string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(out, s) {
			t.Errorf("expected %q in output:\n%s", s, out)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Formats
// ════════════════════════════════════════════════════════════════════

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want ReportFormat
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"toml", FormatTOML},
		{"txt", FormatText},
		{"md", FormatMarkdown},
		{"html", FormatHTML},
		{" pdf ", FormatPDF},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParseFormat("docx"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestContentTypeAndExtension(t *testing.T) {
	if FormatPDF.ContentType() != "application/pdf" {
		t.Errorf("pdf content type: %s", FormatPDF.ContentType())
	}
	if !strings.HasPrefix(FormatHTML.ContentType(), "text/html") {
		t.Errorf("html content type: %s", FormatHTML.ContentType())
	}
	if FormatMarkdown.Extension() != ".md" || FormatText.Extension() != ".txt" || FormatYAML.Extension() != ".yaml" {
		t.Error("unexpected extensions")
	}
	if len(AllFormats()) != 7 {
		t.Errorf("expected 7 formats, got %d", len(AllFormats()))
	}
}

// ════════════════════════════════════════════════════════════════════
// Structured formats
// ════════════════════════════════════════════════════════════════════

func TestRenderJSON(t *testing.T) {
	out, err := Generate(sampleSummary(), ReportConfig{Format: FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "\n  \"company\": \"Apple Inc.\"") {
		t.Errorf("expected two-space indentation:\n%s", out)
	}
	if !strings.Contains(string(out), `Apple & suppliers`) {
		t.Error("JSON output should not escape &")
	}

	var back models.MarketSummary
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.Company != "Apple Inc." || *back.PriceSnapshot.LastClose != 189.84 {
		t.Errorf("unexpected decoded summary: %+v", back)
	}
}

func TestRenderJSONEmptyLists(t *testing.T) {
	out, err := Generate(emptySummary(), ReportConfig{Format: FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, string(out), `"risks": []`, `"recommendations": []`, `"last_close": null`)
}

func TestRenderYAML(t *testing.T) {
	out, err := Generate(sampleSummary(), ReportConfig{Format: FormatYAML})
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, string(out), "company: Apple Inc.", "as_of:", "price_snapshot:", "  ticker: AAPL", "top_news:")

	var back map[string]any
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back["company"] != "Apple Inc." {
		t.Errorf("unexpected company: %v", back["company"])
	}
}

func TestRenderTOML(t *testing.T) {
	out, err := Generate(sampleSummary(), ReportConfig{Format: FormatTOML})
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, string(out), "company = 'Apple Inc.'", "[price_snapshot]", "[[top_news]]")

	var back models.MarketSummary
	if err := toml.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.PriceSnapshot.MarketCap == nil || *back.PriceSnapshot.MarketCap != 2.95e12 {
		t.Errorf("market cap did not survive: %+v", back.PriceSnapshot)
	}
}

func TestRenderTOMLAllNilSnapshot(t *testing.T) {
	out, err := Generate(emptySummary(), ReportConfig{Format: FormatTOML})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "last_close") {
		t.Errorf("nil fields should be omitted in TOML:\n%s", out)
	}
}

func TestRenderNilSummary(t *testing.T) {
	for _, f := range AllFormats() {
		if _, err := Generate(nil, ReportConfig{Format: f}); err == nil {
			t.Errorf("%s: expected error for nil summary", f)
		}
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Generate(sampleSummary(), ReportConfig{Format: "docx"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

// ════════════════════════════════════════════════════════════════════
// Rendered formats
// ════════════════════════════════════════════════════════════════════

func TestPriceLine(t *testing.T) {
	got := PriceLine(sampleSummary().PriceSnapshot)
	want := "**AAPL** • Last Close: 189.84 USD | 5D Change: 1.23%"
	if got != want {
		t.Errorf("PriceLine:\n got  %s\n want %s", got, want)
	}

	got = PriceLine(models.EmptySnapshot("ZZZZ"))
	want = "**ZZZZ** • Last Close: — | 5D Change: —"
	if got != want {
		t.Errorf("PriceLine (empty):\n got  %s\n want %s", got, want)
	}
}

func TestGenerateText_Basic(t *testing.T) {
	out := GenerateText(sampleSummary(), DefaultReportConfig())
	assertContains(t, out,
		"Apple Inc. — Market Summary",
		"Apple Inc. (AAPL) — NasdaqGS",
		"Last Close: 189.84 USD | 5D Change: 1.23% | Market Cap: 2.95T",
		"1. Apple unveils new chip",
		"Reuters · 2025-03-13T10:00:00Z",
		"■ RISKS",
		"• supply chain disruption",
		"■ RECOMMENDATIONS",
		"Disclaimer",
	)
}

func TestGenerateText_Empty(t *testing.T) {
	out := GenerateText(emptySummary(), DefaultReportConfig())
	assertContains(t, out, "No news available.", "No analysis text produced.", "Last Close: — |")
	if strings.Contains(out, "■ RISKS") || strings.Contains(out, "■ RECOMMENDATIONS") {
		t.Error("empty risk and recommendation sections should be hidden")
	}
}

func TestGenerateMarkdown(t *testing.T) {
	out := GenerateMarkdown(sampleSummary(), DefaultReportConfig())
	assertContains(t, out,
		"# Apple Inc. — Market Summary",
		"**AAPL** • Last Close: 189.84 USD | 5D Change: 1.23%",
		"- [Apple unveils new chip](https://example.com/a) — Reuters",
		"- Apple & suppliers — Bloomberg",
		"## Risks\n\n- supply chain disruption",
		"## Recommendations",
	)
}

func TestGenerateMarkdownEscapesLinkText(t *testing.T) {
	s := sampleSummary()
	s.TopNews = []models.NewsItem{{Title: "Q1 [preview]", URL: "https://example.com"}}
	out := GenerateMarkdown(s, DefaultReportConfig())
	assertContains(t, out, `[Q1 \[preview\]](https://example.com)`)
}

func TestGenerateHTML_Basic(t *testing.T) {
	html, err := GenerateHTML(sampleSummary(), DefaultReportConfig())
	if err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	checks := []struct {
		name   string
		substr string
	}{
		{"html tag", "<html"},
		{"ticker", "AAPL"},
		{"company name", "Apple Inc."},
		{"escaped news title", "Apple &amp; suppliers"},
		{"news link", `href="https://example.com/a"`},
		{"markdown bold", "<strong>Risk:</strong>"},
		{"markdown list", "<li>"},
		{"market cap", "2.95T"},
		{"risks heading", "<h2>Risks</h2>"},
		{"recommendations heading", "<h2>Recommendations</h2>"},
		{"CSS", "font-family"},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !strings.Contains(html, c.substr) {
				t.Errorf("expected '%s' in HTML output", c.substr)
			}
		})
	}
}

func TestGenerateHTML_DropsRawHTMLFromAnalysis(t *testing.T) {
	s := sampleSummary()
	s.Analysis = "Fine text <script>alert(1)</script>"
	html, err := GenerateHTML(s, DefaultReportConfig())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("raw HTML from the analysis must not be rendered")
	}
}

func TestGenerateHTML_Empty(t *testing.T) {
	html, err := GenerateHTML(emptySummary(), DefaultReportConfig())
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, html, "No news available.", "No analysis text produced.")
	if strings.Contains(html, "<h2>Risks</h2>") {
		t.Error("empty risks section should be hidden")
	}
}

func TestGenerateHTML_SelectedSections(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Sections = []ReportSection{SectionAnalysis}
	html, err := GenerateHTML(sampleSummary(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "Top News") || strings.Contains(html, "quote-bar\">") {
		t.Error("unselected sections should not be rendered")
	}
	assertContains(t, html, "<h2>Analysis</h2>")
}

func TestGenerateHTML_CustomTitle(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Title = "Weekly Apple Brief"
	html, _ := GenerateHTML(sampleSummary(), cfg)
	assertContains(t, html, "<title>Weekly Apple Brief</title>")
}

func TestMarkdownToHTML(t *testing.T) {
	got, err := MarkdownToHTML("line one\nline two")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "<br") {
		t.Errorf("expected hard wraps, got %s", got)
	}
}

func TestGeneratePDF(t *testing.T) {
	for _, s := range []*models.MarketSummary{sampleSummary(), emptySummary()} {
		var buf bytes.Buffer
		if err := GeneratePDF(&buf, s, DefaultReportConfig()); err != nil {
			t.Fatalf("GeneratePDF failed: %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
			t.Errorf("output is not a PDF: %q", buf.Bytes()[:16])
		}
	}
}

func TestGeneratePDFWithLandscape(t *testing.T) {
	var buf bytes.Buffer
	err := GeneratePDFWith(&buf, sampleSummary(), DefaultReportConfig(), PDFConfig{Orientation: "L", PageSize: "Letter"})
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("empty PDF")
	}
}

// ════════════════════════════════════════════════════════════════════
// Config & Utility
// ════════════════════════════════════════════════════════════════════

func TestDefaultReportConfig(t *testing.T) {
	cfg := DefaultReportConfig()
	if cfg.Format != FormatJSON {
		t.Errorf("expected JSON format, got %s", cfg.Format)
	}
	if len(cfg.Sections) != len(AllSections()) {
		t.Errorf("expected all sections, got %d", len(cfg.Sections))
	}
	if cfg.Author != "marketbrief" {
		t.Errorf("unexpected author: %s", cfg.Author)
	}
}

func TestHasSection(t *testing.T) {
	cfg := ReportConfig{Sections: []ReportSection{SectionPrice, SectionRisks}}
	if !cfg.hasSection(SectionPrice) || !cfg.hasSection(SectionRisks) {
		t.Error("expected selected sections to be present")
	}
	if cfg.hasSection(SectionNews) {
		t.Error("did not expect news section")
	}
}

func TestBuildNewsRows(t *testing.T) {
	rows := buildNewsRows([]models.NewsItem{
		{Title: "a", Source: "Reuters", Date: "2025-01-01"},
		{Source: "AP"},
	})
	if rows[0].Meta != "Reuters · 2025-01-01" {
		t.Errorf("meta: %q", rows[0].Meta)
	}
	if rows[1].Title != "(untitled)" || rows[1].Meta != "AP" {
		t.Errorf("row 1: %+v", rows[1])
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{90 * time.Minute, "1.5h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}
