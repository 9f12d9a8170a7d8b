package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Report Generator — Renders a MarketSummary in every output format
// ════════════════════════════════════════════════════════════════════

// ReportFormat specifies the output format.
type ReportFormat string

const (
	FormatJSON     ReportFormat = "json"
	FormatYAML     ReportFormat = "yaml"
	FormatTOML     ReportFormat = "toml"
	FormatText     ReportFormat = "text"
	FormatMarkdown ReportFormat = "markdown"
	FormatHTML     ReportFormat = "html"
	FormatPDF      ReportFormat = "pdf"
)

// AllFormats returns every supported format.
func AllFormats() []ReportFormat {
	return []ReportFormat{FormatJSON, FormatYAML, FormatTOML, FormatText, FormatMarkdown, FormatHTML, FormatPDF}
}

// ParseFormat resolves a format name. Common aliases (md, txt, yml) are accepted.
func ParseFormat(name string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	case "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported report format %q", name)
}

// ContentType returns the HTTP media type for the format.
func (f ReportFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatTOML:
		return "application/toml"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for the format, including the dot.
func (f ReportFormat) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// ReportSection identifies a section to include/exclude.
type ReportSection string

const (
	SectionPrice           ReportSection = "price"
	SectionNews            ReportSection = "news"
	SectionAnalysis        ReportSection = "analysis"
	SectionRisks           ReportSection = "risks"
	SectionRecommendations ReportSection = "recommendations"
)

// AllSections returns all report sections in display order.
func AllSections() []ReportSection {
	return []ReportSection{
		SectionPrice,
		SectionNews,
		SectionAnalysis,
		SectionRisks,
		SectionRecommendations,
	}
}

// ReportConfig controls report generation behaviour. Sections only apply to
// the rendered formats; json, yaml and toml always carry the full summary.
type ReportConfig struct {
	Format   ReportFormat    // output format (default: JSON)
	Sections []ReportSection // sections to include (default: all)
	Title    string          // custom report title (optional)
	Author   string          // author name (optional, default: "marketbrief")
}

// DefaultReportConfig returns sensible defaults.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Format:   FormatJSON,
		Sections: AllSections(),
		Author:   "marketbrief",
	}
}

// hasSection returns true if the section is included in the config.
func (rc ReportConfig) hasSection(s ReportSection) bool {
	for _, sec := range rc.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════════════
// Report Data — Flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// ReportData is the template model shared by the text, markdown, html and
// pdf renderers.
type ReportData struct {
	Title       string
	Company     string
	Ticker      string
	AsOf        string
	Author      string
	GeneratedAt string

	// Price snapshot, already formatted; missing values are "—".
	PriceLine string
	LastClose string
	Currency  string
	Change    string
	Exchange  string
	MarketCap string

	News            []NewsRow
	Analysis        string
	AnalysisHTML    template.HTML
	Risks           []string
	Recommendations []string

	ShowPrice           bool
	ShowNews            bool
	ShowAnalysis        bool
	ShowRisks           bool
	ShowRecommendations bool
}

// NewsRow is a flattened headline.
type NewsRow struct {
	Title   string
	URL     string
	Meta    string // "Source · Date"
	Snippet string
}

// PriceLine renders the one-line price summary used by the web form and the
// markdown report, e.g. "**AAPL** • Last Close: 189.84 USD | 5D Change: 1.23%".
func PriceLine(s models.StockSnapshot) string {
	last := utils.FormatFloat(s.LastClose)
	if s.Currency != nil && *s.Currency != "" {
		last += " " + *s.Currency
	}
	return fmt.Sprintf("**%s** • Last Close: %s | 5D Change: %s", s.Ticker, last, utils.FormatPct(s.FiveDayChangePct))
}

// ════════════════════════════════════════════════════════════════════
// Generate Report
// ════════════════════════════════════════════════════════════════════

// Generate renders s in cfg.Format.
func Generate(s *models.MarketSummary, cfg ReportConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, s, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render writes s to w in cfg.Format.
func Render(w io.Writer, s *models.MarketSummary, cfg ReportConfig) error {
	if s == nil {
		return fmt.Errorf("summary is nil")
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = AllSections()
	}

	switch cfg.Format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("encoding toml: %w", err)
		}
		return nil
	case FormatText:
		_, err := io.WriteString(w, GenerateText(s, cfg))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, GenerateMarkdown(s, cfg))
		return err
	case FormatHTML:
		out, err := GenerateHTML(s, cfg)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case FormatPDF:
		return GeneratePDF(w, s, cfg)
	}
	return fmt.Errorf("unsupported report format %q", cfg.Format)
}

// GenerateText generates a plain-text report (terminal / CLI friendly).
func GenerateText(s *models.MarketSummary, cfg ReportConfig) string {
	return renderTextReport(buildReportData(s, cfg))
}

// GenerateMarkdown generates a markdown report.
func GenerateMarkdown(s *models.MarketSummary, cfg ReportConfig) string {
	return renderMarkdownReport(buildReportData(s, cfg))
}

// ════════════════════════════════════════════════════════════════════
// Internal — Build template data
// ════════════════════════════════════════════════════════════════════

func buildReportData(s *models.MarketSummary, cfg ReportConfig) ReportData {
	if len(cfg.Sections) == 0 {
		cfg.Sections = AllSections()
	}
	snap := s.PriceSnapshot

	data := ReportData{
		Title:       cfg.Title,
		Company:     s.Company,
		Ticker:      snap.Ticker,
		AsOf:        s.AsOf,
		Author:      cfg.Author,
		GeneratedAt: ReportTimestamp(),

		PriceLine: PriceLine(snap),
		LastClose: utils.FormatFloat(snap.LastClose),
		Currency:  utils.FormatString(snap.Currency, ""),
		Change:    utils.FormatPct(snap.FiveDayChangePct),
		Exchange:  utils.FormatString(snap.Exchange, utils.Missing),
		MarketCap: utils.FormatMarketCap(snap.MarketCap),

		News:            buildNewsRows(s.TopNews),
		Analysis:        strings.TrimSpace(s.Analysis),
		Risks:           s.Risks,
		Recommendations: s.Recommendations,

		ShowPrice:           cfg.hasSection(SectionPrice),
		ShowNews:            cfg.hasSection(SectionNews),
		ShowAnalysis:        cfg.hasSection(SectionAnalysis),
		ShowRisks:           cfg.hasSection(SectionRisks) && len(s.Risks) > 0,
		ShowRecommendations: cfg.hasSection(SectionRecommendations) && len(s.Recommendations) > 0,
	}

	if data.Title == "" {
		name := s.Company
		if name == "" {
			name = snap.Ticker
		}
		data.Title = fmt.Sprintf("%s — Market Summary", name)
	}
	if data.Author == "" {
		data.Author = "marketbrief"
	}
	return data
}

func buildNewsRows(items []models.NewsItem) []NewsRow {
	rows := make([]NewsRow, 0, len(items))
	for _, n := range items {
		var meta []string
		if n.Source != "" {
			meta = append(meta, n.Source)
		}
		if n.Date != "" {
			meta = append(meta, n.Date)
		}
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		rows = append(rows, NewsRow{
			Title:   title,
			URL:     n.URL,
			Meta:    strings.Join(meta, " · "),
			Snippet: n.Snippet,
		})
	}
	return rows
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderTextReport(d ReportData) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  As of: %s UTC | Author: %s\n", d.AsOf, d.Author))
	sb.WriteString(line + "\n")

	if d.ShowPrice {
		sb.WriteString(fmt.Sprintf("\n  %s (%s) — %s\n", d.Company, d.Ticker, d.Exchange))
		last := d.LastClose
		if d.Currency != "" {
			last += " " + d.Currency
		}
		sb.WriteString(fmt.Sprintf("  Last Close: %s | 5D Change: %s | Market Cap: %s\n", last, d.Change, d.MarketCap))
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowNews {
		sb.WriteString("\n  ■ TOP NEWS\n")
		if len(d.News) == 0 {
			sb.WriteString("    No news available.\n")
		}
		for i, n := range d.News {
			sb.WriteString(fmt.Sprintf("    %d. %s\n", i+1, n.Title))
			if n.Meta != "" {
				sb.WriteString(fmt.Sprintf("       %s\n", n.Meta))
			}
			if n.URL != "" {
				sb.WriteString(fmt.Sprintf("       %s\n", n.URL))
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	if d.ShowAnalysis {
		sb.WriteString("\n  ■ ANALYSIS\n")
		if d.Analysis == "" {
			sb.WriteString("  No analysis text produced.\n")
		} else {
			for _, l := range strings.Split(d.Analysis, "\n") {
				sb.WriteString("  " + l + "\n")
			}
		}
		sb.WriteString(thinLine + "\n")
	}

	writeList := func(title string, show bool, items []string) {
		if !show {
			return
		}
		sb.WriteString(fmt.Sprintf("\n  ■ %s\n", title))
		for _, it := range items {
			sb.WriteString(fmt.Sprintf("    • %s\n", it))
		}
		sb.WriteString(thinLine + "\n")
	}
	writeList("RISKS", d.ShowRisks, d.Risks)
	writeList("RECOMMENDATIONS", d.ShowRecommendations, d.Recommendations)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString("  Disclaimer: This summary is AI-generated for educational purposes.\n")
	sb.WriteString("  Not financial advice.\n")
	sb.WriteString(line + "\n")

	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Markdown renderer
// ════════════════════════════════════════════════════════════════════

func renderMarkdownReport(d ReportData) string {
	var sb strings.Builder

	sb.WriteString("# " + d.Title + "\n\n")
	sb.WriteString(fmt.Sprintf("_As of %s UTC_\n\n", d.AsOf))

	if d.ShowPrice {
		sb.WriteString(d.PriceLine + "\n\n")
		sb.WriteString(fmt.Sprintf("Exchange: %s · Market Cap: %s\n\n", d.Exchange, d.MarketCap))
	}

	if d.ShowNews {
		sb.WriteString("## Top News\n\n")
		if len(d.News) == 0 {
			sb.WriteString("No news available.\n\n")
		}
		for _, n := range d.News {
			title := escapeMarkdown(n.Title)
			if n.URL != "" {
				sb.WriteString(fmt.Sprintf("- [%s](%s)", title, n.URL))
			} else {
				sb.WriteString("- " + title)
			}
			if n.Meta != "" {
				sb.WriteString(" — " + n.Meta)
			}
			sb.WriteString("\n")
		}
		if len(d.News) > 0 {
			sb.WriteString("\n")
		}
	}

	if d.ShowAnalysis {
		sb.WriteString("## Analysis\n\n")
		if d.Analysis == "" {
			sb.WriteString("No analysis text produced.\n\n")
		} else {
			sb.WriteString(d.Analysis + "\n\n")
		}
	}

	if d.ShowRisks {
		sb.WriteString("## Risks\n\n")
		for _, r := range d.Risks {
			sb.WriteString("- " + r + "\n")
		}
		sb.WriteString("\n")
	}

	if d.ShowRecommendations {
		sb.WriteString("## Recommendations\n\n")
		for _, r := range d.Recommendations {
			sb.WriteString("- " + r + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n\n_Not financial advice._\n")
	return sb.String()
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// ════════════════════════════════════════════════════════════════════
// Utility: Timestamp
// ════════════════════════════════════════════════════════════════════

// ReportTimestamp returns the current UTC time formatted for report headers.
func ReportTimestamp() string {
	return time.Now().UTC().Format("02 Jan 2006, 15:04 UTC")
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
