package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// markdown converts the model's narrative, which is usually bullet markdown.
// Raw HTML in the input is dropped because goldmark is not run WithUnsafe.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// MarkdownToHTML renders markdown text as safe HTML.
func MarkdownToHTML(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

var reportTmpl = template.Must(template.New("report").Parse(ReportTemplate))

// GenerateHTML generates a standalone HTML report.
func GenerateHTML(s *models.MarketSummary, cfg ReportConfig) (string, error) {
	if s == nil {
		return "", fmt.Errorf("summary is nil")
	}

	data := buildReportData(s, cfg)
	if data.Analysis != "" {
		body, err := MarkdownToHTML(data.Analysis)
		if err != nil {
			return "", err
		}
		data.AnalysisHTML = body
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// ReportTemplate is the HTML template for the market summary report.
// It is embedded as a Go constant, with no external file dependencies.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; margin-bottom: 4px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  p { margin: 6px 0; }
  ul { margin: 6px 0 6px 22px; }
  li { margin: 3px 0; }
  a { color: var(--accent); text-decoration: none; }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }
  .ticker-badge {
    display: inline-block;
    background: var(--accent);
    color: white;
    padding: 2px 12px;
    border-radius: 4px;
    font-weight: 700;
    font-size: 1.1rem;
    margin-right: 8px;
  }

  .quote-bar {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(160px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .quote-item { text-align: center; }
  .quote-item .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .quote-item .value { font-size: 1rem; font-weight: 600; }

  .section-summary {
    background: var(--section-bg);
    padding: 12px;
    border-radius: 6px;
    margin: 8px 0;
    font-size: 0.95rem;
    line-height: 1.7;
  }
  .risks li::marker { color: var(--red); }
  .recs li::marker { color: var(--green); }

  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }

  @media print {
    body { max-width: 100%; padding: 10px; }
  }
</style>
</head>
<body>

<!-- ═══════ HEADER ═══════ -->
<div class="header">
  <div class="header-left">
    <h1><span class="ticker-badge">{{.Ticker}}</span> {{.Company}}</h1>
    <p class="muted">{{.Exchange}}</p>
  </div>
  <div class="header-right">
    <p class="muted">As of {{.AsOf}} UTC</p>
    <p class="muted">{{.Author}}</p>
  </div>
</div>

<!-- ═══════ QUOTE BAR ═══════ -->
{{if .ShowPrice}}
<div class="quote-bar">
  <div class="quote-item">
    <div class="label">Last Close</div>
    <div class="value">{{.LastClose}} {{.Currency}}</div>
  </div>
  <div class="quote-item">
    <div class="label">5D Change</div>
    <div class="value">{{.Change}}</div>
  </div>
  <div class="quote-item">
    <div class="label">Market Cap</div>
    <div class="value">{{.MarketCap}}</div>
  </div>
</div>
{{end}}

<!-- ═══════ NEWS ═══════ -->
{{if .ShowNews}}
<h2>Top News</h2>
{{if .News}}
<ul>
  {{range .News}}
  <li>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">{{.Title}}</a>{{else}}{{.Title}}{{end}}{{if .Meta}} <span class="muted">{{.Meta}}</span>{{end}}</li>
  {{end}}
</ul>
{{else}}
<p class="muted">No news available.</p>
{{end}}
{{end}}

<!-- ═══════ ANALYSIS ═══════ -->
{{if .ShowAnalysis}}
<h2>Analysis</h2>
<div class="section-summary">
  {{if .AnalysisHTML}}{{.AnalysisHTML}}{{else}}<p>No analysis text produced.</p>{{end}}
</div>
{{end}}

{{if .ShowRisks}}
<h2>Risks</h2>
<ul class="risks">
  {{range .Risks}}<li>{{.}}</li>
  {{end}}
</ul>
{{end}}

{{if .ShowRecommendations}}
<h2>Recommendations</h2>
<ul class="recs">
  {{range .Recommendations}}<li>{{.}}</li>
  {{end}}
</ul>
{{end}}

<div class="footer">
  <p>Generated {{.GeneratedAt}} · This summary is AI-generated for educational purposes. Not financial advice.</p>
</div>

</body>
</html>
`
