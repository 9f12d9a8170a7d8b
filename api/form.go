package api

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Web form — GET / renders the form, POST / runs the pipeline
// ════════════════════════════════════════════════════════════════════

const (
	sessionCookie  = "marketbrief_session"
	defaultCompany = "Apple Inc."
	defaultTicker  = "AAPL"
)

// Result page messages.
const (
	msgNoNews       = "No news available (might be rate-limited or none found)."
	msgNewsDisabled = "News fetching disabled. You can enable it above."
	msgNoAnalysis   = "No analysis text produced."
	msgMissingInput = "Please enter both a company name and a ticker."
	msgFailure      = "Something went wrong while generating the summary. Please try again."
)

type formPage struct {
	Company string
	Ticker  string
	UseNews bool
	ShowRaw bool

	Error  string
	Result *formResult
}

type formResult struct {
	AsOf            string
	PriceLine       template.HTML
	News            []models.NewsItem
	NewsMessage     string
	Analysis        template.HTML
	Risks           []string
	Recommendations []string
	RawJSON         string
}

var formTmpl = template.Must(template.New("form").Parse(formTemplate))

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	s.sessionID(w, r)
	s.renderForm(w, http.StatusOK, formPage{
		Company: defaultCompany,
		Ticker:  defaultTicker,
		UseNews: true,
	})
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderForm(w, http.StatusBadRequest, formPage{Error: "invalid form submission"})
		return
	}

	page := formPage{
		Company: strings.TrimSpace(r.PostFormValue("company")),
		Ticker:  strings.TrimSpace(r.PostFormValue("ticker")),
		UseNews: r.PostFormValue("use_news") != "",
		ShowRaw: r.PostFormValue("show_raw") != "",
	}
	if page.Company == "" || page.Ticker == "" {
		page.Error = msgMissingInput
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	useNews := page.UseNews
	req := SummaryRequest{
		Company:   page.Company,
		Ticker:    page.Ticker,
		SessionID: s.sessionID(w, r),
		UseNews:   &useNews,
	}
	if err := s.validate.Struct(req); err != nil {
		page.Error = validationMessage(err)
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	summary, err := s.run(r.Context(), req)
	if err != nil {
		page.Error = msgFailure
		s.renderForm(w, http.StatusBadGateway, page)
		return
	}

	res, err := buildFormResult(summary, page.UseNews, page.ShowRaw)
	if err != nil {
		s.log.WithError(err).Error("rendering result page")
		page.Error = msgFailure
		s.renderForm(w, http.StatusInternalServerError, page)
		return
	}
	page.Result = res
	s.renderForm(w, http.StatusOK, page)
}

// sessionID returns the visitor's session id, issuing a "web-{uuid}" cookie
// when none is present.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && strings.HasPrefix(c.Value, "web-") {
		return c.Value
	}
	id := "web-" + uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) renderForm(w http.ResponseWriter, status int, page formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTmpl.Execute(w, page); err != nil {
		s.log.WithError(err).Error("executing form template")
	}
}

func buildFormResult(s *models.MarketSummary, useNews, showRaw bool) (*formResult, error) {
	price, err := report.MarkdownToHTML(report.PriceLine(s.PriceSnapshot))
	if err != nil {
		return nil, err
	}
	res := &formResult{
		AsOf:            s.AsOf,
		PriceLine:       price,
		News:            s.TopNews,
		Risks:           s.Risks,
		Recommendations: s.Recommendations,
	}

	switch {
	case !useNews:
		res.NewsMessage = msgNewsDisabled
	case len(s.TopNews) == 0:
		res.NewsMessage = msgNoNews
	}

	if strings.TrimSpace(s.Analysis) == "" {
		res.Analysis = template.HTML("<p>" + msgNoAnalysis + "</p>")
	} else {
		res.Analysis, err = report.MarkdownToHTML(s.Analysis)
		if err != nil {
			return nil, err
		}
	}

	if showRaw {
		raw, err := json.MarshalIndent(struct {
			PriceSnapshot models.StockSnapshot `json:"price_snapshot"`
			TopNews       []models.NewsItem    `json:"top_news"`
		}{s.PriceSnapshot, s.TopNews}, "", "  ")
		if err != nil {
			return nil, err
		}
		res.RawJSON = string(raw)
	}
	return res, nil
}

const formTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Market Brief</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 860px; margin: 0 auto; padding: 24px; color: #1a1a2e; line-height: 1.6; }
  h1 { font-size: 1.6rem; margin-bottom: 16px; }
  h2 { font-size: 1.15rem; margin: 22px 0 8px; }
  form { display: grid; grid-template-columns: 1fr 1fr; gap: 12px; margin-bottom: 20px; }
  label { display: block; font-size: 0.85rem; color: #6b7280; }
  input[type=text] { width: 100%; padding: 8px; border: 1px solid #e5e7eb; border-radius: 6px; box-sizing: border-box; }
  .checks { grid-column: 1 / -1; display: flex; gap: 20px; }
  button { grid-column: 1 / -1; padding: 10px; background: #2563eb; color: #fff; border: 0; border-radius: 6px; font-weight: 600; cursor: pointer; }
  .banner { padding: 10px 14px; border-radius: 6px; margin: 12px 0; }
  .ok { background: #dcfce7; color: #166534; }
  .err { background: #fee2e2; color: #991b1b; }
  .info { background: #f1f5f9; color: #475569; }
  pre { background: #f8fafc; padding: 12px; border-radius: 6px; overflow-x: auto; font-size: 0.85rem; }
  .muted { color: #6b7280; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Market Brief</h1>

<form method="post" action="/">
  <div>
    <label for="company">Company name</label>
    <input type="text" id="company" name="company" value="{{.Company}}">
  </div>
  <div>
    <label for="ticker">Ticker</label>
    <input type="text" id="ticker" name="ticker" value="{{.Ticker}}">
  </div>
  <div class="checks">
    <label><input type="checkbox" name="use_news" value="1"{{if .UseNews}} checked{{end}}> Fetch recent news</label>
    <label><input type="checkbox" name="show_raw" value="1"{{if .ShowRaw}} checked{{end}}> Show raw collected JSON</label>
  </div>
  <button type="submit">Generate brief</button>
</form>

{{with .Error}}<div class="banner err">{{.}}</div>{{end}}

{{with .Result}}
<div class="banner ok">Done, as of {{.AsOf}}</div>

<h2>Price</h2>
{{.PriceLine}}

<h2>Top News</h2>
{{if .NewsMessage}}
<div class="banner info">{{.NewsMessage}}</div>
{{else}}
<ul>
  {{range .News}}
  <li>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">{{.Title}}</a>{{else}}{{.Title}}{{end}}{{if .Source}} <span class="muted">{{.Source}}{{if .Date}} · {{.Date}}{{end}}</span>{{end}}</li>
  {{end}}
</ul>
{{end}}

<h2>Analysis</h2>
{{.Analysis}}

{{if .Risks}}
<h2>Risks</h2>
<ul>{{range .Risks}}<li>{{.}}</li>{{end}}</ul>
{{end}}

{{if .Recommendations}}
<h2>Recommendations</h2>
<ul>{{range .Recommendations}}<li>{{.}}</li>{{end}}</ul>
{{end}}

{{with .RawJSON}}
<h2>Raw collected data</h2>
<pre>{{.}}</pre>
{{end}}
{{end}}

<p class="muted">AI-generated for educational purposes. Not financial advice.</p>
</body>
</html>
`
