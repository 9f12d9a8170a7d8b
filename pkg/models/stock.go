// Package models defines the core data structures shared by the marketbrief
// pipeline, its front-ends, and its renderers.
package models

import "encoding/json"

// StockSnapshot is a best-effort price snapshot for a single ticker.
// Every field other than Ticker is optional; a nil field means the source
// could not provide it, which is a valid terminal state rather than an error.
type StockSnapshot struct {
	Ticker           string   `json:"ticker"              yaml:"ticker"              toml:"ticker"`
	Currency         *string  `json:"currency"            yaml:"currency"            toml:"currency,omitempty"`
	Exchange         *string  `json:"exchange"            yaml:"exchange"            toml:"exchange,omitempty"`
	LastClose        *float64 `json:"last_close"          yaml:"last_close"          toml:"last_close,omitempty"`
	FiveDayChangePct *float64 `json:"five_day_change_pct" yaml:"five_day_change_pct" toml:"five_day_change_pct,omitempty"`
	MarketCap        *float64 `json:"market_cap"          yaml:"market_cap"          toml:"market_cap,omitempty"`
}

// EmptySnapshot returns a snapshot carrying only the ticker.
func EmptySnapshot(ticker string) StockSnapshot {
	return StockSnapshot{Ticker: ticker}
}

// IsEmpty reports whether no optional field is populated.
func (s StockSnapshot) IsEmpty() bool {
	return s.Currency == nil && s.Exchange == nil && s.LastClose == nil &&
		s.FiveDayChangePct == nil && s.MarketCap == nil
}

// Clone returns a copy whose optional fields point at fresh values.
func (s StockSnapshot) Clone() StockSnapshot {
	return StockSnapshot{
		Ticker:           s.Ticker,
		Currency:         cloneString(s.Currency),
		Exchange:         cloneString(s.Exchange),
		LastClose:        cloneFloat(s.LastClose),
		FiveDayChangePct: cloneFloat(s.FiveDayChangePct),
		MarketCap:        cloneFloat(s.MarketCap),
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// NewsItem is a single headline returned by the news fetcher. An empty field
// means the feed did not supply it and serializes as null in JSON and YAML.
type NewsItem struct {
	Title   string `toml:"title,omitempty"`
	Source  string `toml:"source,omitempty"`
	Date    string `toml:"date,omitempty"`
	URL     string `toml:"url,omitempty"`
	Snippet string `toml:"snippet,omitempty"`
}

// newsWire is the JSON/YAML shape of a NewsItem: every key present, missing
// values null.
type newsWire struct {
	Title   *string `json:"title"   yaml:"title"`
	Source  *string `json:"source"  yaml:"source"`
	Date    *string `json:"date"    yaml:"date"`
	URL     *string `json:"url"     yaml:"url"`
	Snippet *string `json:"snippet" yaml:"snippet"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (n NewsItem) wire() newsWire {
	return newsWire{
		Title:   optional(n.Title),
		Source:  optional(n.Source),
		Date:    optional(n.Date),
		URL:     optional(n.URL),
		Snippet: optional(n.Snippet),
	}
}

func (n NewsItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

func (n *NewsItem) UnmarshalJSON(data []byte) error {
	var w newsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = NewsItem{
		Title:   deref(w.Title),
		Source:  deref(w.Source),
		Date:    deref(w.Date),
		URL:     deref(w.URL),
		Snippet: deref(w.Snippet),
	}
	return nil
}

func (n NewsItem) MarshalYAML() (interface{}, error) {
	return n.wire(), nil
}

// CollectedRecord is the merged output of the collect stage.
type CollectedRecord struct {
	Company string        `json:"company" yaml:"company"`
	Ticker  string        `json:"ticker"  yaml:"ticker"`
	Stock   StockSnapshot `json:"stock"   yaml:"stock"`
	News    []NewsItem    `json:"news"    yaml:"news"`
	Wiki    string        `json:"wiki"    yaml:"wiki"`
}

// Clone returns a copy that shares no slice or pointer storage with r.
func (r CollectedRecord) Clone() CollectedRecord {
	out := r
	out.Stock = r.Stock.Clone()
	if r.News != nil {
		out.News = make([]NewsItem, len(r.News))
		copy(out.News, r.News)
	}
	return out
}

// AnalysisResult is the raw output of the analyze stage.
type AnalysisResult struct {
	AnalysisText string `json:"analysis_text" yaml:"analysis_text"`
}
