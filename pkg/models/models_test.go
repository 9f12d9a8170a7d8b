package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// ── StockSnapshot ──

func TestStockSnapshotAllNilSerializesNulls(t *testing.T) {
	s := EmptySnapshot("AAPL")
	if !s.IsEmpty() {
		t.Fatal("EmptySnapshot should report IsEmpty")
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal(StockSnapshot) error: %v", err)
	}
	want := `{"ticker":"AAPL","currency":null,"exchange":null,"last_close":null,"five_day_change_pct":null,"market_cap":null}`
	if string(data) != want {
		t.Errorf("snapshot JSON:\n got  %s\n want %s", data, want)
	}
}

func TestStockSnapshotIsEmpty(t *testing.T) {
	price := 189.5
	s := StockSnapshot{Ticker: "AAPL", LastClose: &price}
	if s.IsEmpty() {
		t.Error("snapshot with LastClose should not be empty")
	}
}

// ── CollectedRecord ──

func TestCollectedRecordCloneDoesNotAlias(t *testing.T) {
	r := CollectedRecord{
		Company: "Apple Inc.",
		Ticker:  "AAPL",
		News:    []NewsItem{{Title: "one"}, {Title: "two"}},
	}
	c := r.Clone()
	c.News[0].Title = "changed"

	if r.News[0].Title != "one" {
		t.Errorf("original mutated through clone: %q", r.News[0].Title)
	}
}

func TestStockSnapshotCloneDoesNotAlias(t *testing.T) {
	price, cur := 189.5, "USD"
	s := StockSnapshot{Ticker: "AAPL", LastClose: &price, Currency: &cur}
	c := s.Clone()

	*c.LastClose = -1
	*c.Currency = "EUR"
	if *s.LastClose != 189.5 || *s.Currency != "USD" {
		t.Errorf("original mutated through clone: %v %v", *s.LastClose, *s.Currency)
	}
	if c.MarketCap != nil || c.Exchange != nil {
		t.Error("nil fields should stay nil")
	}
}

func TestStateCloneCopiesSnapshot(t *testing.T) {
	price := 10.0
	st := NewState("X", "X", "s").WithCollected(
		CollectedRecord{Stock: StockSnapshot{Ticker: "X", LastClose: &price}},
		Trace{Stage: "collect"},
	)
	c := st.Clone()
	*c.Collected.Stock.LastClose = 99
	if *st.Collected.Stock.LastClose != 10 {
		t.Errorf("state clone shares snapshot: %v", *st.Collected.Stock.LastClose)
	}
	if price != 10 {
		t.Errorf("WithCollected kept caller's pointer: %v", price)
	}
}

func TestCollectedRecordCloneNilNews(t *testing.T) {
	c := CollectedRecord{Company: "X"}.Clone()
	if c.News != nil {
		t.Errorf("clone of nil news should stay nil, got %v", c.News)
	}
}

// ── NewsItem ──

func TestNewsItemMissingFieldsSerializeNull(t *testing.T) {
	data, err := json.Marshal(NewsItem{Title: "Apple ships", URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("json.Marshal(NewsItem) error: %v", err)
	}
	want := `{"title":"Apple ships","source":null,"date":null,"url":"https://example.com/a","snippet":null}`
	if string(data) != want {
		t.Errorf("news JSON:\n got  %s\n want %s", data, want)
	}
}

func TestNewsItemJSONRoundTrip(t *testing.T) {
	in := []NewsItem{{Title: "a", Source: "Reuters", Date: "2025-01-02T03:04:05Z"}, {}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	var out []NewsItem
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}

func TestNewsItemYAMLNull(t *testing.T) {
	v, err := NewsItem{Title: "a"}.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML error: %v", err)
	}
	w, ok := v.(newsWire)
	if !ok {
		t.Fatalf("MarshalYAML returned %T", v)
	}
	if w.Title == nil || *w.Title != "a" || w.Source != nil || w.Snippet != nil {
		t.Errorf("yaml shape: %+v", w)
	}
}

// ── MarketSummary ──

func TestMarketSummaryKeys(t *testing.T) {
	ms := MarketSummary{
		Company:         "Apple Inc.",
		AsOf:            "2026-01-02T03:04:05.000000",
		PriceSnapshot:   EmptySnapshot("AAPL"),
		TopNews:         []NewsItem{},
		Risks:           []string{},
		Recommendations: []string{},
	}
	data, err := json.Marshal(ms)
	if err != nil {
		t.Fatalf("json.Marshal(MarketSummary) error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	for _, key := range []string{"company", "as_of", "price_snapshot", "top_news", "analysis", "risks", "recommendations"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if !strings.Contains(string(data), `"risks":[]`) {
		t.Errorf("empty risks should serialize as [], got %s", data)
	}
}

// ── State ──

func TestStateWithCollectedLeavesInputUntouched(t *testing.T) {
	in := NewState("Apple Inc.", "AAPL", "s1")
	rec := CollectedRecord{Company: "Apple Inc.", Ticker: "AAPL", News: []NewsItem{{Title: "a"}}}

	out := in.WithCollected(rec, Trace{Stage: "collect", Content: "done"})

	if in.Collected != nil || len(in.Messages) != 0 {
		t.Fatalf("input state modified: %+v", in)
	}
	if out.Collected == nil || len(out.Messages) != 1 {
		t.Fatalf("output state incomplete: %+v", out)
	}

	rec.News[0].Title = "changed"
	if out.Collected.News[0].Title != "a" {
		t.Error("collected record aliases the caller's news slice")
	}
}

func TestStateCloneDoesNotAlias(t *testing.T) {
	s := NewState("Apple Inc.", "AAPL", "s1").
		WithCollected(CollectedRecord{Ticker: "AAPL"}, Trace{Stage: "collect"}).
		WithAnalysis(AnalysisResult{AnalysisText: "x"}, Trace{Stage: "analyze"})

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Analysis.AnalysisText = "changed"
	c.Collected.Ticker = "MSFT"

	if s.Messages[0].Content == "changed" || s.Analysis.AnalysisText != "x" || s.Collected.Ticker != "AAPL" {
		t.Fatalf("clone aliases the original: %+v", s)
	}
}
