package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/seenimoa/marketbrief/internal/checkpoint"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

const sampleAnalysis = "- Risk: supply chain disruption\n- Recommend: hold position\n- The company grew revenue 10%."

type fakeStock struct{}

func (fakeStock) Snapshot(_ context.Context, ticker string) models.StockSnapshot {
	return models.StockSnapshot{
		Ticker:           ticker,
		Currency:         utils.Ptr("USD"),
		Exchange:         utils.Ptr("NasdaqGS"),
		LastClose:        utils.Ptr(189.84),
		FiveDayChangePct: utils.Ptr(1.23),
	}
}

type fakeNews struct {
	items []models.NewsItem
	calls int32
}

func (f *fakeNews) CompanyNews(context.Context, string, int) []models.NewsItem {
	atomic.AddInt32(&f.calls, 1)
	return f.items
}

type fakeWiki struct{}

func (fakeWiki) Summary(context.Context, string, int) string { return "Apple Inc. is a technology company." }

func reply(text string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string) (string, error) {
		return text, nil
	})
}

func failing() llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("backend exploded")
	})
}

func defaultNews() *fakeNews {
	return &fakeNews{items: []models.NewsItem{
		{Title: "Apple unveils new chip", Source: "Reuters", Date: "2024-05-01", URL: "https://example.com/chip"},
	}}
}

func testServer(t *testing.T, c llm.Completer, news *fakeNews) (*Server, checkpoint.Store) {
	t.Helper()
	if news == nil {
		news = defaultNews()
	}
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Collector: pipeline.NewCollector(pipeline.CollectorConfig{
			Stock: fakeStock{},
			News:  news,
			Wiki:  fakeWiki{},
		}),
		Analyst: pipeline.NewAnalyst(c),
	})
	srv := NewServer(Options{
		Config:      &config.Config{},
		Runner:      runner,
		Checkpoints: runner.Checkpoints(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)

	return srv, runner.Checkpoints()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, srv *Server, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// ════════════════════════════════════════════════════════════════════
// APIResponse type tests
// ════════════════════════════════════════════════════════════════════

func TestAPIResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp APIResponse
		want string
	}{
		{"success with data", APIResponse{Success: true, Data: map[string]string{"key": "value"}}, `{"success":true,"data":{"key":"value"}}`},
		{"error", APIResponse{Success: false, Error: "something went wrong"}, `{"success":false,"error":"something went wrong"}`},
		{"success with nil data", APIResponse{Success: true}, `{"success":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Health / config
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := doJSON(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		resp := decodeResponse(t, rec)
		data, ok := resp.Data.(map[string]interface{})
		if !ok || data["status"] != "ok" {
			t.Errorf("%s: unexpected data %v", path, resp.Data)
		}
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)
	srv.cfg.LLM.GroqKey = "gsk_supersecretvalue"

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "supersecret") {
		t.Error("raw key leaked in /keys response")
	}

	var resp struct {
		Success bool               `json:"success"`
		Data    []config.KeyStatus `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 4 {
		t.Fatalf("expected 4 key statuses, got %d", len(resp.Data))
	}
	if !resp.Data[0].IsSet {
		t.Error("groq key should be reported as set")
	}
}

func TestHandleGetConfig(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)
	srv.cfg.LLM.OpenAIKey = "sk-supersecretvalue"
	srv.cfg.LLM.Backend = "auto"

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "supersecret") {
		t.Error("api key leaked in /config response")
	}
	if !strings.Contains(body, `"backend":"openai"`) {
		t.Errorf("expected auto to resolve to openai, got %s", body)
	}
}

// ════════════════════════════════════════════════════════════════════
// POST /api/v1/summary
// ════════════════════════════════════════════════════════════════════

func TestHandleSummary(t *testing.T) {
	srv, store := testServer(t, reply(sampleAnalysis), nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary",
		`{"company":"Apple Inc.","ticker":"AAPL","session_id":"s-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool                 `json:"success"`
		Data    models.MarketSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	s := resp.Data
	if s.Company != "Apple Inc." {
		t.Errorf("company = %q", s.Company)
	}
	if len(s.Risks) != 1 || s.Risks[0] != "supply chain disruption" {
		t.Errorf("risks = %v", s.Risks)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != "Recommend: hold position" {
		t.Errorf("recommendations = %v", s.Recommendations)
	}
	if len(s.TopNews) != 1 {
		t.Errorf("top_news = %v", s.TopNews)
	}

	state, err := store.Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("checkpoint not saved: %v", err)
	}
	if state.Analysis == nil || state.Analysis.AnalysisText != sampleAnalysis {
		t.Errorf("checkpoint analysis = %+v", state.Analysis)
	}
}

func TestHandleSummary_SkipNews(t *testing.T) {
	news := defaultNews()
	srv, _ := testServer(t, reply(sampleAnalysis), news)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary",
		`{"company":"Apple Inc.","ticker":"AAPL","use_news":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := atomic.LoadInt32(&news.calls); n != 0 {
		t.Errorf("news fetched %d times with use_news=false", n)
	}
	if !strings.Contains(rec.Body.String(), `"top_news":[]`) {
		t.Errorf("expected empty top_news, got %s", rec.Body.String())
	}
}

func TestHandleSummary_Validation(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"company":`, "invalid request body"},
		{"missing company", `{"ticker":"AAPL"}`, "company is required"},
		{"missing ticker", `{"company":"Apple"}`, "ticker is required"},
		{"blank ticker", `{"company":"Apple","ticker":"   "}`, "ticker is required"},
		{"long company", `{"company":"` + strings.Repeat("x", 201) + `","ticker":"AAPL"}`, "company must be at most 200 characters"},
		{"long ticker", `{"company":"Apple","ticker":"` + strings.Repeat("T", 33) + `"}`, "ticker must be at most 32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			resp := decodeResponse(t, rec)
			if resp.Success || !strings.Contains(resp.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", resp.Error, tt.want)
			}
		})
	}
}

func TestHandleSummary_PipelineError(t *testing.T) {
	srv, store := testServer(t, failing(), nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary",
		`{"company":"Apple Inc.","ticker":"AAPL","session_id":"s-fail"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "backend exploded") {
		t.Errorf("error = %q", resp.Error)
	}

	// The collect checkpoint survives the analyze failure.
	state, err := store.Load(context.Background(), "s-fail")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Collected == nil || state.Analysis != nil {
		t.Errorf("unexpected checkpoint state: %+v", state)
	}
}

func TestHandleSummary_NoRunner(t *testing.T) {
	srv := NewServer(Options{})
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/summary", `{"company":"Apple","ticker":"AAPL"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Sessions
// ════════════════════════════════════════════════════════════════════

func TestHandleSessions(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d, want 404", rec.Code)
	}

	doJSON(t, srv, http.MethodPost, "/api/v1/summary", `{"company":"Apple Inc.","ticker":"AAPL","session_id":"s-2"}`)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/s-2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data models.State `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.SessionID != "s-2" || resp.Data.Ticker != "AAPL" {
		t.Errorf("state = %+v", resp.Data)
	}
	if len(resp.Data.Messages) != 2 {
		t.Errorf("expected 2 trace messages, got %d", len(resp.Data.Messages))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions", "")
	if !strings.Contains(rec.Body.String(), "s-2") {
		t.Errorf("session list missing s-2: %s", rec.Body.String())
	}
}

// ════════════════════════════════════════════════════════════════════
// Reports
// ════════════════════════════════════════════════════════════════════

func TestHandleReport(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{"json", "application/json", `"company": "Apple Inc."`},
		{"md", "text/markdown; charset=utf-8", "supply chain disruption"},
		{"html", "text/html; charset=utf-8", "<!DOCTYPE html>"},
		{"yaml", "application/yaml", "company: Apple Inc."},
		{"text", "text/plain; charset=utf-8", "AAPL"},
		{"pdf", "application/pdf", "%PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodGet, "/api/v1/report/"+tt.format+"?company=Apple+Inc.&ticker=AAPL", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestHandleReport_BadRequests(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/report/docx?company=Apple&ticker=AAPL", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/report/json?ticker=AAPL", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing company: status = %d", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Web form
// ════════════════════════════════════════════════════════════════════

func TestFormPage(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)

	rec := doJSON(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`value="Apple Inc."`, `value="AAPL"`, `name="use_news"`, `name="show_raw"`} {
		if !strings.Contains(body, want) {
			t.Errorf("form missing %q", want)
		}
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !strings.HasPrefix(cookies[0].Value, "web-") {
		t.Errorf("expected a web- session cookie, got %v", cookies)
	}
}

func TestFormSubmit(t *testing.T) {
	srv, store := testServer(t, reply(sampleAnalysis), nil)
	cookie := &http.Cookie{Name: sessionCookie, Value: "web-visitor"}

	rec := postForm(t, srv, url.Values{
		"company":  {"Apple Inc."},
		"ticker":   {"AAPL"},
		"use_news": {"1"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Done, as of ",
		"<strong>AAPL</strong> • Last Close: 189.84 USD | 5D Change: 1.23%",
		`href="https://example.com/chip"`,
		"<li>supply chain disruption</li>",
		"<li>Recommend: hold position</li>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("result page missing %q", want)
		}
	}
	if strings.Contains(body, "price_snapshot") {
		t.Error("raw JSON shown without show_raw")
	}

	if _, err := store.Load(context.Background(), "web-visitor"); err != nil {
		t.Errorf("expected checkpoint under the cookie session id: %v", err)
	}
}

func TestFormSubmit_NewsMessages(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv, _ := testServer(t, reply(sampleAnalysis), nil)
		rec := postForm(t, srv, url.Values{"company": {"Apple Inc."}, "ticker": {"AAPL"}})
		if !strings.Contains(rec.Body.String(), msgNewsDisabled) {
			t.Error("missing news-disabled message")
		}
	})

	t.Run("empty", func(t *testing.T) {
		srv, _ := testServer(t, reply(sampleAnalysis), &fakeNews{})
		rec := postForm(t, srv, url.Values{"company": {"Apple Inc."}, "ticker": {"AAPL"}, "use_news": {"1"}})
		if !strings.Contains(rec.Body.String(), "No news available (might be rate-limited or none found).") {
			t.Error("missing no-news message")
		}
	})
}

func TestFormSubmit_RawAndEmptyAnalysis(t *testing.T) {
	srv, _ := testServer(t, reply("   "), nil)
	rec := postForm(t, srv, url.Values{"company": {"Apple Inc."}, "ticker": {"AAPL"}, "show_raw": {"1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "price_snapshot") || !strings.Contains(body, "top_news") {
		t.Error("raw JSON not shown")
	}
	if !strings.Contains(body, "No analysis text produced.") {
		t.Error("missing empty-analysis message")
	}
	if strings.Contains(body, "<h2>Risks</h2>") {
		t.Error("risks section shown for empty list")
	}
}

func TestFormSubmit_Errors(t *testing.T) {
	srv, _ := testServer(t, failing(), nil)

	rec := postForm(t, srv, url.Values{"company": {""}, "ticker": {"AAPL"}})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), msgMissingInput) {
		t.Errorf("missing input: status = %d", rec.Code)
	}

	rec = postForm(t, srv, url.Values{"company": {"Apple Inc."}, "ticker": {"AAPL"}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, msgFailure) {
		t.Error("missing generic failure banner")
	}
	if strings.Contains(body, "backend exploded") {
		t.Error("internal error leaked to the web form")
	}
}

// ════════════════════════════════════════════════════════════════════
// Middleware
// ════════════════════════════════════════════════════════════════════

func TestRequestLogger(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	srv := NewServer(Options{Logger: log})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry written")
	}
	if entry.Level != logrus.InfoLevel {
		t.Errorf("level = %v", entry.Level)
	}
	if entry.Data["path"] != "/health" || entry.Data["status"] != http.StatusOK {
		t.Errorf("fields = %v", entry.Data)
	}
	if entry.Data["request_id"] == "" {
		t.Error("request_id not logged")
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func TestWebSocketEvents(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/v1/summary", "application/json",
		strings.NewReader(`{"company":"Apple Inc.","ticker":"AAPL","session_id":"ws-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var types []string
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(types) < 3 {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		types = append(types, msg.Type)
	}

	want := []string{EventStageComplete, EventStageComplete, EventSummaryComplete}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestWSHubBroadcastNonBlocking(t *testing.T) {
	hub := NewWSHub(logrus.New())
	// Hub is not running: the queue fills, then Broadcast must drop.
	for i := 0; i < 300; i++ {
		hub.Broadcast(WSMessage{Type: "x"})
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestWSHubStopClosesClients(t *testing.T) {
	hub := NewWSHub(logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	hub.Register(client)
	cancel()
	<-done

	if _, ok := <-client.send; ok {
		t.Error("client channel should be closed after hub stops")
	}
}

func stoppedHub(t *testing.T) (*WSHub, *WSClient) {
	t.Helper()
	hub := NewWSHub(logrus.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	if !hub.Register(client) {
		t.Fatal("Register on running hub returned false")
	}
	cancel()
	<-done
	return hub, client
}

func TestWSHubUnregisterAfterStopReturns(t *testing.T) {
	hub, client := stoppedHub(t)

	returned := make(chan struct{})
	go func() {
		hub.Unregister(client)
		hub.Unregister(client)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after hub stopped")
	}
}

func TestWSHubRegisterAfterStopRefused(t *testing.T) {
	hub, _ := stoppedHub(t)

	late := &WSClient{hub: hub, send: make(chan WSMessage, 1)}
	if hub.Register(late) {
		t.Error("Register after stop returned true")
	}
	if _, ok := <-late.send; ok {
		t.Error("refused client channel should be closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestWSHubRegisterWithoutRun(t *testing.T) {
	hub := NewWSHub(logrus.New())
	client := &WSClient{hub: hub, send: make(chan WSMessage, 1)}

	returned := make(chan bool)
	go func() { returned <- hub.Register(client) }()
	select {
	case ok := <-returned:
		if !ok {
			t.Error("Register on idle hub returned false")
		}
	case <-time.After(time.Second):
		t.Fatal("Register blocked on a hub that is not running")
	}
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestWSHubReplyToDroppedClient(t *testing.T) {
	hub, client := stoppedHub(t)

	// The send channel is closed; a reply must not panic.
	hub.reply(client, WSMessage{Type: "pong"})

	live := &WSClient{hub: NewWSHub(logrus.New()), send: make(chan WSMessage, 1)}
	live.hub.Register(live)
	live.hub.reply(live, WSMessage{Type: "pong"})
	if msg := <-live.send; msg.Type != "pong" {
		t.Errorf("reply type = %q", msg.Type)
	}
}

func TestWebSocketUpgradeAfterHubStop(t *testing.T) {
	srv, _ := testServer(t, reply(sampleAnalysis), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Hub().Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read err = %v, want going-away close", err)
	}
}
