package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/seenimoa/marketbrief/pkg/models"
	"github.com/seenimoa/marketbrief/pkg/utils"
)

// YahooBaseURL is the default Yahoo Finance API host.
const YahooBaseURL = "https://query1.finance.yahoo.com"

// YFinance fetches stock snapshots from the Yahoo Finance chart and quote APIs.
type YFinance struct {
	baseURL string
	client  *http.Client
	cache   *Cache
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewYFinance creates a new Yahoo Finance stock fetcher.
func NewYFinance(opts Options) *YFinance {
	return &YFinance{
		baseURL: YahooBaseURL,
		client:  opts.client(),
		cache:   opts.cache(),
		limiter: opts.limiter(),
		log:     opts.logger().WithField("source", "yahoo"),
	}
}

// WithBaseURL points the fetcher at a different host. Used by tests.
func (y *YFinance) WithBaseURL(u string) *YFinance {
	y.baseURL = strings.TrimRight(u, "/")
	return y
}

// --- Yahoo Finance API types ---

type yfQuoteResponse struct {
	QuoteResponse struct {
		Result []yfQuoteResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"quoteResponse"`
}

type yfQuoteResult struct {
	Symbol           string   `json:"symbol"`
	Currency         string   `json:"currency"`
	Exchange         string   `json:"exchange"`
	FullExchangeName string   `json:"fullExchangeName"`
	MarketCap        *float64 `json:"marketCap"`
}

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol           string `json:"symbol"`
	Currency         string `json:"currency"`
	ExchangeName     string `json:"exchangeName"`
	FullExchangeName string `json:"fullExchangeName"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Close []*float64 `json:"close"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Snapshot returns currency, exchange, last close, five-day change and
// market cap for the ticker. It never fails: each field the upstream cannot
// supply is left nil.
func (y *YFinance) Snapshot(ctx context.Context, ticker string) models.StockSnapshot {
	symbol := utils.ToYahooSymbol(ticker)
	snap := models.EmptySnapshot(ticker)
	if symbol == "" {
		return snap
	}

	cacheKey := "snapshot:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		s := cached.(models.StockSnapshot).Clone()
		s.Ticker = ticker
		return s
	}

	log := y.log.WithField("symbol", symbol)

	chart, err := y.chart(ctx, symbol)
	if err != nil {
		log.WithError(err).Warn("chart lookup failed")
	} else {
		applyChart(&snap, chart)
	}

	quote, err := y.quote(ctx, symbol)
	if err != nil {
		log.WithError(err).Debug("quote lookup failed")
	} else {
		applyQuote(&snap, quote)
	}

	if !snap.IsEmpty() {
		y.cache.Set(cacheKey, snap.Clone())
	}
	return snap
}

func (y *YFinance) chart(ctx context.Context, symbol string) (*yfChartResult, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", y.baseURL, url.PathEscape(symbol))

	var resp yfChartResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	return &resp.Chart.Result[0], nil
}

func (y *YFinance) quote(ctx context.Context, symbol string) (*yfQuoteResult, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", y.baseURL, url.QueryEscape(symbol))

	var resp yfQuoteResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yfinance quote %s: %w", symbol, err)
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yfinance API error: %s", resp.QuoteResponse.Error.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	return &resp.QuoteResponse.Result[0], nil
}

func (y *YFinance) getJSON(ctx context.Context, u string, out any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := doGet(ctx, y.client, u, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// --- Helpers ---

func applyChart(snap *models.StockSnapshot, r *yfChartResult) {
	if r.Meta.Currency != "" {
		snap.Currency = utils.Ptr(r.Meta.Currency)
	}
	if ex := coalesce(r.Meta.ExchangeName, r.Meta.FullExchangeName); ex != "" {
		snap.Exchange = utils.Ptr(ex)
	}

	closes := chartCloses(r)
	if len(closes) > 0 {
		snap.LastClose = utils.Ptr(closes[len(closes)-1])
	}
	snap.FiveDayChangePct = fiveDayChange(closes)
}

func applyQuote(snap *models.StockSnapshot, q *yfQuoteResult) {
	if q.MarketCap != nil {
		snap.MarketCap = utils.Ptr(*q.MarketCap)
	}
	if snap.Currency == nil && q.Currency != "" {
		snap.Currency = utils.Ptr(q.Currency)
	}
	if snap.Exchange == nil {
		if ex := coalesce(q.Exchange, q.FullExchangeName); ex != "" {
			snap.Exchange = utils.Ptr(ex)
		}
	}
}

// chartCloses returns the non-null daily closes in chronological order.
func chartCloses(r *yfChartResult) []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	raw := r.Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, c := range raw {
		if c != nil {
			closes = append(closes, *c)
		}
	}
	return closes
}

// fiveDayChange is the percentage move from the first to the last close,
// rounded to two decimals. Nil with fewer than two closes or a zero base.
func fiveDayChange(closes []float64) *float64 {
	if len(closes) < 2 {
		return nil
	}
	first, last := closes[0], closes[len(closes)-1]
	if first == 0 {
		return nil
	}
	return utils.Ptr(utils.Round2((last - first) / first * 100))
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
