// Package pipeline runs the two-stage market summary pipeline:
// collect public data, then ask a language model for an analysis.
package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketbrief/internal/datasource"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// Collector gathers the stock snapshot, news and encyclopedia summary for a
// company. It never fails: every fetcher degrades to an empty value.
type Collector struct {
	stock datasource.StockFetcher
	news  datasource.NewsFetcher
	wiki  datasource.WikiFetcher

	newsLimit     int
	wikiSentences int
	log           logrus.FieldLogger
}

// CollectorConfig holds the fetchers and limits for a Collector.
type CollectorConfig struct {
	Stock datasource.StockFetcher
	News  datasource.NewsFetcher
	Wiki  datasource.WikiFetcher

	NewsLimit     int // default 8
	WikiSentences int // default 3
	Logger        logrus.FieldLogger
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	c := &Collector{
		stock:         cfg.Stock,
		news:          cfg.News,
		wiki:          cfg.Wiki,
		newsLimit:     cfg.NewsLimit,
		wikiSentences: cfg.WikiSentences,
		log:           logger.OrDiscard(cfg.Logger),
	}
	if c.newsLimit <= 0 {
		c.newsLimit = datasource.DefaultNewsLimit
	}
	if c.wikiSentences <= 0 {
		c.wikiSentences = datasource.DefaultWikiSentences
	}
	return c
}

// CollectOptions adjusts a single collection.
type CollectOptions struct {
	SkipNews bool
}

// Collect runs the three fetches concurrently and merges them.
func (c *Collector) Collect(ctx context.Context, company, ticker string) models.CollectedRecord {
	return c.CollectWith(ctx, company, ticker, CollectOptions{})
}

// CollectWith is Collect with per-call options.
func (c *Collector) CollectWith(ctx context.Context, company, ticker string, opts CollectOptions) models.CollectedRecord {
	var (
		stock = models.EmptySnapshot(ticker)
		news  []models.NewsItem
		wiki  = datasource.NoWikiSummary
	)

	// Fetchers swallow their own errors, so the group never fails.
	g, gctx := errgroup.WithContext(ctx)
	if c.stock != nil {
		g.Go(func() error {
			stock = c.stock.Snapshot(gctx, ticker)
			return nil
		})
	}
	if c.news != nil && !opts.SkipNews {
		g.Go(func() error {
			news = c.news.CompanyNews(gctx, company, c.newsLimit)
			return nil
		})
	}
	if c.wiki != nil {
		g.Go(func() error {
			wiki = c.wiki.Summary(gctx, company, c.wikiSentences)
			return nil
		})
	}
	_ = g.Wait()

	if news == nil {
		news = []models.NewsItem{}
	}

	c.log.WithFields(logrus.Fields{
		"company":   company,
		"ticker":    ticker,
		"news":      len(news),
		"has_price": stock.LastClose != nil,
	}).Debug("collected")

	return models.CollectedRecord{
		Company: company,
		Ticker:  ticker,
		Stock:   stock,
		News:    news,
		Wiki:    wiki,
	}
}
