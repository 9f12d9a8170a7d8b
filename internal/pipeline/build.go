package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/checkpoint"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/datasource"
	"github.com/seenimoa/marketbrief/internal/llm"
)

// Build assembles a Runner from configuration: live fetchers, the configured
// LLM backend and checkpoint store. It fails before any stage runs when the
// backend cannot be constructed.
func Build(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, observer Observer) (*Runner, error) {
	completer, err := llm.NewCompleter(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}

	store, err := checkpoint.New(cfg.Checkpoint.Backend, cfg.Checkpoint.MaxSessions)
	if err != nil {
		return nil, err
	}

	opts := datasource.Options{
		HTTPClient:        datasource.NewHTTPClient(),
		CacheTTL:          time.Duration(cfg.Collector.CacheTTL) * time.Second,
		RequestsPerSecond: cfg.Collector.RequestsPerSecond,
		Logger:            log,
	}

	return NewRunner(RunnerConfig{
		Collector: NewCollector(CollectorConfig{
			Stock:         datasource.NewYFinance(opts),
			News:          datasource.NewNews(opts, cfg.Collector.EnrichSnippets),
			Wiki:          datasource.NewWikipedia(opts),
			NewsLimit:     cfg.Collector.NewsLimit,
			WikiSentences: cfg.Collector.WikiSentences,
			Logger:        log,
		}),
		Analyst:     NewAnalyst(completer),
		Checkpoints: store,
		Observer:    observer,
		Logger:      log,
	}), nil
}
