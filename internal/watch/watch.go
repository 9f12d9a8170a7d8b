// Package watch runs the pipeline for a configured watchlist on a cron
// schedule and writes one report file per entry and run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// ErrNoEntries is returned when the watchlist is empty.
var ErrNoEntries = errors.New("watchlist has no entries")

// Summarizer runs the pipeline. *pipeline.Runner satisfies it.
type Summarizer interface {
	RunWith(ctx context.Context, company, ticker, sessionID string, opts pipeline.RunOptions) (*models.MarketSummary, error)
}

// Result describes one entry of one watchlist run.
type Result struct {
	Entry     config.WatchEntry
	SessionID string
	Path      string // empty when the run failed
	Err       error
}

// Watcher runs the watchlist.
type Watcher struct {
	runner   Summarizer
	entries  []config.WatchEntry
	schedule string
	outDir   string
	format   report.ReportFormat
	log      logrus.FieldLogger
	now      func() time.Time

	mu   sync.Mutex // serialises runs; a slow run is never overlapped
	cron *cron.Cron
}

// New validates cfg and creates a Watcher.
func New(cfg config.WatchConfig, runner Summarizer, log logrus.FieldLogger) (*Watcher, error) {
	if len(cfg.Entries) == 0 {
		return nil, ErrNoEntries
	}
	for i, e := range cfg.Entries {
		if strings.TrimSpace(e.Company) == "" || strings.TrimSpace(e.Ticker) == "" {
			return nil, fmt.Errorf("watch entry %d: company and ticker are required", i)
		}
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("watch format: %w", err)
	}

	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "0 9 * * 1-5"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("watch schedule %q: %w", schedule, err)
	}

	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = "./reports"
	}

	return &Watcher{
		runner:   runner,
		entries:  cfg.Entries,
		schedule: schedule,
		outDir:   outDir,
		format:   format,
		log:      logger.OrDiscard(log),
		now:      time.Now,
	}, nil
}

// RunOnce runs every entry in order and writes its report. A failing entry
// does not stop the others; the joined error covers every failure.
func (w *Watcher) RunOnce(ctx context.Context) ([]Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	results := make([]Result, 0, len(w.entries))
	var errs []error
	for _, entry := range w.entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := w.runEntry(ctx, entry)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Ticker, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (w *Watcher) runEntry(ctx context.Context, entry config.WatchEntry) Result {
	company, ticker := strings.TrimSpace(entry.Company), strings.TrimSpace(entry.Ticker)
	res := Result{Entry: entry, SessionID: pipeline.NewSessionID("watch", ticker)}
	log := w.log.WithFields(logrus.Fields{"ticker": ticker, "session_id": res.SessionID})

	start := w.now()
	summary, err := w.runner.RunWith(ctx, company, ticker, res.SessionID, pipeline.RunOptions{})
	if err != nil {
		log.WithError(err).Warn("watchlist run failed")
		res.Err = err
		return res
	}

	cfg := report.DefaultReportConfig()
	cfg.Format = w.format
	body, err := report.Generate(summary, cfg)
	if err != nil {
		res.Err = fmt.Errorf("rendering report: %w", err)
		return res
	}

	path := filepath.Join(w.outDir, reportName(ticker, start, w.format))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		res.Err = fmt.Errorf("writing report: %w", err)
		return res
	}
	res.Path = path

	log.WithFields(logrus.Fields{
		"path":     path,
		"risks":    len(summary.Risks),
		"duration": report.FormatDuration(w.now().Sub(start)),
	}).Info("watchlist report written")
	return res
}

// Start schedules RunOnce on the cron schedule. Runs use ctx, so cancelling
// it aborts an in-flight run.
func (w *Watcher) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.WithError(err).Warn("watchlist run finished with errors")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling watchlist: %w", err)
	}
	w.cron = c
	c.Start()
	w.log.WithFields(logrus.Fields{
		"schedule": w.schedule,
		"entries":  len(w.entries),
	}).Info("watchlist scheduled")
	return nil
}

// Stop stops the scheduler. The returned context is done once any running
// job has completed.
func (w *Watcher) Stop() context.Context {
	if w.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return w.cron.Stop()
}

// reportName returns "{ticker}-{yyyymmdd-hhmmss}{ext}" with the ticker made
// filesystem safe.
func reportName(ticker string, at time.Time, format report.ReportFormat) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, ticker)
	return safe + "-" + at.UTC().Format("20060102-150405") + format.Extension()
}
