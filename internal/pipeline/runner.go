package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/checkpoint"
	"github.com/seenimoa/marketbrief/internal/extract"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// State is the value handed from stage to stage.
type State = models.State

// Stage names, in execution order.
const (
	StageCollect = "collect"
	StageAnalyze = "analyze"
)

// Event reports a finished stage to an Observer.
type Event struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
}

// Observer is called synchronously after each stage.
type Observer func(Event)

// Runner wires the collector and analyst into START → collect → analyze → END.
type Runner struct {
	collector   *Collector
	analyst     *Analyst
	checkpoints checkpoint.Store
	observer    Observer
	now         func() time.Time
	log         logrus.FieldLogger
}

// RunnerConfig holds the dependencies of a Runner. Checkpoints defaults to an
// in-memory store.
type RunnerConfig struct {
	Collector   *Collector
	Analyst     *Analyst
	Checkpoints checkpoint.Store
	Observer    Observer
	Logger      logrus.FieldLogger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		collector:   cfg.Collector,
		analyst:     cfg.Analyst,
		checkpoints: cfg.Checkpoints,
		observer:    cfg.Observer,
		now:         time.Now,
		log:         logger.OrDiscard(cfg.Logger),
	}
	if r.checkpoints == nil {
		r.checkpoints = checkpoint.NewMemory()
	}
	return r
}

// Checkpoints returns the store the runner writes to.
func (r *Runner) Checkpoints() checkpoint.Store { return r.checkpoints }

// NewSessionID returns "{prefix}-{ticker}-{uuid}", or "{prefix}-{uuid}" when
// ticker is empty.
func NewSessionID(prefix, ticker string) string {
	if ticker == "" {
		return prefix + "-" + uuid.NewString()
	}
	return prefix + "-" + ticker + "-" + uuid.NewString()
}

// RunOptions adjusts a single run.
type RunOptions struct {
	SkipNews bool
	// Observer receives events for this run in addition to the runner's own.
	Observer Observer
}

// Run executes the pipeline and returns the extracted summary. An empty
// sessionID gets a fresh "market-{ticker}-{uuid}" id.
func (r *Runner) Run(ctx context.Context, company, ticker, sessionID string) (*models.MarketSummary, error) {
	return r.RunWith(ctx, company, ticker, sessionID, RunOptions{})
}

// RunWith is Run with per-call options.
func (r *Runner) RunWith(ctx context.Context, company, ticker, sessionID string, opts RunOptions) (*models.MarketSummary, error) {
	if sessionID == "" {
		sessionID = NewSessionID("market", ticker)
	}
	log := r.log.WithFields(logrus.Fields{"session_id": sessionID, "ticker": ticker})

	// Every run starts fresh; stored checkpoints are never resumed.
	state := models.NewState(company, ticker, sessionID)

	state = r.collect(ctx, state, opts)
	r.checkpoint(ctx, state, log)
	r.emit(opts, state, StageCollect)

	state, err := r.analyze(ctx, state)
	if err != nil {
		log.WithError(err).Error("pipeline failed")
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	r.checkpoint(ctx, state, log)
	r.emit(opts, state, StageAnalyze)

	summary := extract.FromState(state, r.now())
	log.WithFields(logrus.Fields{
		"risks":           len(summary.Risks),
		"recommendations": len(summary.Recommendations),
	}).Info("pipeline finished")
	return &summary, nil
}

func (r *Runner) collect(ctx context.Context, in State, opts RunOptions) State {
	rec := r.collector.CollectWith(ctx, in.Company, in.Ticker, CollectOptions{SkipNews: opts.SkipNews})
	return in.WithCollected(rec, models.Trace{
		Stage:   StageCollect,
		Content: fmt.Sprintf("Collected data for %s (%s).", in.Company, in.Ticker),
		At:      r.now(),
	})
}

func (r *Runner) analyze(ctx context.Context, in State) (State, error) {
	res, err := r.analyst.Analyze(ctx, *in.Collected)
	if err != nil {
		return in, fmt.Errorf("analyze: %w", err)
	}
	return in.WithAnalysis(res, models.Trace{
		Stage:   StageAnalyze,
		Content: "Completed analysis.",
		At:      r.now(),
	}), nil
}

func (r *Runner) checkpoint(ctx context.Context, state State, log logrus.FieldLogger) {
	if err := r.checkpoints.Save(ctx, state); err != nil {
		log.WithError(err).Warn("checkpoint write failed")
	}
}

func (r *Runner) emit(opts RunOptions, state State, stage string) {
	if r.observer == nil && opts.Observer == nil {
		return
	}
	ev := Event{SessionID: state.SessionID, Stage: stage}
	if n := len(state.Messages); n > 0 {
		ev.Message = state.Messages[n-1].Content
	}
	if r.observer != nil {
		r.observer(ev)
	}
	if opts.Observer != nil {
		opts.Observer(ev)
	}
}
