// Package api provides the HTTP front-end for marketbrief.
//
// It serves the web form, a JSON API over the pipeline, rendered reports,
// checkpoint lookups and a WebSocket feed of pipeline progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/checkpoint"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// Version is reported by the health endpoint. Set by the CLI at startup.
var Version = "dev"

// Summarizer runs the pipeline for one company. *pipeline.Runner satisfies it.
type Summarizer interface {
	RunWith(ctx context.Context, company, ticker, sessionID string, opts pipeline.RunOptions) (*models.MarketSummary, error)
}

// Server is the HTTP API server.
type Server struct {
	router      chi.Router
	cfg         *config.Config
	runner      Summarizer
	checkpoints checkpoint.Store
	wsHub       *WSHub
	validate    *validator.Validate
	log         logrus.FieldLogger
	timeout     time.Duration
}

// Options holds the dependencies of a Server.
type Options struct {
	Config      *config.Config
	Runner      Summarizer
	Checkpoints checkpoint.Store
	Logger      logrus.FieldLogger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	store := opts.Checkpoints
	if store == nil {
		store = checkpoint.NewMemory()
	}

	timeout := time.Duration(cfg.API.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	log := logger.OrDiscard(opts.Logger)
	srv := &Server{
		cfg:         cfg,
		runner:      opts.Runner,
		checkpoints: store,
		wsHub:       NewWSHub(log),
		validate:    validator.New(),
		log:         log,
		timeout:     timeout,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Web form
	r.Get("/", s.handleFormPage)
	r.Post("/", s.handleFormSubmit)

	// Health check
	r.Get("/health", s.handleHealth)

	// WebSocket progress feed
	r.Get("/ws", s.handleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/summary", s.handleSummary)
		r.Get("/report/{format}", s.handleReport)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Get("/config", s.handleGetConfig)
		r.Get("/keys", s.handleGetConfigKeys)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SummaryRequest is the body for POST /api/v1/summary.
type SummaryRequest struct {
	Company   string `json:"company"              validate:"required,max=200"`
	Ticker    string `json:"ticker"               validate:"required,max=32"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
	UseNews   *bool  `json:"use_news,omitempty"`
}

func (req *SummaryRequest) normalize() {
	req.Company = strings.TrimSpace(req.Company)
	req.Ticker = strings.TrimSpace(req.Ticker)
	req.SessionID = strings.TrimSpace(req.SessionID)
}

func (req SummaryRequest) skipNews() bool {
	return req.UseNews != nil && !*req.UseNews
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"time_utc":   time.Now().UTC().Format(time.RFC3339),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	summary, err := s.run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    summary,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	req := SummaryRequest{
		Company:   q.Get("company"),
		Ticker:    q.Get("ticker"),
		SessionID: q.Get("session_id"),
	}
	if v := q.Get("use_news"); v != "" {
		use := v != "false" && v != "0"
		req.UseNews = &use
	}
	req.normalize()
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	summary, err := s.run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	cfg := report.DefaultReportConfig()
	cfg.Format = format
	body, err := report.Generate(summary, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == report.FormatPDF {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s%s"`, reportFileName(summary), format.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.checkpoints.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ids,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.checkpoints.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no checkpoint for session "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    state,
	})
}

// run executes the pipeline with the request timeout and streams progress
// to WebSocket clients.
func (s *Server) run(ctx context.Context, req SummaryRequest) (*models.MarketSummary, error) {
	if s.runner == nil {
		return nil, errors.New("pipeline is not configured")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = pipeline.NewSessionID("api", req.Ticker)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.runner.RunWith(ctx, req.Company, req.Ticker, sessionID, pipeline.RunOptions{
		SkipNews: req.skipNews(),
		Observer: func(ev pipeline.Event) {
			s.wsHub.Broadcast(WSMessage{Type: EventStageComplete, Data: ev})
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("summary failed")
		s.wsHub.Broadcast(WSMessage{
			Type: EventSummaryFailed,
			Data: map[string]string{"session_id": sessionID, "error": err.Error()},
		})
		return nil, err
	}

	s.wsHub.Broadcast(WSMessage{
		Type: EventSummaryComplete,
		Data: map[string]string{
			"session_id": sessionID,
			"company":    summary.Company,
			"ticker":     summary.PriceSnapshot.Ticker,
			"as_of":      summary.AsOf,
		},
	})
	return summary, nil
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// validationMessage turns validator errors into "company is required"-style text.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if field == "sessionid" {
			field = "session_id"
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func reportFileName(s *models.MarketSummary) string {
	name := strings.ToLower(s.PriceSnapshot.Ticker)
	if name == "" {
		name = "report"
	}
	return "marketbrief-" + strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, name)
}
