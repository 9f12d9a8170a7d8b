// Package mcpserver exposes the pipeline as Model Context Protocol tools
// served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/marketbrief/internal/checkpoint"
	"github.com/seenimoa/marketbrief/internal/logger"
	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// Name is the MCP server name advertised to clients.
const Name = "marketbrief"

// Summarizer runs the pipeline. *pipeline.Runner satisfies it.
type Summarizer interface {
	RunWith(ctx context.Context, company, ticker, sessionID string, opts pipeline.RunOptions) (*models.MarketSummary, error)
}

// Server wraps an MCP server bound to a pipeline.
type Server struct {
	mcp         *server.MCPServer
	runner      Summarizer
	checkpoints checkpoint.Store
	log         logrus.FieldLogger
}

// New creates an MCP server with the run_pipeline and get_checkpoint tools.
func New(runner Summarizer, store checkpoint.Store, version string, log logrus.FieldLogger) *Server {
	s := &Server{
		mcp:         server.NewMCPServer(Name, version, server.WithToolCapabilities(true)),
		runner:      runner,
		checkpoints: store,
		log:         logger.OrDiscard(log),
	}
	s.mcp.AddTool(runPipelineTool(), s.handleRunPipeline)
	if store != nil {
		s.mcp.AddTool(getCheckpointTool(), s.handleGetCheckpoint)
	}
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves requests on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// --- Tool definitions ---

func runPipelineTool() mcp.Tool {
	return mcp.NewTool("run_pipeline",
		mcp.WithDescription("Collect price, news and encyclopedia data for a company, ask a language model for an analysis, and return the market summary (risks, recommendations, narrative, price snapshot, top news)."),
		mcp.WithString("company", mcp.Required(), mcp.Description("Company name used for news and encyclopedia lookup, e.g. 'Apple Inc.'")),
		mcp.WithString("ticker", mcp.Required(), mcp.Description("Exchange ticker used for the price lookup, e.g. 'AAPL'")),
		mcp.WithString("session_id", mcp.Description("Checkpoint key for this run. A fresh id is generated when omitted.")),
		mcp.WithBoolean("use_news", mcp.Description("Fetch recent news (default: true)")),
		mcp.WithString("format", mcp.Description("Output format: json (default), markdown, text, yaml or toml")),
	)
}

func getCheckpointTool() mcp.Tool {
	return mcp.NewTool("get_checkpoint",
		mcp.WithDescription("Return the latest checkpointed pipeline state for a session id."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id passed to or returned by run_pipeline")),
	)
}

// --- Handlers ---

func (s *Server) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company, err := request.RequireString("company")
	if err != nil || strings.TrimSpace(company) == "" {
		return errorResult("company is required"), nil
	}
	ticker, err := request.RequireString("ticker")
	if err != nil || strings.TrimSpace(ticker) == "" {
		return errorResult("ticker is required"), nil
	}
	company, ticker = strings.TrimSpace(company), strings.TrimSpace(ticker)

	format, err := report.ParseFormat(request.GetString("format", "json"))
	if err != nil || format == report.FormatPDF || format == report.FormatHTML {
		return errorResult(fmt.Sprintf("unsupported format %q", request.GetString("format", ""))), nil
	}

	sessionID := strings.TrimSpace(request.GetString("session_id", ""))
	if sessionID == "" {
		sessionID = pipeline.NewSessionID("mcp", ticker)
	}

	summary, err := s.runner.RunWith(ctx, company, ticker, sessionID, pipeline.RunOptions{
		SkipNews: !request.GetBool("use_news", true),
	})
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("run_pipeline failed")
		return errorResult(err.Error()), nil
	}

	cfg := report.DefaultReportConfig()
	cfg.Format = format
	body, err := report.Generate(summary, cfg)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(body)), nil
}

func (s *Server) handleGetCheckpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return errorResult("session_id is required"), nil
	}
	state, err := s.checkpoints.Load(ctx, id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return errorResult("no checkpoint for session " + id), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
