package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketbrief/api"
	"github.com/seenimoa/marketbrief/internal/mcpserver"
	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/internal/watch"
)

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form and HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := pipeline.Build(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer runner.Checkpoints().Close()

		srv := api.NewServer(api.Options{
			Config:      cfg,
			Runner:      runner,
			Checkpoints: runner.Checkpoints(),
			Logger:      log,
		})
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Watch Command ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the configured watchlist on its cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := pipeline.Build(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer runner.Checkpoints().Close()

		w, err := watch.New(cfg.Watch, runner, log)
		if err != nil {
			return err
		}

		if once {
			results, err := w.RunOnce(ctx)
			for _, r := range results {
				if r.Err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", r.Entry.Ticker, r.Path)
				}
			}
			return err
		}

		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		log.Info("stopping watchlist scheduler")
		<-w.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("once", false, "run every watchlist entry once and exit")
}

// --- MCP Command ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as an MCP tool over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; the logger already writes to stderr.
		runner, err := pipeline.Build(cmd.Context(), cfg, log, nil)
		if err != nil {
			return err
		}
		defer runner.Checkpoints().Close()

		return mcpserver.New(runner, runner.Checkpoints(), version, log).ServeStdio()
	},
}
