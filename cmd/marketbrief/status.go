package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/llm"
)

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, API keys and the resolved LLM backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ping, _ := cmd.Flags().GetBool("ping")
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  marketbrief — System Status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		fmt.Fprintln(out)

		backend, berr := cfg.LLM.ResolveBackend()
		resolved := string(backend)
		if berr != nil {
			resolved = "invalid: " + berr.Error()
		}

		fmt.Fprintln(out, "  Configuration:")
		fmt.Fprintf(out, "    LLM Backend:   %s → %s (model: %s)\n", displayBackend(cfg.LLM.Backend), resolved, cfg.LLM.ModelFor(backend))
		if len(cfg.LLM.Fallbacks) > 0 {
			fmt.Fprintf(out, "    Fallbacks:     %s\n", strings.Join(cfg.LLM.Fallbacks, ", "))
		}
		fmt.Fprintf(out, "    Checkpoints:   %s\n", displayDefault(cfg.Checkpoint.Backend, "memory"))
		fmt.Fprintf(out, "    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Fprintf(out, "    Watchlist:     %d entries, %q → %s\n", len(cfg.Watch.Entries), cfg.Watch.Schedule, cfg.Watch.OutputDir)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
		}

		if ping && berr == nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  Backend Health:")
			printHealth(cmd.Context(), out)
		}

		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "check that each configured LLM backend is reachable")
}

func printHealth(ctx context.Context, out io.Writer) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	router, err := llm.NewCompleter(ctx, cfg.LLM, log)
	if err != nil {
		fmt.Fprintf(out, "    ❌ %v\n", err)
		return
	}
	health := router.HealthCheck(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := health[name]; err != nil {
			fmt.Fprintf(out, "    %-12s ❌ %v\n", name+":", err)
			continue
		}
		fmt.Fprintf(out, "    %-12s ✅ ok\n", name+":")
	}
}

func displayBackend(name string) string {
	return displayDefault(name, "groq")
}

func displayDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
