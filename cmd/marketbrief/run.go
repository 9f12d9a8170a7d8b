package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketbrief/internal/pipeline"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a market brief for one company",
	Example: `  marketbrief run --company "Apple Inc." --ticker AAPL
  marketbrief run --company "Infosys" --ticker INFY.NS --format markdown --out infy.md
  marketbrief run --company "Tesla" --ticker TSLA --no-news --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		ticker, _ := cmd.Flags().GetString("ticker")
		sessionID, _ := cmd.Flags().GetString("session-id")
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		noNews, _ := cmd.Flags().GetBool("no-news")

		company, ticker = strings.TrimSpace(company), strings.TrimSpace(ticker)
		if company == "" || ticker == "" {
			return fmt.Errorf("--company and --ticker are required")
		}
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if sessionID == "" {
			sessionID = pipeline.NewSessionID("cli", ticker)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := pipeline.Build(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer runner.Checkpoints().Close()

		summary, err := runner.RunWith(ctx, company, ticker, sessionID, pipeline.RunOptions{SkipNews: noNews})
		if err != nil {
			return err
		}

		rc := report.DefaultReportConfig()
		rc.Format = format
		if outPath == "" {
			if format == report.FormatPDF {
				return fmt.Errorf("pdf output needs --out")
			}
			return report.Render(cmd.OutOrStdout(), summary, rc)
		}

		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := report.Render(f, summary, rc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s (session %s)\n", outPath, sessionID)
		return nil
	},
}

func init() {
	runCmd.Flags().String("company", "", "company name used for news and encyclopedia lookup")
	runCmd.Flags().String("ticker", "", "exchange ticker used for the price lookup")
	runCmd.Flags().String("session-id", "", "checkpoint session id (default: cli-{ticker}-{uuid})")
	runCmd.Flags().StringP("format", "f", "json", "output format: json, yaml, toml, text, markdown, html, pdf")
	runCmd.Flags().StringP("out", "o", "", "write the report to this file instead of stdout")
	runCmd.Flags().Bool("no-news", false, "skip the news fetch")
}

// --- Chat Command ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat mode",
	Long:  "Prompt for a company and ticker in a loop and print a brief for each. Type exit or quit to leave.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, err := pipeline.Build(ctx, cfg, log, nil)
		if err != nil {
			return err
		}
		defer runner.Checkpoints().Close()

		return chatLoop(ctx, runner, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chatLoop reads company/ticker pairs until EOF or exit/quit. All runs share
// one chat-{uuid} session id.
func chatLoop(ctx context.Context, runner summarizer, in io.Reader, out io.Writer) error {
	sessionID := pipeline.NewSessionID("chat", "")
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "marketbrief chat. Type 'exit' or 'quit' to leave.")
	for {
		company, ok := prompt(scanner, out, "Company: ")
		if !ok {
			return scanner.Err()
		}
		ticker, ok := prompt(scanner, out, "Ticker: ")
		if !ok {
			return scanner.Err()
		}
		if company == "" || ticker == "" {
			fmt.Fprintln(out, "Please enter both a company name and a ticker.")
			continue
		}

		summary, err := runner.RunWith(ctx, company, ticker, sessionID, pipeline.RunOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		printChatSummary(out, summary)
	}
}

// prompt prints label and reads one trimmed line. ok is false on EOF or
// when the user typed exit/quit.
func prompt(scanner *bufio.Scanner, out io.Writer, label string) (string, bool) {
	fmt.Fprint(out, label)
	if !scanner.Scan() {
		return "", false
	}
	line := strings.TrimSpace(scanner.Text())
	switch strings.ToLower(line) {
	case "exit", "quit":
		return "", false
	}
	return line, true
}

func printChatSummary(out io.Writer, s *models.MarketSummary) {
	rc := report.DefaultReportConfig()
	rc.Format = report.FormatText
	fmt.Fprintln(out, report.GenerateText(s, rc))
}

type summarizer interface {
	RunWith(ctx context.Context, company, ticker, sessionID string, opts pipeline.RunOptions) (*models.MarketSummary, error)
}
