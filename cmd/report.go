package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelichko/manager-pulse/internal/pipeline"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analyze recent conversations and generate reports",
	Long: `Fetches the manager's recent Telegram dialogs, computes responsiveness
metrics per client, runs LLM promise and quality analysis, and writes
console, Markdown, and CSV reports.

With --offline, skips Telegram entirely and analyzes cached messages.

Exit codes:
  0 - Success
  1 - Partial failure (some dialogs failed, report generated from available data)
  2 - Fatal error (no data available, no report generated)
  3 - Configuration error`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate configuration.
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(3)
		}
		if !cfg.Offline {
			if err := cfg.ValidateTelegram(); err != nil {
				fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
				os.Exit(3)
			}
		}

		ctx := cmd.Context()

		p, err := pipeline.New(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: failed to create pipeline: %v\n", err)
			os.Exit(2)
		}
		defer p.Close()

		// In offline mode, analyze cached data only.
		var runErr error
		if cfg.Offline {
			runErr = p.AnalyzeOnly(ctx)
		} else {
			runErr = p.Run(ctx)
		}

		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", runErr)
			os.Exit(2)
		}

		fmt.Fprintf(os.Stdout, "\nReports generated successfully in: %s\n", cfg.OutputDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
