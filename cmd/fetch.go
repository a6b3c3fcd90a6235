package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelichko/manager-pulse/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch Telegram messages without running analysis",
	Long: `Fetches recent one-on-one dialogs and their message history for the
configured time window, storing everything in the local SQLite database.
Does not run LLM analysis or generate reports.

This is useful for populating the cache before running 'report --offline',
or for archiving conversations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateTelegram(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(3)
		}

		ctx := cmd.Context()

		p, err := pipeline.New(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: failed to create pipeline: %v\n", err)
			os.Exit(2)
		}
		defer p.Close()

		if err := p.FetchOnly(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(2)
		}

		fmt.Fprintf(os.Stdout, "Fetch completed successfully. Data stored in: %s\n", cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
