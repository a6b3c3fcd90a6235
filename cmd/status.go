package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelichko/manager-pulse/internal/sources"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check Telegram authentication status",
	Long: `Checks whether the stored Telegram session is still authorized by
connecting and querying the current authorization state.

Displays the authenticated account name and the session file location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateTelegram(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(3)
		}

		client, err := sources.NewTelegramClient(cfg.Telegram)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(2)
		}

		authorized, name, err := sources.SessionStatus(cmd.Context(), client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not check session: %v\n", err)
			os.Exit(2)
		}
		if !authorized {
			fmt.Fprintln(os.Stderr, "Not authenticated.")
			fmt.Fprintln(os.Stderr, "\nRun 'manager-pulse login' to authenticate.")
			os.Exit(1)
		}

		fmt.Fprintln(os.Stdout, "Telegram session status: valid")
		fmt.Fprintf(os.Stdout, "  Account:      %s\n", name)
		fmt.Fprintf(os.Stdout, "  Session file: %s\n", cfg.Telegram.SessionFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
