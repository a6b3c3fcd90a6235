package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelichko/manager-pulse/internal/sources"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate the Telegram account",
	Long: `Runs the interactive Telegram login flow: sends a login code to the
configured phone number and prompts for it on the terminal (and for the
two-factor password when the account has one set).

The resulting MTProto session is stored on disk and reused by subsequent
fetch and report runs until it expires or is revoked.`,
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

		if err := sources.Login(cmd.Context(), client, cfg.Telegram.Phone); err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stdout, "Logged in. Session stored at: %s\n", cfg.Telegram.SessionFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
