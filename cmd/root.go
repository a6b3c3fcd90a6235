package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avelichko/manager-pulse/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "manager-pulse",
	Short: "Telegram manager responsiveness analyzer",
	Long: `A CLI tool that fetches a manager's recent Telegram conversations, computes
response-time and initiative metrics per client, and uses an LLM to flag
unfinished promises and conversation quality issues, producing console,
Markdown, and CSV reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.Int("chat-limit", 10, "Maximum number of dialogs to process")
	pf.String("history-depth", "30d", "How far back to fetch messages (e.g., 7d, 2w, 1m)")
	pf.String("max-dialog-age", "12m", "Skip dialogs idle longer than this")
	pf.String("output-dir", "./reports", "Output directory for reports")
	pf.String("format", "all", "Report format: markdown, csv, all")
	pf.String("db-path", "./manager-pulse.db", "SQLite database path")
	pf.String("llm-provider", "gemini", "LLM provider: gemini, openai, anthropic")
	pf.String("llm-model", "gemini-1.5-flash-latest", "LLM model to use")
	pf.String("gemini-api-key", "", "Gemini API key")
	pf.String("openai-api-key", "", "OpenAI API key")
	pf.String("anthropic-api-key", "", "Anthropic API key")
	pf.Int("tg-api-id", 0, "Telegram API ID")
	pf.String("tg-api-hash", "", "Telegram API hash")
	pf.String("tg-phone", "", "Telegram phone number")
	pf.String("session-file", "", "Telegram session file path")
	pf.Int64("manager-id", 0, "Telegram user ID of the manager (defaults to the logged-in account)")
	pf.Bool("offline", false, "Analyze cached data only, no Telegram access")
	pf.Bool("verbose", false, "Verbose logging")
	pf.String("config", "", "Path to YAML config file")

	// Bind flags to viper
	flags := []string{
		"chat-limit", "history-depth", "max-dialog-age", "output-dir", "format",
		"db-path", "llm-provider", "llm-model", "gemini-api-key", "openai-api-key",
		"anthropic-api-key", "tg-api-id", "tg-api-hash", "tg-phone", "session-file",
		"manager-id", "offline", "verbose", "config",
	}
	for _, f := range flags {
		_ = viper.BindPFlag(f, pf.Lookup(f))
	}
}

func initConfig() {
	cfg = config.DefaultConfig()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	// Bind environment variables
	_ = viper.BindEnv("tg-api-id", "TG_API_ID")
	_ = viper.BindEnv("tg-api-hash", "TG_API_HASH")
	_ = viper.BindEnv("tg-phone", "TG_PHONE")
	_ = viper.BindEnv("gemini-api-key", "GEMINI_API_KEY")
	_ = viper.BindEnv("openai-api-key", "OPENAI_API_KEY")
	_ = viper.BindEnv("anthropic-api-key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("chat-limit", "MP_CHAT_LIMIT")
	_ = viper.BindEnv("history-depth", "MP_HISTORY_DEPTH")
	_ = viper.BindEnv("max-dialog-age", "MP_MAX_DIALOG_AGE")
	_ = viper.BindEnv("output-dir", "MP_OUTPUT_DIR")
	_ = viper.BindEnv("format", "MP_FORMAT")
	_ = viper.BindEnv("db-path", "MP_DB_PATH")
	_ = viper.BindEnv("llm-provider", "MP_LLM_PROVIDER")
	_ = viper.BindEnv("llm-model", "MP_LLM_MODEL")
	_ = viper.BindEnv("session-file", "MP_SESSION_FILE")
	_ = viper.BindEnv("manager-id", "MP_MANAGER_ID")
	_ = viper.BindEnv("verbose", "MP_VERBOSE")

	_ = viper.ReadInConfig()

	// Apply viper values to config
	if v := viper.GetInt("chat-limit"); v > 0 {
		cfg.ChatLimit = v
	}
	if v := viper.GetString("history-depth"); v != "" {
		if d, err := config.ParseLookback(v); err == nil {
			cfg.HistoryDepth = d
		}
	}
	if v := viper.GetString("max-dialog-age"); v != "" {
		if d, err := config.ParseLookback(v); err == nil {
			cfg.MaxDialogAge = d
		}
	}
	if v := viper.GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	if v := viper.GetString("format"); v != "" {
		cfg.Format = v
	}
	if v := viper.GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if v := viper.GetString("llm-provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := viper.GetString("llm-model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetString("gemini-api-key"); v != "" {
		cfg.LLM.GeminiKey = v
	}
	if v := viper.GetString("openai-api-key"); v != "" {
		cfg.LLM.OpenAIKey = v
	}
	if v := viper.GetString("anthropic-api-key"); v != "" {
		cfg.LLM.AnthropicKey = v
	}
	if v := viper.GetInt("tg-api-id"); v != 0 {
		cfg.Telegram.APIID = v
	}
	if v := viper.GetString("tg-api-hash"); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := viper.GetString("tg-phone"); v != "" {
		cfg.Telegram.Phone = v
	}
	if v := viper.GetString("session-file"); v != "" {
		cfg.Telegram.SessionFile = v
	}
	if v := viper.GetInt64("manager-id"); v != 0 {
		cfg.ManagerID = v
	}
	cfg.Offline = viper.GetBool("offline")
	cfg.Verbose = viper.GetBool("verbose")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
