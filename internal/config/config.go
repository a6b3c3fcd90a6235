package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	ChatLimit    int
	HistoryDepth time.Duration // how far back to fetch messages
	MaxDialogAge time.Duration // dialogs idle longer than this are skipped
	OutputDir    string
	Format       string // "markdown", "csv", or "all"
	DBPath       string
	Verbose      bool
	Offline      bool
	ManagerID    int64 // 0 means "use the logged-in account"
	ConfigFile   string

	Telegram TelegramConfig
	LLM      LLMConfig
}

// TelegramConfig holds Telegram MTProto credentials and session location.
type TelegramConfig struct {
	APIID       int
	APIHash     string
	Phone       string
	SessionFile string
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider     string // "gemini", "openai", or "anthropic"
	Model        string
	GeminiKey    string
	OpenAIKey    string
	AnthropicKey string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "manager-pulse")

	return &Config{
		ChatLimit:    10,
		HistoryDepth: 30 * 24 * time.Hour,
		MaxDialogAge: 365 * 24 * time.Hour,
		OutputDir:    "./reports",
		Format:       "all",
		DBPath:       "./manager-pulse.db",
		Telegram: TelegramConfig{
			SessionFile: filepath.Join(configDir, "telegram-session.json"),
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-1.5-flash-latest",
		},
	}
}

// ParseLookback parses a lookback string like "7d", "2w", "1m" into a duration.
// Supports: Nd (days), Nw (weeks), Nm (months of 30 days), and standard Go durations like "1h".
func ParseLookback(s string) (time.Duration, error) {
	if s == "" {
		return 7 * 24 * time.Hour, nil
	}

	s = strings.TrimSpace(strings.ToLower(s))

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid lookback format: %q", s)
	}

	numStr := s[:len(s)-1]
	unit := s[len(s)-1]

	// Try our custom d/w/m suffixes first (these take priority over Go duration parsing)
	if unit == 'd' || unit == 'w' || unit == 'm' {
		var num int
		if _, err := fmt.Sscanf(numStr, "%d", &num); err == nil {
			switch unit {
			case 'd':
				return time.Duration(num) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(num) * 7 * 24 * time.Hour, nil
			case 'm':
				return time.Duration(num) * 30 * 24 * time.Hour, nil
			}
		}
	}

	// Fall back to standard Go duration (e.g., "1h", "30s", "2h30m")
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	return 0, fmt.Errorf("invalid lookback format: %q (use Nd, Nw, Nm, or Go duration like 1h)", s)
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.ChatLimit < 1 {
		return fmt.Errorf("chat-limit must be >= 1, got %d", c.ChatLimit)
	}
	switch c.Format {
	case "markdown", "csv", "all":
	default:
		return fmt.Errorf("format must be 'markdown', 'csv', or 'all', got %q", c.Format)
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("llm provider must be 'gemini', 'openai', or 'anthropic', got %q", c.LLM.Provider)
	}
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when using gemini provider")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when using openai provider")
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when using anthropic provider")
		}
	}
	return nil
}

// ValidateTelegram checks the credentials needed to talk to Telegram.
// Only required for commands that fetch; offline analysis skips this.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("TG_API_ID is required (get one at my.telegram.org)")
	}
	if c.Telegram.APIHash == "" {
		return fmt.Errorf("TG_API_HASH is required (get one at my.telegram.org)")
	}
	return nil
}
