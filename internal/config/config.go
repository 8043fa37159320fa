// Package config provides Viper-based hierarchical configuration for the
// ledger pipeline, plus .env loading for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var envOnce sync.Once

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Store struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`

	Import struct {
		// DateFormats are tried in order when parsing feed dates.
		// Day-first formats come first; bank exports are day/month/year.
		DateFormats []string `mapstructure:"date_formats"`
	} `mapstructure:"import"`

	AI struct {
		Enabled        bool   `mapstructure:"enabled"`
		Model          string `mapstructure:"model"`
		APIKey         string `mapstructure:"api_key"`
		ChunkSize      int    `mapstructure:"chunk_size"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"ai"`

	Transfer struct {
		// KeywordsFile optionally replaces the built-in fallback keyword
		// table with a YAML file.
		KeywordsFile string `mapstructure:"keywords_file"`
		// WindowDays is the calendar-day tolerance when matching the two
		// halves of a transfer across accounts.
		WindowDays int `mapstructure:"window_days"`
	} `mapstructure:"transfer"`

	Aggregator struct {
		BaseURL        string `mapstructure:"base_url"`
		APIKey         string `mapstructure:"api_key"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"aggregator"`
}

// Load initializes configuration with hierarchical precedence:
// defaults, then an optional config file, then HEARTH_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.hearthledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HEARTH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// A broken config file should not stop the run; defaults and
			// environment variables still apply.
			fmt.Fprintf(os.Stderr, "warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// The Gemini key is conventionally set unprefixed.
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to bind GEMINI_API_KEY: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.path", "hearthledger.db")

	v.SetDefault("import.date_formats", []string{
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
		"2/1/2006",
		"2006-01-02",
	})

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.chunk_size", 20)
	v.SetDefault("ai.timeout_seconds", 30)

	v.SetDefault("transfer.keywords_file", "")
	v.SetDefault("transfer.window_days", 1)

	v.SetDefault("aggregator.base_url", "")
	v.SetDefault("aggregator.timeout_seconds", 30)
}

func validate(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.AI.Enabled && config.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
	}

	if config.AI.ChunkSize < 1 || config.AI.ChunkSize > 500 {
		return fmt.Errorf("ai.chunk_size must be between 1 and 500, got: %d", config.AI.ChunkSize)
	}

	if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
		return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
	}

	if config.Transfer.WindowDays < 0 || config.Transfer.WindowDays > 7 {
		return fmt.Errorf("transfer.window_days must be between 0 and 7, got: %d", config.Transfer.WindowDays)
	}

	return nil
}

// LoadEnv loads environment variables from a .env file if one exists.
func LoadEnv() {
	envOnce.Do(func() {
		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			return
		}
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
		}
	})
}
