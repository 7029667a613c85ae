package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	CatalogBaseURL string `envconfig:"CATALOG_BASE_URL" required:"true"`
	CatalogToken   string `envconfig:"CATALOG_TOKEN"`

	OutputDir       string        `envconfig:"OUTPUT_DIR" default:"."`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	MaxParallel     int           `envconfig:"MAX_PARALLEL" default:"1"`
	StalePartialAge time.Duration `envconfig:"STALE_PARTIAL_AGE" default:"1h"`
	ClaimTTL        time.Duration `envconfig:"CLAIM_TTL" default:"1h"`
	ProgressBar     bool          `envconfig:"PROGRESS_BAR" default:"false"`
	NoColor         bool          `envconfig:"NO_COLOR" default:"false"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	LogFile           string `envconfig:"LOG_FILE"`
	DBPath            string `envconfig:"DB_PATH" default:"downloads.db"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"false"`
		ServiceName  string `split_words:"true" default:"course_downloader"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	MetricsAddress string `envconfig:"METRICS_ADDRESS"`

	Web struct {
		ReadTimeout     time.Duration `split_words:"true" default:"5s"`
		WriteTimeout    time.Duration `split_words:"true" default:"10s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL must not be empty")
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("MAX_PARALLEL must be at least 1, got %d", c.MaxParallel)
	}

	if c.ClaimTTL < 0 {
		return fmt.Errorf("CLAIM_TTL must not be negative, got %s", c.ClaimTTL)
	}

	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive, got %s", c.DownloadTimeout)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
