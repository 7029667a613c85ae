package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CATALOG_BASE_URL", "https://catalog.example.com/api")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://catalog.example.com/api", cfg.CatalogBaseURL)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, 10*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 1, cfg.MaxParallel)
	assert.Equal(t, time.Hour, cfg.StalePartialAge)
	assert.Equal(t, time.Hour, cfg.ClaimTTL)
	assert.False(t, cfg.ProgressBar)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, "downloads.db", cfg.DBPath)
	assert.Equal(t, "course_downloader", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Web.ShutdownTimeout)
}

func TestLoadConfig_MissingCatalogURL(t *testing.T) {
	t.Setenv("CATALOG_BASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CATALOG_BASE_URL", "http://localhost:8080")
	t.Setenv("MAX_PARALLEL", "4")
	t.Setenv("DOWNLOAD_TIMEOUT", "30s")
	t.Setenv("TELEMETRY_ENABLED", "true")
	t.Setenv("TELEMETRY_OTLP_ENDPOINT", "collector:4317")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxParallel)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty catalog url", func(c *Config) { c.CatalogBaseURL = "" }, true},
		{"zero parallel", func(c *Config) { c.MaxParallel = 0 }, true},
		{"negative timeout", func(c *Config) { c.DownloadTimeout = -time.Second }, true},
		{"negative claim ttl", func(c *Config) { c.ClaimTTL = -time.Minute }, true},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"text log format", func(c *Config) { c.LogFormat = "TEXT" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{CatalogBaseURL: "http://catalog", MaxParallel: 1, DownloadTimeout: time.Minute, LogFormat: "json"}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}
