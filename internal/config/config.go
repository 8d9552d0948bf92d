// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	RDClientID     string
	RDClientSecret string
	RDRedirectURI  string
	RDBaseURL      string

	SyncInterval  time.Duration
	SyncLookback  time.Duration
	ListPageSize  int
	ListMaxPages  int
	StaleRunAfter time.Duration

	ListenAddr      string
	DBPath          string
	DashboardSecret string
}

// HasOAuthApp returns true when the provider OAuth application is configured.
// Without it the authorization endpoints are disabled, but the service still
// runs and records skipped syncs until a credential exists.
func (c *Config) HasOAuthApp() bool {
	return c.RDClientID != "" && c.RDClientSecret != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// Variables set in a .env file (CAMPAIGNSYNC_ENV_FILE, default ".env") are
// applied first without overriding the process environment; a missing file
// is not an error.
// Optional variables with defaults: RD_API_BASE_URL (https://api.rd.services),
// CAMPAIGNSYNC_SYNC_INTERVAL (1h), CAMPAIGNSYNC_SYNC_LOOKBACK (720h),
// CAMPAIGNSYNC_LIST_PAGE_SIZE (100), CAMPAIGNSYNC_LIST_MAX_PAGES (20),
// CAMPAIGNSYNC_STALE_RUN_AFTER (0, disabled), CAMPAIGNSYNC_LISTEN_ADDR
// (127.0.0.1:8080), CAMPAIGNSYNC_DB_PATH (campaignsync.db).
func Load() (*Config, error) {
	envFile := ".env"
	if v, ok := os.LookupEnv("CAMPAIGNSYNC_ENV_FILE"); ok && v != "" {
		envFile = v
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	cfg := &Config{
		RDClientID:      os.Getenv("RD_CLIENT_ID"),
		RDClientSecret:  os.Getenv("RD_CLIENT_SECRET"),
		RDRedirectURI:   os.Getenv("RD_REDIRECT_URI"),
		RDBaseURL:       stringEnv("RD_API_BASE_URL", "https://api.rd.services"),
		ListenAddr:      stringEnv("CAMPAIGNSYNC_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:          stringEnv("CAMPAIGNSYNC_DB_PATH", "campaignsync.db"),
		DashboardSecret: os.Getenv("CAMPAIGNSYNC_DASHBOARD_SECRET"),
	}

	var err error
	if cfg.SyncInterval, err = durationEnv("CAMPAIGNSYNC_SYNC_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("CAMPAIGNSYNC_SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}

	if cfg.SyncLookback, err = durationEnv("CAMPAIGNSYNC_SYNC_LOOKBACK", 720*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SyncLookback < 0 {
		return nil, fmt.Errorf("CAMPAIGNSYNC_SYNC_LOOKBACK must not be negative, got %s", cfg.SyncLookback)
	}

	if cfg.StaleRunAfter, err = durationEnv("CAMPAIGNSYNC_STALE_RUN_AFTER", 0); err != nil {
		return nil, err
	}
	if cfg.StaleRunAfter < 0 {
		return nil, fmt.Errorf("CAMPAIGNSYNC_STALE_RUN_AFTER must not be negative, got %s", cfg.StaleRunAfter)
	}

	if cfg.ListPageSize, err = positiveIntEnv("CAMPAIGNSYNC_LIST_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.ListMaxPages, err = positiveIntEnv("CAMPAIGNSYNC_LIST_MAX_PAGES", 20); err != nil {
		return nil, err
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, parsed)
	}
	return parsed, nil
}
