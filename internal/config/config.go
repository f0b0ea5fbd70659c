// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	StreamerURL    string
	DataDir        string // Parent of published_configs/ and cache snapshots (always absolute)
	StaticDir      string // Built dashboard assets; served only when the directory exists
	LogLevel       string
	LogPretty      bool
	DevMode        bool
	PingPrivileged bool

	SweepSchedule    string        // cron spec for the published-config sweep
	ConfigMaxAge     time.Duration // idle lifetime of a published config
	PublishRateLimit int           // publishes per minute per client IP

	R2 R2Config
}

// R2Config holds the optional Cloudflare R2 mirror credentials
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

// Enabled reports whether every R2 credential is present.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "."))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		Port:             getEnvAsInt("PORT", 8080),
		StreamerURL:      getEnv("STREAMER_URL", "http://127.0.0.1:1984"),
		DataDir:          dataDir,
		StaticDir:        getEnv("STATIC_DIR", "dist"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", true),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		PingPrivileged:   getEnvAsBool("PING_PRIVILEGED", false),
		SweepSchedule:    getEnv("CONFIG_SWEEP_SCHEDULE", "@every 1h"),
		ConfigMaxAge:     getEnvAsDuration("CONFIG_MAX_AGE", 30*24*time.Hour),
		PublishRateLimit: getEnvAsInt("PUBLISH_RATE_LIMIT", 10),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d: must be between 1 and 65535", c.Port)
	}

	u, err := url.Parse(c.StreamerURL)
	if err != nil {
		return fmt.Errorf("invalid STREAMER_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid STREAMER_URL %q: must be an absolute http(s) URL", c.StreamerURL)
	}

	if c.ConfigMaxAge <= 0 {
		return errors.New("CONFIG_MAX_AGE must be positive")
	}
	if c.PublishRateLimit <= 0 {
		return errors.New("PUBLISH_RATE_LIMIT must be positive")
	}

	return nil
}

// PublishedConfigsDir returns the directory holding published dashboard configs.
func (c *Config) PublishedConfigsDir() string {
	return filepath.Join(c.DataDir, "published_configs")
}

// TitleCacheSnapshotPath returns where the page-title cache is persisted across restarts.
func (c *Config) TitleCacheSnapshotPath() string {
	return filepath.Join(c.DataDir, "title_cache.msgpack")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
