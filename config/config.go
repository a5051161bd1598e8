// Package config loads application configuration from environment
// variables with sane defaults. The CLI additionally layers viper-managed
// flags/files on top of this; the server reads the environment directly.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scrape    ScrapeConfig
	Stealth   StealthConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared headless browser.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxContexts is the open-context ceiling before the pool recycles
	// the browser.
	MaxContexts int // default: 10

	// LaunchTimeout bounds a single browser launch.
	LaunchTimeout time.Duration // default: 15s

	// IdleTimeout tears the browser down after this much inactivity.
	IdleTimeout time.Duration // default: 60s

	// Proxy is the default proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string
}

// ScrapeConfig holds the per-job defaults applied to requests that leave
// fields unset.
type ScrapeConfig struct {
	// MaxPages bounds discovery and the scrape loop.
	MaxPages int // default: 20

	// PageTimeout is the per-page deadline.
	PageTimeout time.Duration // default: 30s

	// MaxPageTimeout caps the per-page timeout a client may request.
	MaxPageTimeout time.Duration // default: 120s

	// RequestDelay is the politeness pause between pages of one domain.
	RequestDelay time.Duration // default: 1s

	// Concurrency is the default bounded worker count.
	Concurrency int // default: 1

	// BlockResourceTypes lists resource types the browser refuses to load.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockResourceTypes []string

	// MemoryTTL is how long a domain's winning strategy is remembered.
	MemoryTTL time.Duration // default: 1h
}

// StealthConfig controls the default anti-bot posture.
type StealthConfig struct {
	// Enabled applies stealth evasions to browser strategies by default.
	Enabled bool // default: true

	// Evasions narrows the evasion set when non-empty
	// (webdriver, plugins, webgl, permissions, fingerprint).
	Evasions []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached job results.
	MaxEntries int // default: 1000

	// TTL is how long a cached result stays valid.
	TTL time.Duration // default: 15m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File enables rotating file output when non-empty; empty logs to stderr.
	File       string
	MaxSizeMB  int // default: 100
	MaxBackups int // default: 3
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SITEGRAZER_HOST", "0.0.0.0"),
			Port: envIntOr("SITEGRAZER_PORT", 8080),
			Mode: envOr("SITEGRAZER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("SITEGRAZER_HEADLESS", true),
			MaxContexts:   envIntOr("SITEGRAZER_MAX_CONTEXTS", 10),
			LaunchTimeout: envDurationOr("SITEGRAZER_LAUNCH_TIMEOUT", 15*time.Second),
			IdleTimeout:   envDurationOr("SITEGRAZER_IDLE_TIMEOUT", 60*time.Second),
			Proxy:         os.Getenv("SITEGRAZER_PROXY"),
			NoSandbox:     envBoolOr("SITEGRAZER_NO_SANDBOX", false),
			Bin:           os.Getenv("SITEGRAZER_BROWSER_BIN"),
		},
		Scrape: ScrapeConfig{
			MaxPages:       envIntOr("SITEGRAZER_MAX_PAGES", 20),
			PageTimeout:    envDurationOr("SITEGRAZER_PAGE_TIMEOUT", 30*time.Second),
			MaxPageTimeout: envDurationOr("SITEGRAZER_MAX_PAGE_TIMEOUT", 120*time.Second),
			RequestDelay:   envDurationOr("SITEGRAZER_REQUEST_DELAY", time.Second),
			Concurrency:    envIntOr("SITEGRAZER_CONCURRENCY", 1),
			BlockResourceTypes: envSliceOr("SITEGRAZER_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			MemoryTTL: envDurationOr("SITEGRAZER_MEMORY_TTL", time.Hour),
		},
		Stealth: StealthConfig{
			Enabled:  envBoolOr("SITEGRAZER_STEALTH", true),
			Evasions: envSliceOr("SITEGRAZER_EVASIONS", nil),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SITEGRAZER_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SITEGRAZER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SITEGRAZER_RATE_RPS", 5.0),
			Burst:             envIntOr("SITEGRAZER_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SITEGRAZER_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("SITEGRAZER_CACHE_TTL", 15*time.Minute),
		},
		Log: LogConfig{
			Level:      envOr("SITEGRAZER_LOG_LEVEL", "info"),
			Format:     envOr("SITEGRAZER_LOG_FORMAT", "json"),
			File:       os.Getenv("SITEGRAZER_LOG_FILE"),
			MaxSizeMB:  envIntOr("SITEGRAZER_LOG_MAX_SIZE_MB", 100),
			MaxBackups: envIntOr("SITEGRAZER_LOG_MAX_BACKUPS", 3),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
