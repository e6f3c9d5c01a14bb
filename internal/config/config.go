package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string `env:"ENV" envDefault:"development"` // "development", "production", etc.

	// Server
	ServerAddr string `env:"SERVER_ADDR" envDefault:":3000"`
	// OriginURL is the public origin pages are served from. Requests to any
	// other host count as cross-origin.
	OriginURL string `env:"ORIGIN_URL" envDefault:"http://localhost:3000"`

	// TLS
	TLSEnabled  bool   `env:"TLS_ENABLED" envDefault:"false"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	// Upstream car-listing API and dashboard.
	UpstreamURL  string        `env:"UPSTREAM_URL" envDefault:"http://localhost:8000"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`

	// Cache stores
	CachePrefix  string `env:"CACHE_PREFIX" envDefault:"carscraping"`
	CacheVersion string `env:"CACHE_VERSION" envDefault:"1.0.0"`
	CacheBackend string `env:"CACHE_BACKEND" envDefault:"memory"` // "memory" or "redis"
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Live updates
	LiveEnabled        bool          `env:"LIVE_ENABLED" envDefault:"true"`
	LiveURL            string        `env:"LIVE_URL"` // default derived from UpstreamURL
	LiveReconnectDelay time.Duration `env:"LIVE_RECONNECT_DELAY" envDefault:"5s"`
	LivePollInterval   time.Duration `env:"LIVE_POLL_INTERVAL" envDefault:"30s"`

	// Background sync; zero disables the periodic trigger.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"15m"`

	// Client fan-out buffer per connected page.
	ClientBuffer int `env:"CLIENT_BUFFER" envDefault:"32"`

	// CORS
	CORSOrigins string `env:"CORS_ORIGINS"` // Comma-separated allowed origins

	// Rate limiting for the control endpoints, requests per minute per IP.
	RateLimitMax int `env:"RATE_LIMIT_MAX" envDefault:"100"`

	// Manifest file with precache list and routing patterns.
	ManifestFile string `env:"MANIFEST_FILE" envDefault:"manifest.yaml"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"ORIGIN_URL": c.OriginURL, "UPSTREAM_URL": c.UpstreamURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend)
	}
	if c.TLSEnabled && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS_ENABLED is set")
	}
	if c.LiveReconnectDelay <= 0 || c.LivePollInterval <= 0 {
		return fmt.Errorf("live reconnect delay and poll interval must be positive")
	}
	return nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// BaseCacheName is the versioned name reported by GET_VERSION.
func (c *Config) BaseCacheName() string {
	return c.CachePrefix + "-v" + c.CacheVersion
}

// StaticCacheName names the store holding static assets.
func (c *Config) StaticCacheName() string {
	return c.CachePrefix + "-static-v" + c.CacheVersion
}

// DataCacheName names the store holding API responses.
func (c *Config) DataCacheName() string {
	return c.CachePrefix + "-data-v" + c.CacheVersion
}
