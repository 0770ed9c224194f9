package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	SeedOnStart  bool   `default:"false" usage:"Seed the demo catalog when the store has no products" flag:"seed-on-start"`
	Store        StoreConfig
	Session      SessionConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StoreConfig selects and connects the remote store.
type StoreConfig struct {
	Backend       string `default:"memory" usage:"Store backend: memory, postgres or redis"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SHOP_STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL      string `usage:"Redis URL, overrides address, password and db (or REDIS_URL)" flag:"redis-url"`
	RedisAddr     string `default:"localhost:6379" usage:"Redis address" flag:"redis-addr"`
	RedisPassword string `usage:"Redis password" flag:"redis-password"`
	RedisDB       int    `default:"0" usage:"Redis database number" flag:"redis-db"`
	Breaker       BreakerConfig
}

// BreakerConfig controls the circuit breaker in front of the store.
type BreakerConfig struct {
	Timeout      time.Duration `default:"30s" usage:"Time the breaker stays open"`
	Interval     time.Duration `default:"1m"  usage:"Window after which closed-state counts reset"`
	MinRequests  uint32        `default:"5"   usage:"Requests in a window before the breaker may trip"`
	FailureRatio float64       `default:"0.5" usage:"Failure ratio that trips the breaker"`
}

// SessionConfig controls the in-memory shopper registry.
type SessionConfig struct {
	IdleTTL time.Duration `default:"24h" usage:"Evict shoppers idle for longer than this (0 disables)" flag:"session-idle-ttl"`
}

// CheckoutConfig controls the simulated payment gateway.
type CheckoutConfig struct {
	PaymentDelay time.Duration `default:"1500ms" usage:"Simulated payment processing time" flag:"payment-delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has what it needs to connect.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
		return nil
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres backend: set SHOP_STORE_DATABASE_URL or DATABASE_URL")
		}
		return nil
	default:
		return errors.Errorf("unknown store backend %q", c.Backend)
	}
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, REDIS_URL, PORT) onto the SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	c.Store.ApplyPlatformDefaults()
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// ApplyPlatformDefaults fills unset connection URLs from DATABASE_URL and
// REDIS_URL.
func (c *StoreConfig) ApplyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
}
