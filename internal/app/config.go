package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (EMKART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (EMKART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Razorpay RazorpayConfig
	Auth     AuthConfig

	// SupportedCurrencies are the currency codes accepted at checkout.
	SupportedCurrencies []string `default:"INR" usage:"Accepted checkout currencies" flag:"currencies"`

	// MaxBodyBytes caps request body size. The default matches the legacy
	// backend's 10 MB body-parser limit.
	MaxBodyBytes int64 `default:"10485760" usage:"Max request body size in bytes" flag:"max-body-bytes"`

	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// RazorpayConfig holds payment gateway credentials.
type RazorpayConfig struct {
	BaseURL   string `default:"https://api.razorpay.com" usage:"Razorpay API base URL" flag:"razorpay-base-url"`
	KeyID     string `usage:"Razorpay key id (EMKART_RAZORPAY_KEY_ID)" flag:"razorpay-key-id"`
	KeySecret string `usage:"Razorpay key secret; also the callback HMAC key" flag:"razorpay-key-secret"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string `usage:"HS256 secret shared with the identity service" flag:"jwt-secret"`
	Issuer    string `default:"emkart-identity" usage:"Expected token issuer" flag:"jwt-issuer"`
}

// RateLimitConfig controls the per-client rate limiter.
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
		EnvPrefix: "EMKART",
		Files:     []string{"config.yaml", "/etc/emkart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set EMKART_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		return nil, errors.New("Razorpay credentials are required: set EMKART_RAZORPAY_KEY_ID and EMKART_RAZORPAY_KEY_SECRET")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set EMKART_AUTH_JWT_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's EMKART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
