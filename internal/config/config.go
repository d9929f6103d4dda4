// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment processor
	StripeAPIKey string // Secret key for executing refunds; empty enables the no-op gateway

	// Dispute workflow
	EscalationWindowHours int // Hours a client may escalate after a partial coach resolution; 0 = unbounded
	ReconcileIntervalMins int // Minutes between refund bookkeeping reconciliation runs

	// Notifications
	WebhookURL    string // Endpoint that receives dispute lifecycle events; empty logs them instead
	WebhookSecret string // HMAC secret for signing webhook payloads

	// Security
	AdminSecret    string // Shared secret for admin resolution routes
	AllowedOrigins []string
	RateLimitRPM   int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces; empty disables tracing
}

const (
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
	DefaultRateLimitRPM = 120
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		StripeAPIKey:          os.Getenv("STRIPE_API_KEY"),
		EscalationWindowHours: getEnvInt("ESCALATION_WINDOW_HOURS", 0),
		ReconcileIntervalMins: getEnvInt("RECONCILE_INTERVAL_MINUTES", 5),
		WebhookURL:            os.Getenv("NOTIFY_WEBHOOK_URL"),
		WebhookSecret:         os.Getenv("NOTIFY_WEBHOOK_SECRET"),
		AdminSecret:           os.Getenv("ADMIN_SECRET"),
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitRPM:          getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.EscalationWindowHours < 0 {
		return fmt.Errorf("ESCALATION_WINDOW_HOURS must not be negative")
	}

	if c.IsProduction() {
		if c.AdminSecret == "" {
			return fmt.Errorf("ADMIN_SECRET is required in production")
		}
		if c.StripeAPIKey == "" {
			return fmt.Errorf("STRIPE_API_KEY is required in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
