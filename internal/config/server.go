// Package config provides configuration management for the plantae server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string

	DatabaseURL string

	// Identity provider (OIDC) settings used to verify bearer tokens.
	OIDCIssuer   string
	OIDCClientID string

	// Billing provider settings.
	StripeSecretKey    string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string

	// CORS allowed origins; empty allows all outside production.
	CORSOrigins []string

	// Server-side advisory rate limit for the API group.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration

	// Optional Redis backing for the rate limiter. Empty uses in-memory.
	RedisURL string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	return ServerConfig{
		Environment:        env,
		ListenAddr:         getEnvDefault("LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		OIDCIssuer:         os.Getenv("OIDC_ISSUER"),
		OIDCClientID:       os.Getenv("OIDC_CLIENT_ID"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		CheckoutSuccessURL: getEnvDefault("CHECKOUT_SUCCESS_URL", "https://app.plantae.dev/billing/success"),
		CheckoutCancelURL:  getEnvDefault("CHECKOUT_CANCEL_URL", "https://app.plantae.dev/billing/cancel"),
		PortalReturnURL:    getEnvDefault("PORTAL_RETURN_URL", "https://app.plantae.dev/account"),
		CORSOrigins:        splitList(os.Getenv("CORS_ORIGINS")),
		RateLimitRequests:  int64(getEnvInt("RATE_LIMIT_REQUESTS", 30)),
		RateLimitPeriod:    getEnvDuration("RATE_LIMIT_PERIOD", time.Minute),
		RedisURL:           os.Getenv("REDIS_URL"),
	}
}

// Validate checks that all required provider credentials are present.
// The server must refuse to start on a validation error rather than fail
// on the first request.
func (c ServerConfig) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.OIDCIssuer == "" {
		missing = append(missing, "OIDC_ISSUER")
	}
	if c.OIDCClientID == "" {
		missing = append(missing, "OIDC_CLIENT_ID")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnvDefault reads a string from an environment variable, returning the default if unset.
func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration from an environment variable, returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// splitList splits a comma-separated environment value into trimmed entries.
func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
