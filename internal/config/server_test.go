package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plantae")
	t.Setenv("OIDC_ISSUER", "https://auth.example.com")
	t.Setenv("OIDC_CLIENT_ID", "plantae-client")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
}

func TestLoadServerConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_PERIOD", "")

	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Fatalf("expected default environment %q, got %q", EnvDevelopment, cfg.Environment)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.CORSOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitRequests != 30 {
		t.Fatalf("expected default rate limit 30, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitPeriod != time.Minute {
		t.Fatalf("expected default rate period 1m, got %v", cfg.RateLimitPeriod)
	}
}

func TestLoadServerConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("CORS_ORIGINS", "https://app.plantae.dev, https://staging.plantae.dev")
	t.Setenv("RATE_LIMIT_REQUESTS", "100")
	t.Setenv("RATE_LIMIT_PERIOD", "30s")

	cfg := LoadServerConfig()
	if cfg.Environment != EnvProduction {
		t.Fatalf("expected production, got %q", cfg.Environment)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ListenAddr)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://staging.plantae.dev" {
		t.Fatalf("expected two trimmed origins, got %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitRequests != 100 || cfg.RateLimitPeriod != 30*time.Second {
		t.Fatalf("unexpected rate limit config: %d per %v", cfg.RateLimitRequests, cfg.RateLimitPeriod)
	}
}

func TestLoadServerConfigInvalidEnvFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "qa")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Fatalf("expected fallback to development, got %q", cfg.Environment)
	}
}

func TestValidate(t *testing.T) {
	valid := ServerConfig{
		DatabaseURL:     "postgres://localhost:5432/plantae",
		OIDCIssuer:      "https://auth.example.com",
		OIDCClientID:    "plantae-client",
		StripeSecretKey: "sk_test_123",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	t.Run("missing database url", func(t *testing.T) {
		cfg := valid
		cfg.DatabaseURL = ""
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("expected DATABASE_URL error, got %v", err)
		}
	})

	t.Run("all missing lists every variable", func(t *testing.T) {
		err := ServerConfig{}.Validate()
		if err == nil {
			t.Fatal("expected error for empty config")
		}
		for _, name := range []string{"DATABASE_URL", "OIDC_ISSUER", "OIDC_CLIENT_ID", "STRIPE_SECRET_KEY"} {
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("expected %s in error, got %v", name, err)
			}
		}
	})
}
