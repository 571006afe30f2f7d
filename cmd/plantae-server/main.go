// Package main is the entrypoint for the plantae server: it reconciles
// subscription state against the billing provider and serves the
// client-facing subscription API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/api"
	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/config"
	"github.com/plantaehq/plantae/internal/db"
	"github.com/plantaehq/plantae/internal/identity"
	"github.com/plantaehq/plantae/internal/metrics"
	"github.com/plantaehq/plantae/internal/subscription"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("starting plantae server")

	// Load and validate configuration before touching any provider.
	cfg := config.LoadServerConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
		return 1
	}

	// Connect to database
	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
		return 1
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
		return 1
	}

	// Identity provider discovery fails fast on a bad issuer.
	resolver, err := identity.NewResolver(ctx, identity.Config{
		Issuer:   cfg.OIDCIssuer,
		ClientID: cfg.OIDCClientID,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize identity resolver")
		return 1
	}

	// Billing provider client is an explicit instance, never ambient state.
	provider := billing.NewStripeProvider(cfg.StripeSecretKey, logger)
	reconciler := billing.NewReconciler(provider, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	service := subscription.NewService(resolver, reconciler, database, m, logger)

	router, err := api.NewRouter(cfg, database, resolver, service, provider, m, registry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return 1
	}

	return 0
}
