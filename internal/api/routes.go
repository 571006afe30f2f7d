// Package api provides the HTTP API for the plantae server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/api/handlers"
	"github.com/plantaehq/plantae/internal/api/middleware"
	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/config"
	"github.com/plantaehq/plantae/internal/db"
	"github.com/plantaehq/plantae/internal/metrics"
	"github.com/plantaehq/plantae/internal/subscription"
)

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg config.ServerConfig,
	database *db.DB,
	resolver middleware.TokenResolver,
	service *subscription.Service,
	provider billing.Provider,
	m *metrics.Metrics,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) (*Router, error) {
	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.CORSOrigins, cfg.Environment))

	// Health and metrics endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(database, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RedisURL, logger)
	if err != nil {
		return nil, err
	}

	apiGroup := r.Engine.Group("/api/v1")
	apiGroup.Use(rateLimiter)

	subscriptionHandler := handlers.NewSubscriptionHandler(service, logger)
	// The check endpoint authenticates its own bearer token via the service.
	subscriptionHandler.RegisterCheckRoute(apiGroup)

	authed := apiGroup.Group("")
	authed.Use(middleware.RequireAuth(resolver, logger))
	subscriptionHandler.RegisterRoutes(authed)

	billingHandler := handlers.NewBillingHandler(provider, database, handlers.BillingURLs{
		CheckoutSuccess: cfg.CheckoutSuccessURL,
		CheckoutCancel:  cfg.CheckoutCancelURL,
		PortalReturn:    cfg.PortalReturnURL,
	}, m, logger)
	billingHandler.RegisterRoutes(authed)

	return r, nil
}
