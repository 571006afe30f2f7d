// Package handlers implements the HTTP handlers for the plantae API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/api/middleware"
	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/identity"
	"github.com/plantaehq/plantae/internal/models"
)

// SubscriptionService defines the reconciliation operations the handler needs.
type SubscriptionService interface {
	Check(ctx context.Context, bearerToken string) (*models.SubscriptionRecord, error)
	AuditLog(ctx context.Context, ident identity.Identity, limit int) ([]*models.AuditEntry, error)
}

// SubscriptionHandler handles subscription state HTTP endpoints.
type SubscriptionHandler struct {
	service SubscriptionService
	logger  zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(service SubscriptionService, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		logger:  logger.With().Str("component", "subscription_handler").Logger(),
	}
}

// RegisterCheckRoute registers the unauthenticated-path check endpoint; the
// handler authenticates the bearer token itself through the service.
func (h *SubscriptionHandler) RegisterCheckRoute(r *gin.RouterGroup) {
	r.POST("/subscription/check", h.Check)
}

// RegisterRoutes registers the endpoints that require a resolved identity.
func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/subscription/audit-logs", h.AuditLog)
}

// CheckResponse is the client-observable reconciliation result.
type CheckResponse struct {
	Subscribed       bool    `json:"subscribed"`
	SubscriptionTier *string `json:"subscription_tier"`
	SubscriptionEnd  *string `json:"subscription_end"`
}

// Check runs one reconciliation attempt for the caller.
// POST /api/v1/subscription/check
func (h *SubscriptionHandler) Check(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	rec, err := h.service.Check(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		status := http.StatusInternalServerError
		msg := "subscription check failed"
		if errors.Is(err, billing.ErrUnavailable) {
			msg = "billing provider unavailable"
		} else {
			h.logger.Error().Err(err).Msg("subscription check failed")
		}
		// The reported value defaults to not-subscribed; the cached record
		// is left untouched.
		c.JSON(status, gin.H{"error": msg, "subscribed": false})
		return
	}

	resp := CheckResponse{Subscribed: rec.Subscribed}
	if rec.Subscribed {
		tier := string(rec.Tier)
		resp.SubscriptionTier = &tier
		if rec.PeriodEnd != nil {
			end := rec.PeriodEnd.UTC().Format(time.RFC3339)
			resp.SubscriptionEnd = &end
		}
	}
	c.JSON(http.StatusOK, resp)
}

// AuditLogResponse is the response for listing a caller's audit entries.
type AuditLogResponse struct {
	AuditLogs []*models.AuditEntry `json:"audit_logs"`
}

// AuditLog returns the caller's audit entries, most recent first.
// GET /api/v1/subscription/audit-logs
// Query params: limit
func (h *SubscriptionHandler) AuditLog(c *gin.Context) {
	ident, ok := middleware.RequireIdentity(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.service.AuditLog(c.Request.Context(), ident, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to list audit log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit log"})
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}

	c.JSON(http.StatusOK, AuditLogResponse{AuditLogs: entries})
}
