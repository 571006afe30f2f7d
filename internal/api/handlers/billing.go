package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/api/middleware"
	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/db"
	"github.com/plantaehq/plantae/internal/metrics"
	"github.com/plantaehq/plantae/internal/models"
	"github.com/plantaehq/plantae/internal/subscription"
)

// BillingStore defines the persistence operations the billing handler needs.
type BillingStore interface {
	GetSubscriptionBySubject(ctx context.Context, subjectID string) (*models.SubscriptionRecord, error)
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// BillingURLs holds the redirect targets for hosted billing sessions.
type BillingURLs struct {
	CheckoutSuccess string
	CheckoutCancel  string
	PortalReturn    string
}

// BillingHandler creates checkout and customer-portal sessions. These are
// pass-through operations outside the reconciliation core, but each success
// is recorded in the audit log.
type BillingHandler struct {
	provider billing.Provider
	store    BillingStore
	urls     BillingURLs
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(provider billing.Provider, store BillingStore, urls BillingURLs, m *metrics.Metrics, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		provider: provider,
		store:    store,
		urls:     urls,
		metrics:  m,
		logger:   logger.With().Str("component", "billing_handler").Logger(),
	}
}

// RegisterRoutes registers billing routes on the given router group.
func (h *BillingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/billing/checkout", h.CreateCheckout)
	r.POST("/billing/portal", h.OpenPortal)
}

// CheckoutRequest is the request body for creating a checkout session.
type CheckoutRequest struct {
	PriceAmount int64 `json:"price_amount" binding:"required,gt=0"`
}

// CreateCheckout creates a hosted checkout session for the caller.
// POST /api/v1/billing/checkout
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	ident, ok := middleware.RequireIdentity(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), subscription.ProviderTimeout)
	defer cancel()

	session, err := h.provider.CreateCheckoutSession(ctx, ident.Email, req.PriceAmount,
		h.urls.CheckoutSuccess, h.urls.CheckoutCancel)
	if err != nil {
		h.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to create checkout session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	h.metrics.CheckoutSessionsTotal.Inc()
	h.appendAudit(c, ident.SubjectID, ident.MaskedEmail(),
		models.NewAuditEntry(ident.SubjectID, ident.MaskedEmail(), models.AuditActionCheckoutStarted).
			WithPriceAmount(req.PriceAmount))

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
}

// OpenPortal creates a customer-portal session for the caller's billing
// customer.
// POST /api/v1/billing/portal
func (h *BillingHandler) OpenPortal(c *gin.Context) {
	ident, ok := middleware.RequireIdentity(c)
	if !ok {
		return
	}

	rec, err := h.store.GetSubscriptionBySubject(c.Request.Context(), ident.SubjectID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to load subscription record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}
	if err != nil || rec.BillingCustomerID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no billing account on file"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), subscription.ProviderTimeout)
	defer cancel()

	session, err := h.provider.CreatePortalSession(ctx, *rec.BillingCustomerID, h.urls.PortalReturn)
	if err != nil {
		h.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to create portal session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	h.metrics.PortalSessionsTotal.Inc()
	h.appendAudit(c, ident.SubjectID, ident.MaskedEmail(),
		models.NewAuditEntry(ident.SubjectID, ident.MaskedEmail(), models.AuditActionPortalOpened))

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// appendAudit records a billing action; a failed append is logged but does
// not fail the request since the session was already created.
func (h *BillingHandler) appendAudit(c *gin.Context, subjectID, maskedEmail string, entry *models.AuditEntry) {
	if err := h.store.AppendAuditEntry(c.Request.Context(), entry); err != nil {
		h.logger.Warn().Err(err).
			Str("subject_id", subjectID).
			Str("email", maskedEmail).
			Str("action", string(entry.Action)).
			Msg("failed to append audit entry")
	}
}
