package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of sensitive action that was audited.
type AuditAction string

const (
	// AuditActionSubscriptionChecked records a reconciliation that confirmed
	// the stored state without altering it.
	AuditActionSubscriptionChecked AuditAction = "subscription_checked"
	// AuditActionSubscriptionChanged records a reconciliation that altered
	// the stored state, including first creation.
	AuditActionSubscriptionChanged AuditAction = "subscription_changed"
	// AuditActionCheckoutStarted records the creation of a checkout session.
	AuditActionCheckoutStarted AuditAction = "checkout_started"
	// AuditActionPortalOpened records the creation of a billing portal session.
	AuditActionPortalOpened AuditAction = "portal_opened"
)

// AuditDetails is the snapshot of fields relevant to an audited action.
// It must never carry raw billing customer ids, tokens, or unmasked PII.
type AuditDetails struct {
	Subscribed  *bool            `json:"subscribed,omitempty"`
	Tier        SubscriptionTier `json:"tier,omitempty"`
	PriceAmount *int64           `json:"price_amount,omitempty"`
}

// AuditEntry is an immutable record of a state-changing or sensitive action.
// Entries are append-only and listed most recent first.
type AuditEntry struct {
	ID          uuid.UUID    `json:"id"`
	SubjectID   string       `json:"subject_id"`
	MaskedEmail string       `json:"masked_email"`
	Action      AuditAction  `json:"action"`
	Details     AuditDetails `json:"details"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewAuditEntry creates a new AuditEntry for a subject.
func NewAuditEntry(subjectID, maskedEmail string, action AuditAction) *AuditEntry {
	return &AuditEntry{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		MaskedEmail: maskedEmail,
		Action:      action,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithSubscriptionState sets the subscription snapshot for the entry.
func (e *AuditEntry) WithSubscriptionState(subscribed bool, tier SubscriptionTier) *AuditEntry {
	e.Details.Subscribed = &subscribed
	e.Details.Tier = tier
	return e
}

// WithPriceAmount sets the requested price for checkout-related entries.
func (e *AuditEntry) WithPriceAmount(cents int64) *AuditEntry {
	e.Details.PriceAmount = &cents
	return e
}
