package models

import "time"

// SubscriptionTier represents a named subscription level derived from price.
type SubscriptionTier string

const (
	// TierNone indicates no active subscription.
	TierNone SubscriptionTier = "none"
	// TierBasic is the entry-level paid tier.
	TierBasic SubscriptionTier = "basic"
	// TierPremium is the mid-level paid tier.
	TierPremium SubscriptionTier = "premium"
	// TierEnterprise is the top paid tier.
	TierEnterprise SubscriptionTier = "enterprise"
)

// Tier price thresholds in minor currency units (cents), inclusive upper bounds.
const (
	TierBasicMaxCents   int64 = 999
	TierPremiumMaxCents int64 = 1999
)

// TierForUnitAmount derives the tier for an active subscription from its
// unit price in cents. Amounts at a boundary belong to the lower tier.
func TierForUnitAmount(cents int64) SubscriptionTier {
	switch {
	case cents <= TierBasicMaxCents:
		return TierBasic
	case cents <= TierPremiumMaxCents:
		return TierPremium
	default:
		return TierEnterprise
	}
}

// SubscriptionRecord is the authoritative local cache of a subject's
// subscription state. There is at most one record per subject; all writes
// go through the store's upsert.
type SubscriptionRecord struct {
	SubjectID         string           `json:"subject_id"`
	Email             string           `json:"email"`
	BillingCustomerID *string          `json:"billing_customer_id,omitempty"`
	Subscribed        bool             `json:"subscribed"`
	Tier              SubscriptionTier `json:"tier"`
	PeriodEnd         *time.Time       `json:"period_end,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewSubscriptionRecord creates a record in the not-subscribed state.
func NewSubscriptionRecord(subjectID, email string) *SubscriptionRecord {
	return &SubscriptionRecord{
		SubjectID: subjectID,
		Email:     email,
		Tier:      TierNone,
		UpdatedAt: time.Now().UTC(),
	}
}

// StateEquals reports whether two records carry the same subscription state,
// ignoring UpdatedAt. Used for change detection during reconciliation.
func (r *SubscriptionRecord) StateEquals(o *SubscriptionRecord) bool {
	if o == nil {
		return false
	}
	if r.Subscribed != o.Subscribed || r.Tier != o.Tier || r.Email != o.Email {
		return false
	}
	if !equalStringPtr(r.BillingCustomerID, o.BillingCustomerID) {
		return false
	}
	return equalTimePtr(r.PeriodEnd, o.PeriodEnd)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
