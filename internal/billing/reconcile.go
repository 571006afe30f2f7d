package billing

import (
	"context"
	"fmt"

	"time"

	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/identity"
	"github.com/plantaehq/plantae/internal/models"
)

// State is the normalized billing-side subscription state for a subject.
type State struct {
	Subscribed bool
	Tier       models.SubscriptionTier
	PeriodEnd  *time.Time
	CustomerID *string
}

// Reconciler looks up canonical subscription state for a resolved identity.
type Reconciler struct {
	provider Provider
	logger   zerolog.Logger
}

// NewReconciler creates a Reconciler on top of a billing provider.
func NewReconciler(provider Provider, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		provider: provider,
		logger:   logger.With().Str("component", "billing_reconciler").Logger(),
	}
}

// Lookup queries the billing provider and derives the normalized state.
// A missing customer or a customer without an active subscription is an
// explicit not-subscribed state, not an error. Provider failures surface
// as ErrUnavailable.
func (r *Reconciler) Lookup(ctx context.Context, ident identity.Identity) (State, error) {
	cust, err := r.provider.FindCustomerByEmail(ctx, ident.Email)
	if err != nil {
		r.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to look up billing customer")
		return State{}, fmt.Errorf("find billing customer: %w", ErrUnavailable)
	}
	if cust == nil {
		return State{Tier: models.TierNone}, nil
	}

	subs, err := r.provider.ListActiveSubscriptions(ctx, cust.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to list active subscriptions")
		return State{}, fmt.Errorf("list active subscriptions: %w", ErrUnavailable)
	}
	if len(subs) == 0 {
		return State{Tier: models.TierNone, CustomerID: &cust.ID}, nil
	}

	sub := subs[0]
	amount := sub.UnitAmount
	if amount == 0 && sub.PriceID != "" {
		price, err := r.provider.GetPrice(ctx, sub.PriceID)
		if err != nil {
			r.logger.Error().Err(err).Str("email", ident.MaskedEmail()).Msg("failed to fetch subscription price")
			return State{}, fmt.Errorf("get subscription price: %w", ErrUnavailable)
		}
		amount = price.UnitAmount
	}

	periodEnd := sub.CurrentPeriodEnd
	return State{
		Subscribed: true,
		Tier:       models.TierForUnitAmount(amount),
		PeriodEnd:  &periodEnd,
		CustomerID: &cust.ID,
	}, nil
}
