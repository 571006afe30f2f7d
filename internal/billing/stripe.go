package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeProvider implements Provider against the Stripe API. The underlying
// client is an explicitly constructed instance; the package-level ambient
// Stripe client is never used.
type StripeProvider struct {
	sc     *client.API
	logger zerolog.Logger
}

// NewStripeProvider creates a StripeProvider with its own API client.
func NewStripeProvider(secretKey string, logger zerolog.Logger) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeProvider{
		sc:     sc,
		logger: logger.With().Str("component", "stripe_provider").Logger(),
	}
}

// FindCustomerByEmail returns the first Stripe customer exactly matching the
// email, or nil when none exists.
func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.sc.Customers.List(params)
	for iter.Next() {
		c := iter.Customer()
		return &Customer{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return nil, nil
}

// ListActiveSubscriptions returns the customer's active subscriptions,
// limited to one.
func (p *StripeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	var subs []Subscription
	iter := p.sc.Subscriptions.List(params)
	for iter.Next() {
		s := iter.Subscription()
		sub := Subscription{
			ID:               s.ID,
			CurrentPeriodEnd: time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		}
		if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0].Price != nil {
			sub.PriceID = s.Items.Data[0].Price.ID
			sub.UnitAmount = s.Items.Data[0].Price.UnitAmount
		}
		subs = append(subs, sub)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// GetPrice fetches a price by id.
func (p *StripeProvider) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx

	price, err := p.sc.Prices.Get(priceID, params)
	if err != nil {
		return nil, fmt.Errorf("get price %s: %w", priceID, err)
	}
	return &Price{ID: price.ID, UnitAmount: price.UnitAmount}, nil
}

// CreateCheckoutSession creates a hosted subscription checkout session for
// the given recurring amount in cents.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, email string, amountCents int64, successURL, cancelURL string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(amountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Plantae subscription"),
					},
				},
			},
		},
	}
	params.Context = ctx

	session, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession creates a hosted customer-portal session.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := p.sc.BillingPortalSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create portal session: %w", err)
	}
	return &PortalSession{URL: session.URL}, nil
}
