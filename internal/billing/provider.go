// Package billing queries the external billing provider for canonical
// subscription state and derives the normalized tier.
package billing

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates a network or provider error. Callers must leave
// any cached subscription record untouched and report the error upward;
// it must never be translated into a false "not subscribed" write.
var ErrUnavailable = errors.New("billing provider unavailable")

// Customer is a billing-provider customer record.
type Customer struct {
	ID    string
	Email string
}

// Subscription is an active billing-provider subscription.
type Subscription struct {
	ID               string
	PriceID          string
	UnitAmount       int64 // minor currency units; 0 when the listing did not carry the price
	CurrentPeriodEnd time.Time
}

// Price is a billing-provider price object.
type Price struct {
	ID         string
	UnitAmount int64
}

// CheckoutSession is a hosted checkout session created for a caller.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSession is a hosted customer-portal session created for a caller.
type PortalSession struct {
	URL string
}

// Provider is the abstract billing collaborator. Implementations must be
// explicitly constructed per configuration, never ambient package state.
type Provider interface {
	// FindCustomerByEmail returns the first customer exactly matching the
	// email, or nil when none exists. Absence is not an error.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// ListActiveSubscriptions returns the customer's active subscriptions,
	// at most one.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	// GetPrice fetches a price by id.
	GetPrice(ctx context.Context, priceID string) (*Price, error)
	// CreateCheckoutSession creates a hosted checkout session for the given
	// recurring amount in cents.
	CreateCheckoutSession(ctx context.Context, email string, amountCents int64, successURL, cancelURL string) (*CheckoutSession, error)
	// CreatePortalSession creates a hosted customer-portal session.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)
}
