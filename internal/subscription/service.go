// Package subscription orchestrates reconciliation: resolve the caller's
// identity, fetch canonical billing state, and write it into the local
// cache exactly once with an audit trail.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/db"
	"github.com/plantaehq/plantae/internal/identity"
	"github.com/plantaehq/plantae/internal/metrics"
	"github.com/plantaehq/plantae/internal/models"
)

// ProviderTimeout bounds each external provider call; anything slower is
// treated as a provider failure.
const ProviderTimeout = 10 * time.Second

// TokenResolver resolves a bearer credential into a stable subject.
type TokenResolver interface {
	Resolve(ctx context.Context, rawToken string) (identity.Identity, error)
}

// StateLookup fetches the normalized billing state for a resolved identity.
type StateLookup interface {
	Lookup(ctx context.Context, ident identity.Identity) (billing.State, error)
}

// Store is the persistence interface for subscription records and audit
// entries. The service is the only writer of subscription records.
// SaveReconciliation must write the record and its audit entry atomically.
type Store interface {
	GetSubscriptionBySubject(ctx context.Context, subjectID string) (*models.SubscriptionRecord, error)
	SaveReconciliation(ctx context.Context, rec *models.SubscriptionRecord, entry *models.AuditEntry) (bool, error)
	ListAuditEntriesBySubject(ctx context.Context, subjectID string, limit int) ([]*models.AuditEntry, error)
}

// Service runs reconciliation attempts. Attempts for the same subject
// serialize; attempts for different subjects are independent.
type Service struct {
	resolver TokenResolver
	billing  StateLookup
	store    Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu       sync.Mutex
	subjects map[string]*sync.Mutex
}

// NewService creates a reconciliation service.
func NewService(resolver TokenResolver, lookup StateLookup, store Store, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		resolver: resolver,
		billing:  lookup,
		store:    store,
		metrics:  m,
		logger:   logger.With().Str("component", "subscription_service").Logger(),
		subjects: make(map[string]*sync.Mutex),
	}
}

// Check runs one full reconciliation attempt for the caller identified by
// the bearer token. On billing failure the existing cached record is left
// untouched and the error is reported upward.
func (s *Service) Check(ctx context.Context, bearerToken string) (*models.SubscriptionRecord, error) {
	start := time.Now()

	ictx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	ident, err := s.resolver.Resolve(ictx, bearerToken)
	cancel()
	if err != nil {
		s.metrics.ObserveReconciliation(metrics.ResultUnauthenticated, 0)
		return nil, err
	}

	// Both provider calls happen before any store access so no lock is held
	// across the network.
	bctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	state, err := s.billing.Lookup(bctx, ident)
	cancel()
	if err != nil {
		s.metrics.ObserveReconciliation(metrics.ResultBillingUnavailable, 0)
		return nil, err
	}

	// A caller that went away mid-call must not cause a partial write.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconciliation aborted: %w", err)
	}

	rec, changed, err := s.reconcile(ctx, ident, state)
	if err != nil {
		s.metrics.ObserveReconciliation(metrics.ResultError, 0)
		return nil, err
	}

	result := metrics.ResultUnchanged
	if changed {
		result = metrics.ResultChanged
	}
	s.metrics.ObserveReconciliation(result, time.Since(start).Seconds())

	s.logger.Info().
		Str("subject_id", ident.SubjectID).
		Str("email", ident.MaskedEmail()).
		Bool("subscribed", rec.Subscribed).
		Str("tier", string(rec.Tier)).
		Bool("changed", changed).
		Msg("subscription reconciled")

	return rec, nil
}

// reconcile writes the billing state into the cache and appends the audit
// entry, serialized per subject.
func (s *Service) reconcile(ctx context.Context, ident identity.Identity, state billing.State) (*models.SubscriptionRecord, bool, error) {
	lock := s.subjectLock(ident.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	prev, err := s.store.GetSubscriptionBySubject(ctx, ident.SubjectID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("load cached subscription: %w", err)
	}

	rec := &models.SubscriptionRecord{
		SubjectID:         ident.SubjectID,
		Email:             ident.Email,
		BillingCustomerID: state.CustomerID,
		Subscribed:        state.Subscribed,
		Tier:              state.Tier,
		PeriodEnd:         state.PeriodEnd,
		UpdatedAt:         time.Now().UTC(),
	}
	// Invariant: not subscribed means no tier and no period end.
	if !rec.Subscribed {
		rec.Tier = models.TierNone
		rec.PeriodEnd = nil
	}

	// The subject lock makes this service the only writer for the subject,
	// so the previous record alone determines whether values change.
	changed := prev == nil || !rec.StateEquals(prev)
	action := models.AuditActionSubscriptionChecked
	if changed {
		action = models.AuditActionSubscriptionChanged
	}

	entry := models.NewAuditEntry(ident.SubjectID, ident.MaskedEmail(), action).
		WithSubscriptionState(rec.Subscribed, rec.Tier)
	if _, err := s.store.SaveReconciliation(ctx, rec, entry); err != nil {
		return nil, false, fmt.Errorf("reconcile subscription: %w", err)
	}

	return rec, changed, nil
}

// AuditLog returns the caller's audit entries, most recent first.
func (s *Service) AuditLog(ctx context.Context, ident identity.Identity, limit int) ([]*models.AuditEntry, error) {
	entries, err := s.store.ListAuditEntriesBySubject(ctx, ident.SubjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}

// subjectLock returns the mutex serializing reconciliations for a subject.
// Locks are retained for the process lifetime; the set is bounded by the
// number of distinct active subjects.
func (s *Service) subjectLock(subjectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.subjects[subjectID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.subjects[subjectID] = lock
	return lock
}
