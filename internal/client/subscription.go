package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/plantaehq/plantae/internal/models"
)

// ExpiringSoonWindow is the lookahead within which an active subscription
// counts as expiring soon.
const ExpiringSoonWindow = 7 * 24 * time.Hour

// Rate limiter keys for the sensitive client actions.
const (
	actionCheck    = "subscription_check"
	actionCheckout = "checkout"
	actionPortal   = "portal"
)

// ErrRateLimited indicates the local limiter rejected the action before it
// reached the network.
var ErrRateLimited = errors.New("rate limited, try again later")

// genericErrMessage is what the view surfaces on any server failure; the
// last-known-good subscription state is preserved rather than cleared.
const genericErrMessage = "could not refresh subscription status"

// State is the client-observable projection of subscription state.
type State struct {
	Subscribed bool
	Tier       string
	PeriodEnd  *time.Time
	Loading    bool
	ErrMessage string
	AuditLogs  []*models.AuditEntry
}

// ViewModel consumes the subscription API and projects its results for UI.
// A check started while one is in flight is coalesced into the in-flight
// result, so at most one check runs at a time.
type ViewModel struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	limiter    *RateLimiter
	logger     zerolog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	state State

	now func() time.Time // injectable for tests
}

// checkResponse mirrors the server's reconciliation response.
type checkResponse struct {
	Subscribed       bool    `json:"subscribed"`
	SubscriptionTier *string `json:"subscription_tier"`
	SubscriptionEnd  *string `json:"subscription_end"`
	Error            string  `json:"error"`
}

// auditLogResponse mirrors the server's audit log listing.
type auditLogResponse struct {
	AuditLogs []*models.AuditEntry `json:"audit_logs"`
}

// NewViewModel creates a view model talking to the given API base URL.
// The token func supplies the current bearer credential per request so the
// caller can rotate sessions. A nil limiter gets the defaults.
func NewViewModel(baseURL string, httpClient *http.Client, token func() string, limiter *RateLimiter, logger zerolog.Logger) *ViewModel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if limiter == nil {
		limiter = NewRateLimiter(DefaultMaxAttempts, DefaultWindow)
	}
	return &ViewModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		limiter:    limiter,
		logger:     logger.With().Str("component", "subscription_viewmodel").Logger(),
		now:        time.Now,
	}
}

// State returns a snapshot of the current projection.
func (vm *ViewModel) State() State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	s := vm.state
	s.AuditLogs = append([]*models.AuditEntry(nil), vm.state.AuditLogs...)
	return s
}

// IsExpiringSoon reports whether the subscription is active and its period
// end falls within the lookahead window. Past period ends are not "soon".
func (vm *ViewModel) IsExpiringSoon() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if !vm.state.Subscribed || vm.state.PeriodEnd == nil {
		return false
	}
	until := vm.state.PeriodEnd.Sub(vm.now())
	return until >= 0 && until <= ExpiringSoonWindow
}

// CheckSubscription triggers one reconciliation on the server and folds the
// result into the projection. Concurrent triggers share one in-flight call.
func (vm *ViewModel) CheckSubscription(ctx context.Context) (State, error) {
	if !vm.limiter.IsAllowed(actionCheck) {
		return vm.State(), ErrRateLimited
	}

	res, err, _ := vm.group.Do(actionCheck, func() (any, error) {
		return vm.doCheck(ctx)
	})
	if err != nil {
		return vm.State(), err
	}
	return res.(State), nil
}

func (vm *ViewModel) doCheck(ctx context.Context) (State, error) {
	vm.setLoading(true)
	defer vm.setLoading(false)

	var resp checkResponse
	err := vm.post(ctx, "/api/v1/subscription/check", nil, &resp)
	if err != nil {
		// Preserve the last-known-good state; surface a generic message.
		vm.mu.Lock()
		vm.state.ErrMessage = genericErrMessage
		vm.mu.Unlock()
		vm.logger.Warn().Err(err).Msg("subscription check failed")
		return vm.State(), err
	}

	vm.mu.Lock()
	vm.state.Subscribed = resp.Subscribed
	vm.state.Tier = ""
	if resp.SubscriptionTier != nil {
		vm.state.Tier = *resp.SubscriptionTier
	}
	vm.state.PeriodEnd = nil
	if resp.SubscriptionEnd != nil {
		if end, perr := time.Parse(time.RFC3339, *resp.SubscriptionEnd); perr == nil {
			vm.state.PeriodEnd = &end
		}
	}
	vm.state.ErrMessage = ""
	vm.mu.Unlock()

	return vm.State(), nil
}

// CreateCheckoutSession starts a hosted checkout for the given recurring
// amount in cents and returns the redirect URL.
func (vm *ViewModel) CreateCheckoutSession(ctx context.Context, priceAmount int64) (string, error) {
	if !vm.limiter.IsAllowed(actionCheckout) {
		return "", ErrRateLimited
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := vm.post(ctx, "/api/v1/billing/checkout", map[string]any{"price_amount": priceAmount}, &resp); err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return resp.URL, nil
}

// OpenCustomerPortal opens a hosted customer portal session and returns the
// redirect URL.
func (vm *ViewModel) OpenCustomerPortal(ctx context.Context) (string, error) {
	if !vm.limiter.IsAllowed(actionPortal) {
		return "", ErrRateLimited
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := vm.post(ctx, "/api/v1/billing/portal", nil, &resp); err != nil {
		return "", fmt.Errorf("open customer portal: %w", err)
	}
	return resp.URL, nil
}

// RefreshAuditLog reloads the caller's audit entries, most recent first.
func (vm *ViewModel) RefreshAuditLog(ctx context.Context) ([]*models.AuditEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vm.baseURL+"/api/v1/subscription/audit-logs", nil)
	if err != nil {
		return nil, fmt.Errorf("build audit log request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+vm.token())

	var resp auditLogResponse
	if err := vm.send(req, &resp); err != nil {
		return nil, fmt.Errorf("refresh audit log: %w", err)
	}

	vm.mu.Lock()
	vm.state.AuditLogs = resp.AuditLogs
	vm.mu.Unlock()
	return resp.AuditLogs, nil
}

func (vm *ViewModel) setLoading(loading bool) {
	vm.mu.Lock()
	vm.state.Loading = loading
	vm.mu.Unlock()
}

// post sends an authenticated JSON request and decodes the response into out.
func (vm *ViewModel) post(ctx context.Context, path string, body map[string]any, out any) error {
	var reader *strings.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = strings.NewReader(string(encoded))
	} else {
		reader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, vm.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+vm.token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return vm.send(req, out)
}

func (vm *ViewModel) send(req *http.Request, out any) error {
	res, err := vm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
