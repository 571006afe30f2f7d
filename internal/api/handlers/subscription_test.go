package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/api/middleware"
	"github.com/plantaehq/plantae/internal/billing"
	"github.com/plantaehq/plantae/internal/identity"
	"github.com/plantaehq/plantae/internal/models"
)

type mockSubscriptionService struct {
	record   *models.SubscriptionRecord
	entries  []*models.AuditEntry
	checkErr error
	auditErr error

	gotToken string
	gotLimit int
}

func (m *mockSubscriptionService) Check(_ context.Context, bearerToken string) (*models.SubscriptionRecord, error) {
	m.gotToken = bearerToken
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.record, nil
}

func (m *mockSubscriptionService) AuditLog(_ context.Context, _ identity.Identity, limit int) ([]*models.AuditEntry, error) {
	m.gotLimit = limit
	if m.auditErr != nil {
		return nil, m.auditErr
	}
	return m.entries, nil
}

func setupSubscriptionTestRouter(service SubscriptionService, ident *identity.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewSubscriptionHandler(service, zerolog.Nop())
	api := r.Group("/api/v1")
	handler.RegisterCheckRoute(api)

	authed := api.Group("")
	authed.Use(func(c *gin.Context) {
		if ident != nil {
			c.Set(string(middleware.IdentityContextKey), *ident)
		}
		c.Next()
	})
	handler.RegisterRoutes(authed)
	return r
}

func TestSubscriptionCheck(t *testing.T) {
	periodEnd := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)

	t.Run("subscribed", func(t *testing.T) {
		service := &mockSubscriptionService{record: &models.SubscriptionRecord{
			SubjectID:  "sub-123",
			Subscribed: true,
			Tier:       models.TierPremium,
			PeriodEnd:  &periodEnd,
		}}
		r := setupSubscriptionTestRouter(service, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if service.gotToken != "valid-token" {
			t.Fatalf("expected token to reach the service, got %q", service.gotToken)
		}
		var resp CheckResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if !resp.Subscribed {
			t.Fatal("expected subscribed true")
		}
		if resp.SubscriptionTier == nil || *resp.SubscriptionTier != "premium" {
			t.Fatalf("expected tier premium, got %v", resp.SubscriptionTier)
		}
		if resp.SubscriptionEnd == nil || *resp.SubscriptionEnd != "2026-09-30T12:00:00Z" {
			t.Fatalf("expected RFC3339 period end, got %v", resp.SubscriptionEnd)
		}
	})

	t.Run("not subscribed omits tier and end", func(t *testing.T) {
		service := &mockSubscriptionService{record: &models.SubscriptionRecord{
			SubjectID: "sub-123",
			Tier:      models.TierNone,
		}}
		r := setupSubscriptionTestRouter(service, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp CheckResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.Subscribed {
			t.Fatal("expected subscribed false")
		}
		if resp.SubscriptionTier != nil || resp.SubscriptionEnd != nil {
			t.Fatal("expected tier and end to be omitted when not subscribed")
		}
	})

	t.Run("missing bearer token", func(t *testing.T) {
		r := setupSubscriptionTestRouter(&mockSubscriptionService{}, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		service := &mockSubscriptionService{checkErr: identity.ErrUnauthenticated}
		r := setupSubscriptionTestRouter(service, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		req.Header.Set("Authorization", "Bearer expired-token")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("billing unavailable", func(t *testing.T) {
		service := &mockSubscriptionService{checkErr: billing.ErrUnavailable}
		r := setupSubscriptionTestRouter(service, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if subscribed, ok := resp["subscribed"].(bool); !ok || subscribed {
			t.Fatalf("expected subscribed false in error body, got %v", resp["subscribed"])
		}
		if resp["error"] != "billing provider unavailable" {
			t.Fatalf("unexpected error message: %v", resp["error"])
		}
	})

	t.Run("store failure", func(t *testing.T) {
		service := &mockSubscriptionService{checkErr: errors.New("upsert failed")}
		r := setupSubscriptionTestRouter(service, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/subscription/check", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}

func TestSubscriptionAuditLog(t *testing.T) {
	ident := identity.Identity{SubjectID: "sub-123", Email: "jane.doe@example.com"}

	t.Run("success", func(t *testing.T) {
		service := &mockSubscriptionService{entries: []*models.AuditEntry{
			models.NewAuditEntry("sub-123", "ja***@example.com", models.AuditActionSubscriptionChanged),
		}}
		r := setupSubscriptionTestRouter(service, &ident)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/subscription/audit-logs", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if service.gotLimit != 50 {
			t.Fatalf("expected default limit 50, got %d", service.gotLimit)
		}
		var resp AuditLogResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if len(resp.AuditLogs) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(resp.AuditLogs))
		}
	})

	t.Run("custom limit", func(t *testing.T) {
		service := &mockSubscriptionService{}
		r := setupSubscriptionTestRouter(service, &ident)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/subscription/audit-logs?limit=10", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if service.gotLimit != 10 {
			t.Fatalf("expected limit 10, got %d", service.gotLimit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, limit := range []string{"0", "-1", "501", "abc"} {
			r := setupSubscriptionTestRouter(&mockSubscriptionService{}, &ident)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/v1/subscription/audit-logs?limit="+limit, nil)
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("limit %q: expected 400, got %d", limit, w.Code)
			}
		}
	})

	t.Run("no identity", func(t *testing.T) {
		r := setupSubscriptionTestRouter(&mockSubscriptionService{}, nil)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/subscription/audit-logs", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		r := setupSubscriptionTestRouter(&mockSubscriptionService{}, &ident)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/subscription/audit-logs", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp AuditLogResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if resp.AuditLogs == nil {
			t.Fatal("expected empty array, got null")
		}
	})
}
