package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewAuditEntry(t *testing.T) {
	entry := NewAuditEntry("sub-123", "ja***@example.com", AuditActionSubscriptionChanged)
	if entry.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("expected entry ID to be generated")
	}
	if entry.SubjectID != "sub-123" {
		t.Fatalf("expected subject sub-123, got %q", entry.SubjectID)
	}
	if entry.Action != AuditActionSubscriptionChanged {
		t.Fatalf("expected action %q, got %q", AuditActionSubscriptionChanged, entry.Action)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}

func TestAuditEntryWithSubscriptionState(t *testing.T) {
	entry := NewAuditEntry("sub-123", "ja***@example.com", AuditActionSubscriptionChecked).
		WithSubscriptionState(true, TierPremium)
	if entry.Details.Subscribed == nil || !*entry.Details.Subscribed {
		t.Fatal("expected subscribed detail to be true")
	}
	if entry.Details.Tier != TierPremium {
		t.Fatalf("expected tier %q, got %q", TierPremium, entry.Details.Tier)
	}
}

func TestAuditEntryJSONCarriesNoRawEmail(t *testing.T) {
	entry := NewAuditEntry("sub-123", "ja***@example.com", AuditActionCheckoutStarted).
		WithPriceAmount(1999)
	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("failed to marshal entry: %v", err)
	}
	if strings.Contains(string(raw), "jane.doe@example.com") {
		t.Fatal("serialized entry must not contain an unmasked email")
	}
	if !strings.Contains(string(raw), `"price_amount":1999`) {
		t.Fatalf("expected price_amount in payload, got %s", raw)
	}
}
