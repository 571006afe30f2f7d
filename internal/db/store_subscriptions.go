package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/plantaehq/plantae/internal/models"
)

// GetSubscriptionBySubject returns the cached subscription record for a
// subject, or ErrNotFound when no reconciliation has happened yet.
func (db *DB) GetSubscriptionBySubject(ctx context.Context, subjectID string) (*models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	err := db.Pool.QueryRow(ctx, `
		SELECT subject_id, email, billing_customer_id, subscribed, tier, period_end, updated_at
		FROM subscriptions
		WHERE subject_id = $1
	`, subjectID).Scan(&rec.SubjectID, &rec.Email, &rec.BillingCustomerID,
		&rec.Subscribed, &rec.Tier, &rec.PeriodEnd, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &rec, nil
}

// SaveReconciliation atomically writes the record keyed by subject id
// (insert when absent, overwrite otherwise) and appends its audit entry in
// the same transaction, so a record update can never land without its trail.
// It reports whether a new row was created.
func (db *DB) SaveReconciliation(ctx context.Context, rec *models.SubscriptionRecord, entry *models.AuditEntry) (bool, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return false, fmt.Errorf("marshal audit details: %w", err)
	}

	var created bool
	err = db.ExecTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO subscriptions (subject_id, email, billing_customer_id, subscribed, tier, period_end, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (subject_id) DO UPDATE SET
				email               = EXCLUDED.email,
				billing_customer_id = EXCLUDED.billing_customer_id,
				subscribed          = EXCLUDED.subscribed,
				tier                = EXCLUDED.tier,
				period_end          = EXCLUDED.period_end,
				updated_at          = EXCLUDED.updated_at
			RETURNING (xmax = 0)
		`, rec.SubjectID, rec.Email, rec.BillingCustomerID, rec.Subscribed,
			rec.Tier, rec.PeriodEnd, rec.UpdatedAt).Scan(&created)
		if err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO audit_entries (id, subject_id, masked_email, action, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ID, entry.SubjectID, entry.MaskedEmail, string(entry.Action), details, entry.CreatedAt); err != nil {
			return fmt.Errorf("append reconciliation audit entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("save reconciliation: %w", err)
	}
	return created, nil
}
