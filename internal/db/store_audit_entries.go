package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plantaehq/plantae/internal/models"
)

// AppendAuditEntry inserts a new audit entry. Entries are append-only;
// nothing in this package updates or deletes them.
func (db *DB) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO audit_entries (id, subject_id, masked_email, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.SubjectID, entry.MaskedEmail, string(entry.Action), details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAuditEntriesBySubject returns a subject's audit entries, most recent
// first. A limit of 0 or less applies no limit.
func (db *DB) ListAuditEntriesBySubject(ctx context.Context, subjectID string, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, subject_id, masked_email, action, details, created_at
		FROM audit_entries
		WHERE subject_id = $1
		ORDER BY created_at DESC
	`
	args := []any{subjectID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.SubjectID, &entry.MaskedEmail,
			&entry.Action, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
