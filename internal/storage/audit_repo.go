package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a custody-relevant action.
type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Action    string         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditRepository handles the append-only audit log
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Record appends an audit entry
func (r *AuditRepository) Record(ctx context.Context, ownerID uuid.UUID, action string, detail map[string]any) error {
	return r.RecordTx(ctx, r.store.pool, ownerID, action, detail)
}

// RecordTx appends an audit entry using the provided transaction, so the
// entry commits or rolls back with the action it describes.
func (r *AuditRepository) RecordTx(ctx context.Context, db DBTX, ownerID uuid.UUID, action string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode audit detail: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO audit_log (id, owner_id, action, detail)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), ownerID, action, payload)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// ListByOwner returns an owner's audit trail, newest first
func (r *AuditRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.store.pool.Query(ctx, `
		SELECT id, owner_id, action, detail, created_at
		FROM audit_log
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var detail []byte
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Action, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
