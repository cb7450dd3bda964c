package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zivra/zivra-custody/pkg/types"
)

// GuardianRepository handles guardian data operations
type GuardianRepository struct {
	store *Store
}

// NewGuardianRepository creates a new GuardianRepository
func NewGuardianRepository(store *Store) *GuardianRepository {
	return &GuardianRepository{store: store}
}

// Create creates a new guardian
func (r *GuardianRepository) Create(ctx context.Context, guardian *types.Guardian) error {
	return r.CreateTx(ctx, r.store.pool, guardian)
}

// CreateTx creates a new guardian using the provided transaction or connection
func (r *GuardianRepository) CreateTx(ctx context.Context, db DBTX, guardian *types.Guardian) error {
	if guardian.ID == uuid.Nil {
		guardian.ID = uuid.New()
	}

	query := `
		INSERT INTO guardians (id, owner_id, name, contact, relationship, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at
	`

	err := db.QueryRow(ctx, query,
		guardian.ID,
		guardian.OwnerID,
		guardian.Name,
		guardian.Contact,
		guardian.Relationship,
	).Scan(&guardian.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create guardian: %w", err)
	}
	guardian.Active = true

	return nil
}

const guardianColumns = `id, owner_id, name, contact, relationship, active, created_at, removed_at`

// GetByID retrieves a guardian by ID
func (r *GuardianRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians WHERE id = $1`

	var g types.Guardian
	err := r.store.pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.OwnerID, &g.Name, &g.Contact, &g.Relationship,
		&g.Active, &g.CreatedAt, &g.RemovedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guardian: %w", err)
	}
	return &g, nil
}

// GetActiveByOwner retrieves all active guardians of an owner
func (r *GuardianRepository) GetActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.Guardian, error) {
	query := `
		SELECT ` + guardianColumns + `
		FROM guardians
		WHERE owner_id = $1 AND active
		ORDER BY created_at
	`

	rows, err := r.store.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guardians: %w", err)
	}
	defer rows.Close()

	var guardians []*types.Guardian
	for rows.Next() {
		var g types.Guardian
		err := rows.Scan(
			&g.ID, &g.OwnerID, &g.Name, &g.Contact, &g.Relationship,
			&g.Active, &g.CreatedAt, &g.RemovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guardian: %w", err)
		}
		guardians = append(guardians, &g)
	}

	return guardians, nil
}

// CountActiveByOwner counts an owner's active guardians
func (r *GuardianRepository) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.store.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM guardians WHERE owner_id = $1 AND active`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count guardians: %w", err)
	}
	return count, nil
}

// SoftRemove marks a guardian inactive. The row stays for audit and for
// recovery requests whose snapshot still references it.
func (r *GuardianRepository) SoftRemove(ctx context.Context, ownerID, guardianID uuid.UUID) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE guardians SET active = FALSE, removed_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND active
	`, guardianID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to remove guardian: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("guardian not found")
	}
	return nil
}
