package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zivra/zivra-custody/pkg/types"
)

// ErrActivePolicyExists is returned when an insert collides with the
// partial unique index on (owner_id, type) WHERE active
var ErrActivePolicyExists = errors.New("owner already has an active policy of this type")

// PolicyRepository handles policy data operations.
// A partial unique index on (owner_id, type) WHERE active backs the
// one-active-policy-per-type invariant.
type PolicyRepository struct {
	store *Store
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(store *Store) *PolicyRepository {
	return &PolicyRepository{store: store}
}

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *types.Policy) error {
	return r.CreateTx(ctx, r.store.pool, policy)
}

// CreateTx creates a new policy using the provided transaction or connection
func (r *PolicyRepository) CreateTx(ctx context.Context, db DBTX, policy *types.Policy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}

	params, err := json.Marshal(policy.Params)
	if err != nil {
		return fmt.Errorf("failed to encode policy params: %w", err)
	}

	query := `
		INSERT INTO policies (id, owner_id, type, params, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING created_at
	`

	err = db.QueryRow(ctx, query,
		policy.ID,
		policy.OwnerID,
		policy.Type,
		params,
	).Scan(&policy.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActivePolicyExists
		}
		return fmt.Errorf("failed to create policy: %w", err)
	}
	policy.Active = true

	return nil
}

const policyColumns = `id, owner_id, type, params, active, created_at, deactivated_at`

func scanPolicy(row pgx.Row) (*types.Policy, error) {
	var p types.Policy
	var params []byte

	err := row.Scan(&p.ID, &p.OwnerID, &p.Type, &params, &p.Active, &p.CreatedAt, &p.DeactivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan policy: %w", err)
	}

	if err := json.Unmarshal(params, &p.Params); err != nil {
		return nil, fmt.Errorf("failed to decode policy params: %w", err)
	}
	return &p, nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`
	return scanPolicy(r.store.pool.QueryRow(ctx, query, id))
}

// GetActiveByOwner retrieves all active policies of an owner
func (r *PolicyRepository) GetActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.Policy, error) {
	return r.GetActiveByOwnerTx(ctx, r.store.pool, ownerID)
}

// GetActiveByOwnerTx retrieves active policies using the provided transaction
func (r *PolicyRepository) GetActiveByOwnerTx(ctx context.Context, db DBTX, ownerID uuid.UUID) ([]*types.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM policies
		WHERE owner_id = $1 AND active
		ORDER BY created_at
	`

	rows, err := db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get policies: %w", err)
	}
	defer rows.Close()

	var policies []*types.Policy
	for rows.Next() {
		var p types.Policy
		var params []byte
		err := rows.Scan(&p.ID, &p.OwnerID, &p.Type, &params, &p.Active, &p.CreatedAt, &p.DeactivatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		if err := json.Unmarshal(params, &p.Params); err != nil {
			return nil, fmt.Errorf("failed to decode policy params: %w", err)
		}
		policies = append(policies, &p)
	}

	return policies, nil
}

// HasActiveOfType checks whether the owner already has an active policy
// of the given type
func (r *PolicyRepository) HasActiveOfType(ctx context.Context, ownerID uuid.UUID, policyType string) (bool, error) {
	var exists bool
	err := r.store.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM policies WHERE owner_id = $1 AND type = $2 AND active)`,
		ownerID, policyType,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check policy existence: %w", err)
	}
	return exists, nil
}

// Deactivate soft-deletes a policy. Policies are never mutated in place;
// changing parameters means deactivate + recreate.
func (r *PolicyRepository) Deactivate(ctx context.Context, ownerID, policyID uuid.UUID) error {
	tag, err := r.store.pool.Exec(ctx, `
		UPDATE policies SET active = FALSE, deactivated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND active
	`, policyID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("policy not found")
	}
	return nil
}
