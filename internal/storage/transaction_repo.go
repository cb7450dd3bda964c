package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zivra/zivra-custody/pkg/types"
)

// TransactionRepository handles transaction pipeline records.
// Value and fee columns are NUMERIC; big.Int crosses the wire as a
// decimal string to avoid float rounding.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func bigToDB(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func bigFromDB(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

// Create creates a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *types.Transaction) error {
	return r.CreateTx(ctx, r.store.pool, tx)
}

// CreateTx creates a new transaction record using the provided transaction
func (r *TransactionRepository) CreateTx(ctx context.Context, db DBTX, tx *types.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	query := `
		INSERT INTO transactions (
			id, owner_id, wallet_id, chain_family,
			from_address, to_address, value, token, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		RETURNING created_at, updated_at
	`

	err := db.QueryRow(ctx, query,
		tx.ID,
		tx.OwnerID,
		tx.WalletID,
		tx.ChainFamily,
		tx.FromAddress,
		tx.ToAddress,
		bigToDB(tx.Value),
		tx.Token,
		tx.Status,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

const txColumns = `id, owner_id, wallet_id, chain_family, from_address, to_address,
		value::text, token, simulated_fee::text, policy_result, signature, chain_ref,
		inclusion_height, status, created_at, updated_at`

func scanTransaction(row pgx.Row) (*types.Transaction, error) {
	var tx types.Transaction
	var value, fee *string

	err := row.Scan(
		&tx.ID, &tx.OwnerID, &tx.WalletID, &tx.ChainFamily,
		&tx.FromAddress, &tx.ToAddress, &value, &tx.Token,
		&fee, &tx.PolicyResult, &tx.Signature, &tx.ChainRef,
		&tx.InclusionHeight, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Value = bigFromDB(value)
	tx.SimulatedFee = bigFromDB(fee)
	return &tx, nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.store.pool.QueryRow(ctx, query, id))
}

// ListByOwner retrieves an owner's transactions, newest first
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*types.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.store.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*types.Transaction
	for rows.Next() {
		var tx types.Transaction
		var value, fee *string
		err := rows.Scan(
			&tx.ID, &tx.OwnerID, &tx.WalletID, &tx.ChainFamily,
			&tx.FromAddress, &tx.ToAddress, &value, &tx.Token,
			&fee, &tx.PolicyResult, &tx.Signature, &tx.ChainRef,
			&tx.InclusionHeight, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Value = bigFromDB(value)
		tx.SimulatedFee = bigFromDB(fee)
		txs = append(txs, &tx)
	}
	return txs, nil
}

// UpdateSimulationTx records the simulated fee after the simulate stage
func (r *TransactionRepository) UpdateSimulationTx(ctx context.Context, db DBTX, id uuid.UUID, fee *big.Int) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions SET simulated_fee = $2::numeric, updated_at = NOW()
		WHERE id = $1
	`, id, bigToDB(fee))
	if err != nil {
		return fmt.Errorf("failed to update simulation result: %w", err)
	}
	return nil
}

// UpdatePolicyResultTx records the policy engine verdict
func (r *TransactionRepository) UpdatePolicyResultTx(ctx context.Context, db DBTX, id uuid.UUID, result string) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions SET policy_result = $2, updated_at = NOW()
		WHERE id = $1
	`, id, result)
	if err != nil {
		return fmt.Errorf("failed to update policy result: %w", err)
	}
	return nil
}

// UpdateSignatureTx records the signature after the sign stage
func (r *TransactionRepository) UpdateSignatureTx(ctx context.Context, db DBTX, id uuid.UUID, signature []byte) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions SET signature = $2, updated_at = NOW()
		WHERE id = $1
	`, id, signature)
	if err != nil {
		return fmt.Errorf("failed to update signature: %w", err)
	}
	return nil
}

// UpdateBroadcastTx records the chain reference returned by broadcast
func (r *TransactionRepository) UpdateBroadcastTx(ctx context.Context, db DBTX, id uuid.UUID, chainRef string) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions SET chain_ref = $2, updated_at = NOW()
		WHERE id = $1
	`, id, chainRef)
	if err != nil {
		return fmt.Errorf("failed to update chain ref: %w", err)
	}
	return nil
}

// UpdateStatus transitions the transaction's terminal status
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.UpdateStatusTx(ctx, r.store.pool, id, status)
}

// UpdateStatusTx transitions the status using the provided transaction
func (r *TransactionRepository) UpdateStatusTx(ctx context.Context, db DBTX, id uuid.UUID, status string) error {
	_, err := db.Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// MarkConfirmed records the inclusion height and flips the status
func (r *TransactionRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, inclusionHeight uint64) error {
	_, err := r.store.pool.Exec(ctx, `
		UPDATE transactions SET status = $2, inclusion_height = $3, updated_at = NOW()
		WHERE id = $1
	`, id, types.TxStatusConfirmed, inclusionHeight)
	if err != nil {
		return fmt.Errorf("failed to mark transaction confirmed: %w", err)
	}
	return nil
}

// SumSpendSinceTx sums the owner's spend in the given token since the cutoff.
// Pending and confirmed transactions both count; only failed ones are
// excluded, so an in-flight transfer reserves headroom against the limit.
// The token match is case-insensitive: rows written before symbols were
// canonicalized must still count against the limit.
func (r *TransactionRepository) SumSpendSinceTx(ctx context.Context, db DBTX, ownerID uuid.UUID, token string, since time.Time) (*big.Int, error) {
	var sum string
	err := db.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0)::text
		FROM transactions
		WHERE owner_id = $1 AND UPPER(token) = UPPER($2) AND created_at >= $3 AND status != $4
	`, ownerID, token, since, types.TxStatusFailed).Scan(&sum)
	if err != nil {
		return nil, fmt.Errorf("failed to sum spend: %w", err)
	}

	total, ok := new(big.Int).SetString(sum, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse spend sum %q", sum)
	}
	return total, nil
}
