package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zivra/zivra-custody/internal/custody"
	"github.com/zivra/zivra-custody/internal/sealer"
	"github.com/zivra/zivra-custody/internal/storage"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

const voteTestMasterKey = "404142434445464748494a4b4c4d4e4f505152535455565758595a5b5c5d5e5f"

// custodyDB satisfies storage.DBTX over in-memory rows for the statements
// the vote path issues: the request row lock, vote insert and tally, and
// the full shard swap of an approval. The vote primary key is enforced
// the way Postgres does it, with a 23505 on the second insert.
type custodyDB struct {
	request *types.RecoveryRequest
	votes   []*types.RecoveryVote
	wallet  *types.Wallet
	shards  []*types.Shard
	actions []string
}

type rowFn func(dest ...any) error

func (f rowFn) Scan(dest ...any) error { return f(dest...) }

func (f *custodyDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM recovery_requests"):
		return f.requestRow(args[0].(uuid.UUID))
	case strings.Contains(sql, "INSERT INTO recovery_votes"):
		return f.insertVote(args[0].(uuid.UUID), args[1].(uuid.UUID), args[2].(bool))
	case strings.Contains(sql, "FROM wallets"):
		return f.walletRow(args[0].(uuid.UUID))
	case strings.Contains(sql, "INSERT INTO shards"):
		return f.insertShard(args)
	case strings.Contains(sql, "FROM shards"):
		return f.shardRow(args[0].(uuid.UUID), args[1].(string))
	}
	return rowFn(func(dest ...any) error { return fmt.Errorf("unexpected query: %s", sql) })
}

func (f *custodyDB) requestRow(id uuid.UUID) pgx.Row {
	return rowFn(func(dest ...any) error {
		if f.request == nil || f.request.ID != id {
			return pgx.ErrNoRows
		}
		r := f.request
		*(dest[0].(*uuid.UUID)) = r.ID
		*(dest[1].(*uuid.UUID)) = r.OwnerID
		*(dest[2].(*[]uuid.UUID)) = r.GuardianIDs
		*(dest[3].(*int)) = r.VotesRequired
		*(dest[4].(*string)) = r.Status
		*(dest[5].(*time.Time)) = r.CreatedAt
		*(dest[6].(*time.Time)) = r.UpdatedAt
		return nil
	})
}

func (f *custodyDB) insertVote(requestID, guardianID uuid.UUID, approve bool) pgx.Row {
	for _, v := range f.votes {
		if v.RequestID == requestID && v.GuardianID == guardianID {
			return rowFn(func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "recovery_votes_pkey"}
			})
		}
	}

	vote := &types.RecoveryVote{
		RequestID:  requestID,
		GuardianID: guardianID,
		Approve:    approve,
		VotedAt:    time.Now().UTC(),
	}
	f.votes = append(f.votes, vote)
	return rowFn(func(dest ...any) error {
		*(dest[0].(*time.Time)) = vote.VotedAt
		return nil
	})
}

func (f *custodyDB) walletRow(ownerID uuid.UUID) pgx.Row {
	return rowFn(func(dest ...any) error {
		if f.wallet == nil || f.wallet.OwnerID != ownerID {
			return pgx.ErrNoRows
		}
		w := f.wallet
		addresses, err := json.Marshal(w.Addresses)
		if err != nil {
			return err
		}
		*(dest[0].(*uuid.UUID)) = w.ID
		*(dest[1].(*uuid.UUID)) = w.OwnerID
		*(dest[2].(*[]byte)) = w.PublicKey
		*(dest[3].(*string)) = w.MasterPublicKey
		*(dest[4].(*[]byte)) = addresses
		*(dest[5].(*int)) = w.KeyEpoch
		*(dest[6].(*time.Time)) = w.CreatedAt
		*(dest[7].(*time.Time)) = w.UpdatedAt
		return nil
	})
}

func (f *custodyDB) insertShard(args []any) pgx.Row {
	shard := &types.Shard{
		ID:         args[0].(uuid.UUID),
		WalletID:   args[1].(uuid.UUID),
		Type:       args[2].(string),
		Nonce:      args[3].([]byte),
		Ciphertext: args[4].([]byte),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	f.shards = append(f.shards, shard)
	return rowFn(func(dest ...any) error {
		*(dest[0].(*time.Time)) = shard.CreatedAt
		return nil
	})
}

func (f *custodyDB) shardRow(walletID uuid.UUID, shardType string) pgx.Row {
	return rowFn(func(dest ...any) error {
		for _, s := range f.shards {
			if s.WalletID != walletID || s.Type != shardType || !s.Active {
				continue
			}
			*(dest[0].(*uuid.UUID)) = s.ID
			*(dest[1].(*uuid.UUID)) = s.WalletID
			*(dest[2].(*string)) = s.Type
			*(dest[3].(*[]byte)) = s.Nonce
			*(dest[4].(*[]byte)) = s.Ciphertext
			*(dest[5].(*bool)) = s.Active
			*(dest[6].(*time.Time)) = s.CreatedAt
			*(dest[7].(**time.Time)) = s.DeactivatedAt
			return nil
		}
		return pgx.ErrNoRows
	})
}

func (f *custodyDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(sql, "FROM recovery_votes") {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}

	requestID := args[0].(uuid.UUID)
	var matched []*types.RecoveryVote
	for _, v := range f.votes {
		if v.RequestID == requestID {
			matched = append(matched, v)
		}
	}
	return &voteRows{votes: matched}, nil
}

func (f *custodyDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "UPDATE shards"):
		walletID := args[0].(uuid.UUID)
		n := 0
		for _, s := range f.shards {
			if s.WalletID == walletID && s.Active {
				now := time.Now().UTC()
				s.Active = false
				s.DeactivatedAt = &now
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", n)), nil

	case strings.Contains(sql, "UPDATE wallets"):
		if f.wallet.ID == args[0].(uuid.UUID) && f.wallet.KeyEpoch == args[1].(int) {
			f.wallet.KeyEpoch = args[2].(int)
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil

	case strings.Contains(sql, "INSERT INTO audit_log"):
		f.actions = append(f.actions, args[2].(string))
		return pgconn.NewCommandTag("INSERT 0 1"), nil

	case strings.Contains(sql, "UPDATE recovery_requests"):
		f.request.Status = args[1].(string)
		f.request.UpdatedAt = time.Now().UTC()
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
}

type voteRows struct {
	votes []*types.RecoveryVote
	idx   int
}

func (r *voteRows) Close()                                       {}
func (r *voteRows) Err() error                                   { return nil }
func (r *voteRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *voteRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *voteRows) Values() ([]any, error)                       { return nil, nil }
func (r *voteRows) RawValues() [][]byte                          { return nil }
func (r *voteRows) Conn() *pgx.Conn                              { return nil }

func (r *voteRows) Next() bool {
	r.idx++
	return r.idx <= len(r.votes)
}

func (r *voteRows) Scan(dest ...any) error {
	v := r.votes[r.idx-1]
	*(dest[0].(*uuid.UUID)) = v.RequestID
	*(dest[1].(*uuid.UUID)) = v.GuardianID
	*(dest[2].(*bool)) = v.Approve
	*(dest[3].(*time.Time)) = v.VotedAt
	return nil
}

func shardFromEnvelope(env *types.ShardEnvelope) *types.Shard {
	return &types.Shard{
		ID:         uuid.New(),
		WalletID:   env.WalletID,
		Type:       env.Type,
		Nonce:      env.Nonce,
		Ciphertext: env.Ciphertext,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
}

type voteFixture struct {
	coordinator *Coordinator
	svc         *custody.Service
	db          *custodyDB
	guardianIDs []uuid.UUID
}

func newVoteFixture(t *testing.T, guardianCount int) *voteFixture {
	t.Helper()

	seal, err := sealer.NewLocalSealer(voteTestMasterKey)
	require.NoError(t, err)
	svc := custody.NewService(seal)

	walletID := uuid.New()
	ownerID := uuid.New()
	gen, err := svc.GenerateWallet(context.Background(), walletID)
	require.NoError(t, err)

	now := time.Now().UTC()
	wallet := &types.Wallet{
		ID:              walletID,
		OwnerID:         ownerID,
		PublicKey:       gen.PublicKey,
		MasterPublicKey: gen.MasterPublicKey,
		Addresses:       gen.Addresses,
		KeyEpoch:        gen.KeyEpoch,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	guardianIDs := make([]uuid.UUID, guardianCount)
	for i := range guardianIDs {
		guardianIDs[i] = uuid.New()
	}

	db := &custodyDB{
		request: &types.RecoveryRequest{
			ID:            uuid.New(),
			OwnerID:       ownerID,
			GuardianIDs:   guardianIDs,
			VotesRequired: VotesRequired(guardianCount),
			Status:        types.RecoveryStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		wallet: wallet,
		shards: []*types.Shard{
			shardFromEnvelope(gen.SecurityShard),
			shardFromEnvelope(gen.RecoveryShard),
		},
	}

	coordinator := &Coordinator{
		recoveries: storage.NewRecoveryRepository(nil),
		guardians:  storage.NewGuardianRepository(nil),
		wallets:    storage.NewWalletRepository(nil),
		shards:     storage.NewShardRepository(nil),
		audit:      storage.NewAuditRepository(nil),
		custody:    svc,
	}

	return &voteFixture{
		coordinator: coordinator,
		svc:         svc,
		db:          db,
		guardianIDs: guardianIDs,
	}
}

func TestDuplicateVoteLeavesTallyUnchanged(t *testing.T) {
	f := newVoteFixture(t, 3) // quorum of 2
	ctx := context.Background()
	guardian := f.guardianIDs[0]

	result, approved, err := f.coordinator.applyVote(ctx, f.db, f.db.request.ID, guardian, true)
	require.NoError(t, err)
	assert.Nil(t, approved)
	assert.Equal(t, 1, result.VotesReceived)
	assert.Equal(t, types.RecoveryStatusPending, result.Status)

	_, _, err = f.coordinator.applyVote(ctx, f.db, f.db.request.ID, guardian, true)
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDuplicateVote, appErr.Code)

	assert.Len(t, f.db.votes, 1, "rejected duplicate must not add a vote row")
	assert.Equal(t, types.RecoveryStatusPending, f.db.request.Status)
	assert.Equal(t, 1, f.db.wallet.KeyEpoch, "tally below quorum must not re-key")
}

func TestTwoGuardianQuorumRekeysOnFinalVote(t *testing.T) {
	f := newVoteFixture(t, 2) // quorum of 2
	ctx := context.Background()
	requestID := f.db.request.ID

	result, approved, err := f.coordinator.applyVote(ctx, f.db, requestID, f.guardianIDs[0], true)
	require.NoError(t, err)
	assert.Nil(t, approved)
	assert.Equal(t, types.RecoveryStatusPending, result.Status)
	assert.Nil(t, result.NewHotShard)
	assert.Equal(t, 1, f.db.wallet.KeyEpoch)

	result, approved, err = f.coordinator.applyVote(ctx, f.db, requestID, f.guardianIDs[1], true)
	require.NoError(t, err)
	require.NotNil(t, approved)
	assert.Equal(t, requestID, approved.ID)
	assert.Equal(t, types.RecoveryStatusApproved, result.Status)
	assert.Equal(t, types.RecoveryStatusApproved, f.db.request.Status)

	require.NotNil(t, result.NewHotShard)
	assert.Equal(t, types.ShardTypeHot, result.NewHotShard.Type)
	assert.Equal(t, f.db.wallet.ID, result.NewHotShard.WalletID)

	assert.Equal(t, 2, f.db.wallet.KeyEpoch, "approval must advance the key epoch")
	assert.Contains(t, f.db.actions, "recovery.approved")

	// The old server-held pair is retired and a fresh one is active.
	require.Len(t, f.db.shards, 4)
	active := map[string]*types.Shard{}
	for _, s := range f.db.shards {
		if s.Active {
			active[s.Type] = s
		}
	}
	require.Len(t, active, 2)
	require.Contains(t, active, types.ShardTypeSecurity)
	require.Contains(t, active, types.ShardTypeRecovery)

	// The delivered hot shard and the stored security shard sign under
	// the new epoch, so the owner is operational again.
	rekeyed := *f.db.wallet
	sig, err := f.svc.CombineAndSign(ctx, &rekeyed, result.NewHotShard,
		active[types.ShardTypeSecurity].Envelope(), []byte("post-recovery spend"))
	require.NoError(t, err)
	assert.Len(t, sig, 65)
}

func TestRejectionsCancelWhenQuorumUnreachable(t *testing.T) {
	f := newVoteFixture(t, 3) // quorum of 2
	ctx := context.Background()
	requestID := f.db.request.ID

	result, _, err := f.coordinator.applyVote(ctx, f.db, requestID, f.guardianIDs[0], false)
	require.NoError(t, err)
	assert.Equal(t, types.RecoveryStatusPending, result.Status)

	// Second rejection leaves one possible approval against a quorum of
	// two; the request terminates.
	result, approved, err := f.coordinator.applyVote(ctx, f.db, requestID, f.guardianIDs[1], false)
	require.NoError(t, err)
	assert.Nil(t, approved)
	assert.Equal(t, types.RecoveryStatusCancelled, result.Status)
	assert.Equal(t, types.RecoveryStatusCancelled, f.db.request.Status)
	assert.Nil(t, result.NewHotShard)
	assert.Equal(t, 1, f.db.wallet.KeyEpoch)

	_, _, err = f.coordinator.applyVote(ctx, f.db, requestID, f.guardianIDs[2], true)
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeRecoveryNotFound, appErr.Code)
}
