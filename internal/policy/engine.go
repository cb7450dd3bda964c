// Package policy implements creation, validation and evaluation of the
// per-owner spending rules that gate every outgoing transaction.
package policy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/chains"
	"github.com/zivra/zivra-custody/internal/storage"
)

// Violation describes a single policy failure in operator-readable form.
type Violation struct {
	PolicyID uuid.UUID `json:"policy_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
}

// Verdict is the outcome of evaluating a transaction against every active
// policy of its owner. AND semantics: valid only when Violations is empty.
type Verdict struct {
	Valid      bool        `json:"is_valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Reasons flattens the violations into strings for error reporting.
func (v *Verdict) Reasons() []string {
	reasons := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		reasons = append(reasons, fmt.Sprintf("%s (%s): %s", violation.Type, violation.PolicyID, violation.Reason))
	}
	return reasons
}

// Engine validates policy definitions and gates outgoing transactions.
type Engine struct {
	policies  *storage.PolicyRepository
	txs       *storage.TransactionRepository
	guardians *storage.GuardianRepository
}

// NewEngine creates a new policy engine
func NewEngine(policies *storage.PolicyRepository, txs *storage.TransactionRepository, guardians *storage.GuardianRepository) *Engine {
	return &Engine{
		policies:  policies,
		txs:       txs,
		guardians: guardians,
	}
}

// CreatePolicy schema-validates params against the policy type and
// persists the policy. A second active policy of the same type is
// rejected: the pre-check catches it early, and the partial unique index
// on (owner_id, type) WHERE active catches the race between two
// concurrent creates that both pass the pre-check.
func (e *Engine) CreatePolicy(ctx context.Context, ownerID uuid.UUID, policyType string, params types.PolicyParams) (*types.Policy, error) {
	if err := e.validateParams(ctx, ownerID, policyType, params); err != nil {
		return nil, err
	}

	exists, err := e.policies.HasActiveOfType(ctx, ownerID, policyType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.DuplicatePolicy(policyType)
	}

	policy := &types.Policy{
		OwnerID: ownerID,
		Type:    policyType,
		Params:  params,
	}
	if err := e.policies.Create(ctx, policy); err != nil {
		if errors.Is(err, storage.ErrActivePolicyExists) {
			return nil, apperrors.DuplicatePolicy(policyType)
		}
		return nil, err
	}
	return policy, nil
}

// DeactivatePolicy soft-deactivates a policy. Changing a policy's
// parameters means deactivating it and creating a fresh one.
func (e *Engine) DeactivatePolicy(ctx context.Context, ownerID, policyID uuid.UUID) error {
	return e.policies.Deactivate(ctx, ownerID, policyID)
}

// ListPolicies returns the owner's active policies
func (e *Engine) ListPolicies(ctx context.Context, ownerID uuid.UUID) ([]*types.Policy, error) {
	return e.policies.GetActiveByOwner(ctx, ownerID)
}

// ValidateTransaction evaluates the draft against every active policy of
// the owner. Each policy is checked independently and every failure is
// collected, so the caller sees the full violation list in one pass.
//
// The daily-limit check reads the owner's spend sum through db; callers in
// the signing path pass a transaction holding the per-owner advisory lock
// so the check and the eventual spend record are serialized.
func (e *Engine) ValidateTransaction(ctx context.Context, db storage.DBTX, ownerID uuid.UUID, draft *types.TxDraft) (*Verdict, error) {
	policies, err := e.policies.GetActiveByOwnerTx(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{Valid: true}
	for _, p := range policies {
		var violation *Violation
		switch p.Type {
		case types.PolicyTypeDailyLimit:
			violation, err = e.checkDailyLimit(ctx, db, p, ownerID, draft)
			if err != nil {
				return nil, err
			}
		case types.PolicyTypeWhitelist:
			violation = checkWhitelist(p, draft)
		case types.PolicyTypeMultiSig:
			violation = checkMultiSig(p, draft)
		default:
			violation = &Violation{
				PolicyID: p.ID,
				Type:     p.Type,
				Reason:   fmt.Sprintf("unknown policy type %q", p.Type),
			}
		}
		if violation != nil {
			verdict.Valid = false
			verdict.Violations = append(verdict.Violations, *violation)
		}
	}
	return verdict, nil
}

// checkDailyLimit compares the owner's spend in the policy's token since
// the start of the current UTC day, plus the proposed amount, against the
// limit. Spending exactly up to the limit is allowed. Token symbols match
// case-insensitively end to end: the draft is compared to the policy with
// EqualFold and the spend sum is keyed by the policy's token so a case
// variant cannot dodge the accumulated total.
func (e *Engine) checkDailyLimit(ctx context.Context, db storage.DBTX, p *types.Policy, ownerID uuid.UUID, draft *types.TxDraft) (*Violation, error) {
	if !strings.EqualFold(draft.Token, p.Params.Token) {
		return nil, nil
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	spent, err := e.txs.SumSpendSinceTx(ctx, db, ownerID, p.Params.Token, dayStart)
	if err != nil {
		return nil, err
	}

	projected := new(big.Int).Add(spent, draft.Value)
	if projected.Cmp(p.Params.Limit) > 0 {
		return &Violation{
			PolicyID: p.ID,
			Type:     p.Type,
			Reason: fmt.Sprintf("daily limit exceeded: spent %s + requested %s > limit %s %s",
				spent, draft.Value, p.Params.Limit, p.Params.Token),
		}, nil
	}
	return nil, nil
}

// checkWhitelist tests case-insensitive membership of the recipient.
func checkWhitelist(p *types.Policy, draft *types.TxDraft) *Violation {
	for _, addr := range p.Params.Addresses {
		if strings.EqualFold(addr, draft.To) {
			return nil
		}
	}
	return &Violation{
		PolicyID: p.ID,
		Type:     p.Type,
		Reason:   fmt.Sprintf("recipient %s is not on the whitelist", draft.To),
	}
}

// checkMultiSig fails any amount above the threshold. Transfers that large
// go through the guardian co-approval path, not direct signing.
func checkMultiSig(p *types.Policy, draft *types.TxDraft) *Violation {
	if draft.Value.Cmp(p.Params.Threshold) <= 0 {
		return nil
	}
	return &Violation{
		PolicyID: p.ID,
		Type:     p.Type,
		Reason: fmt.Sprintf("amount %s exceeds multi-sig threshold %s and requires guardian co-approval",
			draft.Value, p.Params.Threshold),
	}
}

// validateParams schema-validates the typed parameter payload per type.
func (e *Engine) validateParams(ctx context.Context, ownerID uuid.UUID, policyType string, params types.PolicyParams) error {
	switch policyType {
	case types.PolicyTypeDailyLimit:
		if params.Limit == nil || params.Limit.Sign() <= 0 {
			return apperrors.InvalidParams("daily_limit requires limit > 0")
		}
		if params.Token == "" {
			return apperrors.InvalidParams("daily_limit requires a token")
		}

	case types.PolicyTypeWhitelist:
		if len(params.Addresses) == 0 {
			return apperrors.InvalidParams("whitelist requires at least one address")
		}
		for _, addr := range params.Addresses {
			if !chains.ValidAddress(addr) {
				return apperrors.InvalidParams(fmt.Sprintf("invalid whitelist address %q", addr))
			}
		}

	case types.PolicyTypeMultiSig:
		if params.Threshold == nil || params.Threshold.Sign() <= 0 {
			return apperrors.InvalidParams("multi_sig requires threshold > 0")
		}
		if len(params.GuardianIDs) == 0 {
			return apperrors.InvalidParams("multi_sig requires at least one guardian")
		}
		for _, gid := range params.GuardianIDs {
			g, err := e.guardians.GetByID(ctx, gid)
			if err != nil {
				return err
			}
			if g == nil || !g.Active || g.OwnerID != ownerID {
				return apperrors.InvalidParams(fmt.Sprintf("guardian %s is not an active guardian of this owner", gid))
			}
		}

	default:
		return apperrors.InvalidPolicyType(policyType)
	}
	return nil
}
