// Package guardian manages the trusted recovery contacts of a wallet owner.
package guardian

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/storage"
)

// MaxGuardians caps the active guardian set per owner.
const MaxGuardians = 5

// Registry manages guardian membership. Removal is always a soft removal
// so recovery requests whose snapshot references the guardian keep working.
type Registry struct {
	guardians *storage.GuardianRepository
}

// NewRegistry creates a new guardian registry
func NewRegistry(guardians *storage.GuardianRepository) *Registry {
	return &Registry{guardians: guardians}
}

// AddGuardian registers a new guardian for the owner. The active set is
// capped at MaxGuardians.
func (r *Registry) AddGuardian(ctx context.Context, ownerID uuid.UUID, name, contact, relationship string) (*types.Guardian, error) {
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	if name == "" {
		return nil, apperrors.InvalidParams("guardian name is required")
	}
	if contact == "" {
		return nil, apperrors.InvalidParams("guardian contact is required")
	}

	count, err := r.guardians.CountActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if count >= MaxGuardians {
		return nil, apperrors.MaxGuardiansReached(MaxGuardians)
	}

	guardian := &types.Guardian{
		OwnerID:      ownerID,
		Name:         name,
		Contact:      contact,
		Relationship: strings.TrimSpace(relationship),
	}
	if err := r.guardians.Create(ctx, guardian); err != nil {
		return nil, err
	}
	return guardian, nil
}

// RemoveGuardian soft-removes a guardian. Ownership is checked at the
// storage layer; removing another owner's guardian fails as not found.
func (r *Registry) RemoveGuardian(ctx context.Context, ownerID, guardianID uuid.UUID) error {
	return r.guardians.SoftRemove(ctx, ownerID, guardianID)
}

// ListGuardians returns the owner's active guardians
func (r *Registry) ListGuardians(ctx context.Context, ownerID uuid.UUID) ([]*types.Guardian, error) {
	return r.guardians.GetActiveByOwner(ctx, ownerID)
}
