package out

import (
	"context"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

// ProfileField names a single-column lookup used by the resolver strategies.
type ProfileField string

const (
	ProfileFieldID       ProfileField = "id"
	ProfileFieldUsername ProfileField = "username"
	ProfileFieldOwnerRef ProfileField = "owner_ref"
)

// ProfileMatch is one lookup strategy: field = value, ordered by
// is_primary desc, is_premium desc, created_at asc, limit 1.
type ProfileMatch struct {
	Field ProfileField
	Value string
}

// ProfileRepository defines the outbound port for profile persistence.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)

	// FindFirst returns ErrNotFound when nothing matches.
	FindFirst(ctx context.Context, match ProfileMatch) (*domain.Profile, error)

	// ListByOwner orders by is_primary desc, created_at asc.
	ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Profile, error)

	// AccountPremium reports the account-level premium flag for an owner.
	AccountPremium(ctx context.Context, ownerRef string) (bool, error)

	// ClaimUsername sets the username if the profile is still at expectedVersion.
	// Returns ErrDuplicate on a username collision and ErrConflict on a version mismatch.
	ClaimUsername(ctx context.Context, profileID uuid.UUID, username string, expectedVersion int64) (*domain.Profile, error)

	GetTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error)
}
