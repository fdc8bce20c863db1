package out

import (
	"context"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

// CardRepository defines the outbound port for physical card persistence.
type CardRepository interface {
	// GetByUID returns ErrNotFound when no card has the uid.
	GetByUID(ctx context.Context, uid string) (*domain.PhysicalCard, error)

	// Activate links the card to profileID only if it is not ACTIVATED and still at expectedVersion.
	// Returns ErrConflict when zero rows match.
	Activate(ctx context.Context, uid string, profileID uuid.UUID, expectedVersion int64) (*domain.PhysicalCard, error)

	// Delink resets the card to UNACTIVATED only if it is still linked at expectedVersion.
	Delink(ctx context.Context, uid string, expectedVersion int64) (*domain.PhysicalCard, error)

	// InsertBatch inserts UNACTIVATED cards, skipping existing uids. Returns the uids actually inserted.
	InsertBatch(ctx context.Context, uids []string) ([]string, error)

	ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]*domain.PhysicalCard, error)
}
