package in

import (
	"context"
	"time"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

type ProfileService interface {
	ListMine(ctx context.Context, ownerRef string) ([]*domain.Profile, error)
	ClaimUsername(ctx context.Context, ownerRef string, req *ClaimUsernameRequest) (*domain.Profile, error)
	Stats(ctx context.Context, ownerRef string, profileID uuid.UUID, days int) ([]*domain.ProfileDailyStats, error)
}

type ClaimUsernameRequest struct {
	ProfileID uuid.UUID `json:"-"`
	Username  string    `json:"username" validate:"required,min=3,max=32"`
	Version   int64     `json:"version" validate:"min=0"`
}

type AnalyticsService interface {
	RecordClick(ctx context.Context, profileID uuid.UUID, target, visitID string) error
	Rollup(ctx context.Context, since time.Time) (int64, error)
}
