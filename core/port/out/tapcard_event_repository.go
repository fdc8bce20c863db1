package out

import (
	"context"
	"time"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

// EventPublisher is the outbox for best-effort event writes.
type EventPublisher interface {
	PublishTap(ctx context.Context, log *domain.CardTapLog) error
	PublishAnalytics(ctx context.Context, event *domain.AnalyticsEvent) error
}

// TapLogRepository persists card audit entries.
type TapLogRepository interface {
	InsertTap(ctx context.Context, log *domain.CardTapLog) error
	InsertTapBatch(ctx context.Context, logs []*domain.CardTapLog) error
}

// AnalyticsRepository persists analytics events and their daily rollup.
type AnalyticsRepository interface {
	InsertAnalytics(ctx context.Context, event *domain.AnalyticsEvent) error
	InsertAnalyticsBatch(ctx context.Context, events []*domain.AnalyticsEvent) error

	// Rollup recomputes profile_daily_stats for every day touched since the given time.
	Rollup(ctx context.Context, since time.Time) (int64, error)

	DailyStats(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]*domain.ProfileDailyStats, error)
}
