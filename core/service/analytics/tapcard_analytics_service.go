// Package analytics records profile clicks and rolls events up per day.
package analytics

import (
	"context"
	"strings"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/core/port/out"
	"tapcard_server/core/service/outbox"
	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxTargetLen = 48

type Service struct {
	repo     out.AnalyticsRepository
	recorder *outbox.Recorder
}

func NewService(repo out.AnalyticsRepository, recorder *outbox.Recorder) *Service {
	return &Service{
		repo:     repo,
		recorder: recorder,
	}
}

var _ in.AnalyticsService = (*Service)(nil)

// ClickTarget turns free-form target names into the suffix of click_<target>.
func ClickTarget(raw string) string {
	t := slug.Make(raw)
	if len(t) > maxTargetLen {
		t = strings.TrimRight(t[:maxTargetLen], "-")
	}
	return t
}

// RecordClick is best-effort: only an unusable target is reported back.
func (s *Service) RecordClick(ctx context.Context, profileID uuid.UUID, target, visitID string) error {
	t := ClickTarget(target)
	if t == "" {
		return apperr.InvalidInput("target", "is required")
	}
	s.recorder.Analytics(ctx, domain.NewAnalyticsEvent(profileID, domain.ClickEvent(t), visitID))
	return nil
}

// Rollup folds raw events since the given time into profile_daily_stats.
func (s *Service) Rollup(ctx context.Context, since time.Time) (int64, error) {
	start := time.Now()
	n, err := s.repo.Rollup(ctx, since.UTC().Truncate(24*time.Hour))
	if err != nil {
		return 0, err
	}
	logger.WithDuration(time.Since(start)).Info("[AnalyticsService.Rollup] %d daily rows refreshed", n)
	return n, nil
}
