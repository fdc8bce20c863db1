package persistence

import (
	"context"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// EventAdapter persists tap logs and analytics events, and doubles as a direct
// out.EventPublisher when no stream broker is configured.
type EventAdapter struct {
	db *sqlx.DB
}

// NewEventAdapter creates a new EventAdapter.
func NewEventAdapter(db *sqlx.DB) *EventAdapter {
	return &EventAdapter{db: db}
}

var (
	_ out.TapLogRepository    = (*EventAdapter)(nil)
	_ out.AnalyticsRepository = (*EventAdapter)(nil)
	_ out.EventPublisher      = (*EventAdapter)(nil)
)

type tapLogRow struct {
	ID         uuid.UUID     `db:"id"`
	CardUID    string        `db:"card_uid"`
	Event      string        `db:"event"`
	ProfileID  uuid.NullUUID `db:"profile_id"`
	OccurredAt time.Time     `db:"occurred_at"`
}

func newTapLogRow(l *domain.CardTapLog) tapLogRow {
	row := tapLogRow{ID: l.ID, CardUID: l.CardUID, Event: string(l.Event), OccurredAt: l.OccurredAt}
	if l.ProfileID != nil {
		row.ProfileID = uuid.NullUUID{UUID: *l.ProfileID, Valid: true}
	}
	return row
}

type analyticsRow struct {
	ID         uuid.UUID `db:"id"`
	ProfileID  uuid.UUID `db:"profile_id"`
	EventType  string    `db:"event_type"`
	VisitID    string    `db:"visit_id"`
	OccurredAt time.Time `db:"occurred_at"`
}

func newAnalyticsRow(e *domain.AnalyticsEvent) analyticsRow {
	return analyticsRow{ID: e.ID, ProfileID: e.ProfileID, EventType: string(e.Type), VisitID: e.VisitID, OccurredAt: e.OccurredAt}
}

// Ids come from the producer, so redelivered messages insert nothing.
const (
	insertTapLog = `
		INSERT INTO card_tap_logs (id, card_uid, event, profile_id, occurred_at)
		VALUES (:id, :card_uid, :event, :profile_id, :occurred_at)
		ON CONFLICT (id) DO NOTHING`

	insertAnalytics = `
		INSERT INTO analytics_events (id, profile_id, event_type, visit_id, occurred_at)
		VALUES (:id, :profile_id, :event_type, :visit_id, :occurred_at)
		ON CONFLICT (id) DO NOTHING`
)

func (a *EventAdapter) InsertTap(ctx context.Context, l *domain.CardTapLog) error {
	_, err := a.db.NamedExecContext(ctx, insertTapLog, newTapLogRow(l))
	return err
}

func (a *EventAdapter) InsertTapBatch(ctx context.Context, logs []*domain.CardTapLog) error {
	if len(logs) == 0 {
		return nil
	}
	rows := make([]tapLogRow, len(logs))
	for i, l := range logs {
		rows[i] = newTapLogRow(l)
	}
	_, err := a.db.NamedExecContext(ctx, insertTapLog, rows)
	return err
}

func (a *EventAdapter) InsertAnalytics(ctx context.Context, e *domain.AnalyticsEvent) error {
	_, err := a.db.NamedExecContext(ctx, insertAnalytics, newAnalyticsRow(e))
	return err
}

func (a *EventAdapter) InsertAnalyticsBatch(ctx context.Context, events []*domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]analyticsRow, len(events))
	for i, e := range events {
		rows[i] = newAnalyticsRow(e)
	}
	_, err := a.db.NamedExecContext(ctx, insertAnalytics, rows)
	return err
}

// PublishTap writes straight to the table.
func (a *EventAdapter) PublishTap(ctx context.Context, l *domain.CardTapLog) error {
	return a.InsertTap(ctx, l)
}

// PublishAnalytics writes straight to the table.
func (a *EventAdapter) PublishAnalytics(ctx context.Context, e *domain.AnalyticsEvent) error {
	return a.InsertAnalytics(ctx, e)
}

// Rollup recomputes whole days, so running it twice yields the same rows.
func (a *EventAdapter) Rollup(ctx context.Context, since time.Time) (int64, error) {
	query := `
		INSERT INTO profile_daily_stats (profile_id, day, views, clicks, updated_at)
		SELECT profile_id,
		       (occurred_at AT TIME ZONE 'UTC')::date AS day,
		       COUNT(*) FILTER (WHERE event_type = 'view'),
		       COUNT(*) FILTER (WHERE event_type LIKE 'click\_%'),
		       now()
		FROM analytics_events
		WHERE occurred_at >= $1
		GROUP BY profile_id, day
		ON CONFLICT (profile_id, day) DO UPDATE
		SET views = EXCLUDED.views, clicks = EXCLUDED.clicks, updated_at = now()`

	result, err := a.db.ExecContext(ctx, query, since)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (a *EventAdapter) DailyStats(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]*domain.ProfileDailyStats, error) {
	var rows []struct {
		ProfileID uuid.UUID `db:"profile_id"`
		Day       time.Time `db:"day"`
		Views     int64     `db:"views"`
		Clicks    int64     `db:"clicks"`
	}
	query := `
		SELECT profile_id, day, views, clicks
		FROM profile_daily_stats
		WHERE profile_id = $1 AND day BETWEEN $2::date AND $3::date
		ORDER BY day`

	if err := a.db.SelectContext(ctx, &rows, query, profileID, from, to); err != nil {
		return nil, err
	}
	stats := make([]*domain.ProfileDailyStats, len(rows))
	for i, r := range rows {
		stats[i] = &domain.ProfileDailyStats{ProfileID: r.ProfileID, Day: r.Day, Views: r.Views, Clicks: r.Clicks}
	}
	return stats, nil
}
