package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TapEvent tags a card audit entry.
type TapEvent string

const (
	TapEventTapped    TapEvent = "TAPPED"
	TapEventActivated TapEvent = "ACTIVATED"
	TapEventDelinked  TapEvent = "DELINKED"
)

// CardTapLog is an append-only card audit entry.
type CardTapLog struct {
	ID         uuid.UUID  `json:"id"`
	CardUID    string     `json:"card_uid"`
	Event      TapEvent   `json:"event"`
	ProfileID  *uuid.UUID `json:"profile_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewCardTapLog stamps a new entry with an id and the current time.
func NewCardTapLog(cardUID string, event TapEvent, profileID *uuid.UUID) *CardTapLog {
	return &CardTapLog{
		ID:         uuid.New(),
		CardUID:    cardUID,
		Event:      event,
		ProfileID:  profileID,
		OccurredAt: time.Now().UTC(),
	}
}

// AnalyticsType is "view" or "click_<target>".
type AnalyticsType string

const (
	AnalyticsView AnalyticsType = "view"

	clickPrefix = "click_"
)

// ClickEvent builds the analytics type for a click on target.
func ClickEvent(target string) AnalyticsType {
	return AnalyticsType(clickPrefix + target)
}

func (t AnalyticsType) IsClick() bool {
	return strings.HasPrefix(string(t), clickPrefix) && len(t) > len(clickPrefix)
}

// AnalyticsEvent is an append-only, best-effort profile event.
type AnalyticsEvent struct {
	ID         uuid.UUID     `json:"id"`
	ProfileID  uuid.UUID     `json:"profile_id"`
	Type       AnalyticsType `json:"type"`
	VisitID    string        `json:"visit_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewAnalyticsEvent stamps a new event with an id and the current time.
func NewAnalyticsEvent(profileID uuid.UUID, typ AnalyticsType, visitID string) *AnalyticsEvent {
	return &AnalyticsEvent{
		ID:         uuid.New(),
		ProfileID:  profileID,
		Type:       typ,
		VisitID:    visitID,
		OccurredAt: time.Now().UTC(),
	}
}

// ProfileDailyStats is the per-day rollup of analytics events.
type ProfileDailyStats struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Day       time.Time `json:"day"`
	Views     int64     `json:"views"`
	Clicks    int64     `json:"clicks"`
}
