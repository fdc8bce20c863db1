// Package worker drains the event streams into Postgres and runs the
// periodic analytics jobs.
package worker

import (
	"errors"
	"fmt"
	"time"

	"tapcard_server/adapter/out/messaging"
	"tapcard_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Message is one decoded stream entry.
type Message struct {
	ID         string
	Stream     string
	Tap        *domain.CardTapLog
	Event      *domain.AnalyticsEvent
	ReceivedAt time.Time
}

var errMissingID = errors.New("event has no id")

// Decode parses a stream payload according to the stream it came from.
func Decode(stream, id string, data []byte) (*Message, error) {
	msg := &Message{ID: id, Stream: stream, ReceivedAt: time.Now()}

	switch stream {
	case messaging.StreamTap:
		var l domain.CardTapLog
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("decode tap log %s: %w", id, err)
		}
		if l.ID == uuid.Nil {
			return nil, errMissingID
		}
		if !domain.IsCardUID(l.CardUID) {
			return nil, fmt.Errorf("tap log %s: invalid card uid %q", id, l.CardUID)
		}
		msg.Tap = &l

	case messaging.StreamAnalytics:
		var e domain.AnalyticsEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode analytics event %s: %w", id, err)
		}
		if e.ID == uuid.Nil {
			return nil, errMissingID
		}
		if e.Type != domain.AnalyticsView && !e.Type.IsClick() {
			return nil, fmt.Errorf("analytics event %s: unknown type %q", id, e.Type)
		}
		msg.Event = &e

	default:
		return nil, fmt.Errorf("unknown stream %q", stream)
	}
	return msg, nil
}
