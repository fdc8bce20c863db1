// Package messaging carries best-effort events over Redis Streams.
package messaging

import (
	"context"
	"fmt"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamTap       = "tapcard:tap"
	StreamAnalytics = "tapcard:analytics"

	defaultMaxLen = 1_000_000
)

// Streams lists every stream the worker consumes.
var Streams = []string{StreamTap, StreamAnalytics}

// RedisEventPublisher implements out.EventPublisher using Redis Streams.
type RedisEventPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisEventPublisher creates a publisher; streams are trimmed approximately to maxLen.
func NewRedisEventPublisher(client *redis.Client, maxLen int64) *RedisEventPublisher {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &RedisEventPublisher{client: client, maxLen: maxLen}
}

var _ out.EventPublisher = (*RedisEventPublisher)(nil)

func (p *RedisEventPublisher) PublishTap(ctx context.Context, log *domain.CardTapLog) error {
	return p.publish(ctx, StreamTap, log)
}

func (p *RedisEventPublisher) PublishAnalytics(ctx context.Context, event *domain.AnalyticsEvent) error {
	return p.publish(ctx, StreamAnalytics, event)
}

func (p *RedisEventPublisher) publish(ctx context.Context, stream string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", stream, err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Err()
}

// Backlog reports the length of each stream, for readiness output.
func (p *RedisEventPublisher) Backlog(ctx context.Context) (map[string]int64, error) {
	res := make(map[string]int64, len(Streams))
	for _, s := range Streams {
		n, err := p.client.XLen(ctx, s).Result()
		if err != nil {
			return nil, err
		}
		res[s] = n
	}
	return res, nil
}
