package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tapcard_server/pkg/apperr"
	"tapcard_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuditStream is the Redis stream audit events are appended to.
const AuditStream = "audit:events"

// AuditEvent records a mutating owner or operator action.
type AuditEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Action      string    `json:"action"`
	ResourceID  string    `json:"resource_id,omitempty"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	IP          string    `json:"ip"`
	StatusCode  int       `json:"status_code"`
	Duration    int64     `json:"duration_ms"`
	RequestID   string    `json:"request_id"`
	Success     bool      `json:"success"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// AuditSink stores audit events.
type AuditSink interface {
	Append(ctx context.Context, event *AuditEvent) error
}

// RedisAuditSink appends events to a capped Redis stream.
type RedisAuditSink struct {
	redis  *redis.Client
	maxLen int64
}

func NewRedisAuditSink(client *redis.Client) *RedisAuditSink {
	return &RedisAuditSink{redis: client, maxLen: 100000}
}

func (s *RedisAuditSink) Append(ctx context.Context, event *AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: AuditStream,
		Values: map[string]any{"event": string(data)},
		MaxLen: s.maxLen,
		Approx: true,
	}).Err()
}

// AuditActions maps "METHOD:/path/prefix" to an action name. Longest prefix wins.
var AuditActions = map[string]string{
	"POST:/api/v1/cards/":      "card_activate",
	"DELETE:/api/v1/cards/":    "card_delink",
	"PUT:/api/v1/profiles/":    "username_claim",
	"DELETE:/api/v1/exchanges": "exchange_delete",
	"POST:/admin/cards":        "cards_provision",
}

// Auditor emits audit events asynchronously.
type Auditor struct {
	sink    AuditSink
	actions map[string]string
	wg      sync.WaitGroup
}

func NewAuditor(sink AuditSink, actions map[string]string) *Auditor {
	if actions == nil {
		actions = AuditActions
	}
	return &Auditor{sink: sink, actions: actions}
}

func (a *Auditor) actionFor(method, path string) string {
	key := method + ":" + path
	best, action := 0, ""
	for prefix, act := range a.actions {
		if strings.HasPrefix(key, prefix) && len(prefix) > best {
			best, action = len(prefix), act
		}
	}
	return action
}

// Middleware records audited routes after they have been handled.
func (a *Auditor) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a == nil || a.sink == nil {
			return c.Next()
		}

		start := time.Now()
		action := a.actionFor(c.Method(), c.Path())
		err := c.Next()
		if action == "" {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.GetHTTPStatus(err)
		}

		requestID, _ := c.Locals("request_id").(string)
		event := &AuditEvent{
			ID:         uuid.NewString(),
			Timestamp:  time.Now().UTC(),
			Action:     action,
			ResourceID: c.Params("uid", c.Params("id")),
			Method:     c.Method(),
			Path:       c.Path(),
			IP:         c.IP(),
			StatusCode: status,
			Duration:   time.Since(start).Milliseconds(),
			RequestID:  requestID,
			Success:    err == nil && status < 400,
		}
		if ref, ok := GetUserID(c); ok {
			event.UserID = ref
		}
		if sid, ok := c.Locals(localSessionID).(string); ok {
			event.SessionID = sid
		}
		if err != nil {
			event.ErrorDetail = err.Error()
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if logErr := a.sink.Append(ctx, event); logErr != nil {
				logger.WithError(logErr).Warn("[Auditor] failed to append %s", event.Action)
			}
		}()
		return err
	}
}

// Flush waits for pending audit writes.
func (a *Auditor) Flush() {
	if a != nil {
		a.wg.Wait()
	}
}
