package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Turn is the trimmed transcript entry the AI fallback context is built from.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// HistoryCache keeps a short TTL'd copy of recent turns in Redis so the AI
// fallback can build its context window without re-reading the full session
// document.
type HistoryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewHistoryCache creates a cache over the given client.
func NewHistoryCache(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *HistoryCache {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if tracer == nil {
		tracer = otel.Tracer("smritistudio.internal.session.history")
	}
	return &HistoryCache{redis: client, ttl: ttl, tracer: tracer}
}

// Save replaces the cached turns for a session.
func (c *HistoryCache) Save(ctx context.Context, sessionID string, turns []Turn) error {
	ctx, span := c.tracer.Start(ctx, "session.save_history")
	defer span.End()

	data, err := json.Marshal(turns)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(sessionID), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist history: %w", err)
	}
	return nil
}

// Load returns the cached turns, or nil when nothing is cached.
func (c *HistoryCache) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	ctx, span := c.tracer.Start(ctx, "session.load_history")
	defer span.End()

	data, err := c.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load history: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode history: %w", err)
	}
	return turns, nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}
