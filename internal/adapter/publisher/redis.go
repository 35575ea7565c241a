// Package publisher relays committed agreement events to a Redis stream read
// by the external indexer.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"yield-agreement-backend/internal/domain/event"
)

const DefaultStream = "agreement-events"

type RedisStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

var _ event.Publisher = (*RedisStream)(nil)

// NewRedisStream publishes to stream, trimming it to roughly maxLen entries
// when maxLen is positive.
func NewRedisStream(rdb *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (p *RedisStream) Publish(ctx context.Context, records []event.Record) error {
	if len(records) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, r := range records {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes of %s: %w", r.EventID, err)
		}
		args := &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]any{
				"event_id":     r.EventID,
				"agreement_id": r.AgreementID,
				"type":         r.Type,
				"attributes":   string(attrs),
				"occurred_at":  r.OccurredAt,
			},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
