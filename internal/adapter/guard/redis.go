// Package guard holds the re-entrancy lock in Redis so that every API and
// keeper process shares it.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domguard "yield-agreement-backend/internal/domain/guard"
	"yield-agreement-backend/pkg/id"
)

const DefaultKey = "guard:agreements"

// releaseScript deletes the key only while it still carries our token, so a
// holder whose lock expired cannot release somebody else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	rdb *redis.Client
	key string
	ttl time.Duration
	log *slog.Logger
}

var _ domguard.Guard = (*Redis)(nil)

// NewRedis builds a guard on key. ttl bounds how long a crashed holder can
// keep the lock.
func NewRedis(rdb *redis.Client, key string, ttl time.Duration, log *slog.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl, log: log}
}

func (g *Redis) Enter(ctx context.Context) (func(), error) {
	token := id.NewID32()
	ok, err := g.rdb.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("guard store unavailable: %w", err)
	}
	if !ok {
		return nil, domguard.ErrReentrantCall
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.rdb, []string{g.key}, token).Err(); err != nil {
			g.log.Warn("guard release failed", "key", g.key, "err", err)
		}
	}, nil
}
