package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects the Redis instance shared by idempotency, the guard and the
// event stream.
type Options struct {
	Addr     string
	Password string
	DB       int
}

func OpenRedis(ctx context.Context, opts Options) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
