package limiter

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter shared by every process pointing at the same server.
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedis(addr string, password string, db int, prefix string, max int, window time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Redis{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) Close() error {
	return l.client.Close()
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX keeps the first attempt's expiry so the window does not slide forward.
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.max, nil
}
