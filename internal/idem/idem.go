// Package idem remembers which requests were already handled.
package idem

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store interface {
	// PutNX records key and reports whether it was new.
	PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisStore struct{ r *redis.Client }

func New(rdb *redis.Client) Store {
	return &redisStore{r: rdb}
}

func (s *redisStore) PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.r.SetNX(ctx, "idem:"+key, "1", ttl).Result()
}
