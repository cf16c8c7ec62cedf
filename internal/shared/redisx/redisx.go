package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/shared/logging"
)

func Open(addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		lg := logging.Component("redis")
		lg.Warn().Err(err).Str("addr", addr).Msg("redis not reachable yet")
	}
	return rdb
}
