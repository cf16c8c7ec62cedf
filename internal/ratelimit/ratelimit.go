package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/shared/httpx"
	"notify-service/internal/shared/logging"
)

// Counter increments a windowed counter and returns its new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct{ rdb *redis.Client }

func NewRedisCounter(rdb *redis.Client) Counter { return &redisCounter{rdb: rdb} }

func (c *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Limiter is a fixed-window limiter keyed per caller.
type Limiter struct {
	c Counter
}

func New(c Counter) *Limiter { return &Limiter{c: c} }

func (l *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	n, err := l.c.Incr(ctx, "rl:"+key, window)
	if err != nil {
		return false, 0, err
	}
	return n <= limit, n, nil
}

// LimitHTTP rejects requests over limit per window. A limit of zero or less
// disables the check. Limiter outages let the request through.
func (l *Limiter) LimitHTTP(limit int64, window time.Duration, keyFn func(*http.Request) (string, error), next http.Handler) http.Handler {
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := keyFn(r)
		if err != nil || key == "" {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrUnauthorized, "missing_user")
			return
		}
		ok, n, e := l.Allow(r.Context(), key, limit, window)
		if e != nil {
			lg := logging.Component("ratelimit")
			lg.Warn().Err(e).Msg("limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			httpx.WriteError(w, http.StatusTooManyRequests,
				fmt.Errorf("rate limit exceeded (count=%d, limit=%d)", n, limit),
				"rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}
