package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("notification not found")

type Repository interface {
	Push(ctx context.Context, n Notification) error
	List(ctx context.Context, userID string, limit int64) ([]Notification, error)
	MarkRead(ctx context.Context, userID, notifID string) error
}

const maxInbox = 200

type redisRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRepository(rdb *redis.Client) Repository {
	return &redisRepo{rdb: rdb, ttl: 30 * 24 * time.Hour}
}

func key(userID string) string { return fmt.Sprintf("notif:%s", userID) }

func (r *redisRepo) Push(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, key(n.UserID), b)
	pipe.LTrim(ctx, key(n.UserID), 0, maxInbox-1)
	pipe.Expire(ctx, key(n.UserID), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepo) List(ctx context.Context, userID string, limit int64) ([]Notification, error) {
	if limit <= 0 || limit > maxInbox {
		limit = 50
	}
	vals, err := r.rdb.LRange(ctx, key(userID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(vals))
	for _, v := range vals {
		var n Notification
		if json.Unmarshal([]byte(v), &n) == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkRead rewrites the matching entry in place.
func (r *redisRepo) MarkRead(ctx context.Context, userID, notifID string) error {
	vals, err := r.rdb.LRange(ctx, key(userID), 0, maxInbox-1).Result()
	if err != nil {
		return err
	}
	for i, v := range vals {
		var n Notification
		if json.Unmarshal([]byte(v), &n) != nil || n.ID != notifID {
			continue
		}
		if n.Read {
			return nil
		}
		n.Read = true
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return r.rdb.LSet(ctx, key(userID), int64(i), b).Err()
	}
	return ErrNotFound
}
