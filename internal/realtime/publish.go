package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/push"
)

// Publisher sends a payload to the change channel.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type redisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) Publisher {
	return &redisPublisher{rdb: rdb, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// SummaryHook publishes completed batches to the feed channel.
func SummaryHook(p Publisher) push.Hook {
	return func(ctx context.Context, s *push.Summary) error {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return p.Publish(ctx, b)
	}
}
