package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"notify-service/internal/idem"
	"notify-service/internal/push"
	"notify-service/internal/shared/logging"
)

// ErrDecode marks a message whose payload is not a notification request.
var ErrDecode = errors.New("kafka: undecodable message")

type Handler func(ctx context.Context, topic string, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	handle Handler
}

func NewConsumer(brokers []string, groupID, topic string, h Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			CommitInterval: time.Second,
		}),
		handle: h,
	}
}

// Run fetches until ctx is done. Messages are committed after the handler
// returns, whatever its result: a failed batch is reported, not replayed.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()

	lg := logging.Component("kafka")
	cfg := c.reader.Config()
	lg.Info().Str("group", cfg.GroupID).Str("topic", cfg.Topic).Strs("brokers", cfg.Brokers).Msg("consumer started")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				lg.Info().Msg("consumer shutting down")
				return nil
			}
			lg.Warn().Err(err).Msg("fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if c.handle != nil {
			if e := c.handle(ctx, m.Topic, m.Key, m.Value); e != nil {
				lg.Warn().Err(e).Str("key", string(m.Key)).Int64("offset", m.Offset).Msg("handler failed")
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			lg.Warn().Err(err).Msg("commit failed")
		}
	}
}

// SplitBrokers turns a comma separated bootstrap list into broker addresses.
func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// DedupWindow is how long a request key is remembered.
const DedupWindow = 24 * time.Hour

// NotifyHandler runs every decoded request through the dispatch pipeline.
// When seen is set, a keyed message redelivered within DedupWindow is
// skipped. A broken dedup store never blocks dispatch.
func NotifyHandler(svc push.Service, seen idem.Store) Handler {
	return func(ctx context.Context, topic string, key, value []byte) error {
		var req push.Request
		if err := json.Unmarshal(value, &req); err != nil {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if seen != nil && len(key) > 0 {
			fresh, err := seen.PutNX(ctx, topic+":"+string(key), DedupWindow)
			switch {
			case err != nil:
				lg := logging.Component("kafka")
				lg.Warn().Err(err).Msg("dedup store unavailable")
			case !fresh:
				lg := logging.Component("kafka")
				lg.Info().Str("key", string(key)).Msg("duplicate request skipped")
				return nil
			}
		}
		sum, err := svc.Notify(ctx, req)
		if err != nil {
			return fmt.Errorf("notify (key=%s): %w", key, err)
		}
		lg := logging.Component("kafka")
		lg.Debug().Str("batch_id", sum.BatchID).Int("results", len(sum.Results)).Msg("request dispatched")
		return nil
	}
}
