package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/inkleaf/backend/internal/config"
)

// RedisFeed implements Feed on top of redis pub/sub so change notifications
// reach every server instance, not just the one that performed the write.
type RedisFeed struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewRedisFeed connects to redis and verifies the connection with a ping.
func NewRedisFeed(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisFeed, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisFeed{client: client, logger: logger}, nil
}

// Publish marshals the event and publishes it to the channel.
func (f *RedisFeed) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Subscribe registers for events on the provided channels. Events that fail to
// decode are logged and skipped so one malformed payload cannot wedge the feed.
func (f *RedisFeed) Subscribe(ctx context.Context, channels ...string) (<-chan Event, func(), error) {
	ps := f.client.Subscribe(ctx, channels...)
	ch := make(chan Event, 256)

	go pumpEvents(ch, ps.Channel(), f.logger)

	cancel := func() {
		_ = ps.Close()
	}
	return ch, cancel, nil
}

// pumpEvents decodes redis payloads onto dst. Sends never block: a subscriber
// that stops draining misses events instead of pinning this goroutine after
// its subscription is closed.
func pumpEvents(dst chan Event, src <-chan *goredis.Message, logger *slog.Logger) {
	defer close(dst)
	for msg := range src {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Warn("drop malformed feed event", "channel", msg.Channel, "error", err)
			continue
		}
		select {
		case dst <- event:
		default:
			logger.Warn("drop feed event for slow subscriber", "channel", msg.Channel)
		}
	}
}

// Close terminates the redis connection.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}

var _ Feed = (*RedisFeed)(nil)
