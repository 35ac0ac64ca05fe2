package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"tasklist/cmd/internal/model"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces feed channels; the list id is appended.
const DefaultChannelPrefix = "tasklist:events:"

// RedisBroker publishes events to Redis pub/sub and delivers every event
// received on the feed channels into a local Hub, so subscribers connected
// to any instance see appends made by any other.
type RedisBroker struct {
	client redis.UniversalClient
	hub    *Hub
	log    *slog.Logger
	prefix string
}

// RedisOption configures a RedisBroker.
type RedisOption func(*RedisBroker) error

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *RedisBroker) error {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			return errors.New("realtime: empty channel prefix")
		}
		b.prefix = prefix
		return nil
	}
}

// NewRedisBroker constructs a broker delivering into hub.
func NewRedisBroker(client redis.UniversalClient, hub *Hub, log *slog.Logger, opts ...RedisOption) (*RedisBroker, error) {
	if client == nil || hub == nil {
		return nil, errors.New("realtime: nil redis client or hub")
	}
	if log == nil {
		log = slog.Default()
	}
	b := &RedisBroker{client: client, hub: hub, log: log, prefix: DefaultChannelPrefix}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Publish sends e on its list's channel.
func (b *RedisBroker) Publish(ctx context.Context, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+e.ListID, payload).Err()
}

// Run relays feed channel messages into the hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer func() { _ = sub.Close() }()

	// wait for the subscription confirmation so publishes after Run starts are not missed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.Info("feed.broker.subscribed", "pattern", b.prefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.log.Warn("feed.broker.decode.fail", "channel", msg.Channel, "err", err)
				continue
			}
			if e.ListID == "" {
				e.ListID = strings.TrimPrefix(msg.Channel, b.prefix)
			}
			b.hub.Deliver(e)
		}
	}
}
