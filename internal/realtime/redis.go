package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisBroker relays events through a Redis pub/sub channel so that every
// instance's Hub reaches its own websocket clients. Redis delivery is
// at-most-once, matching the hub's own guarantee.
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
}

// envelope is the Redis message body: the target channel and the frame
// exactly as it will be written to websocket clients.
type envelope struct {
	Channel string          `json:"channel"`
	Frame   json.RawMessage `json:"frame"`
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisBroker creates a broker publishing on the given Redis channel and
// delivering received events into hub.
func NewRedisBroker(client *redis.Client, channel string, hub *Hub, log *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, hub: hub, log: log}
}

// Publish sends the event to every instance. If Redis is unreachable the
// event still reaches this instance's subscribers.
func (b *RedisBroker) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := encodeEnvelope(channel, NewEventFrame(channel, event, payload))
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		b.log.Warn("redis publish failed, delivering locally only", "channel", channel, "event", event, "error", err)
		frame, _ := decodeEnvelope(body)
		return b.hub.deliver(channel, frame.Frame)
	}

	return nil
}

// Run subscribes to the Redis channel and forwards every envelope into the
// local hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to redis channel %s: %w", b.channel, err)
	}
	b.log.Info("redis relay subscribed", "channel", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("redis relay stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.log.Warn("discarding malformed relay message", "error", err)
				continue
			}
			if err := b.hub.deliver(env.Channel, env.Frame); err != nil {
				b.log.Warn("relay delivery dropped", "channel", env.Channel, "error", err)
			}
		}
	}
}

func encodeEnvelope(channel string, frame Frame) ([]byte, error) {
	data, err := frame.JSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", frame.Event, err)
	}
	body, err := json.Marshal(envelope{Channel: channel, Frame: data})
	if err != nil {
		return nil, fmt.Errorf("encoding relay envelope: %w", err)
	}
	return body, nil
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, err
	}
	if env.Channel == "" || len(env.Frame) == 0 {
		return env, fmt.Errorf("relay envelope missing channel or frame")
	}
	return env, nil
}
