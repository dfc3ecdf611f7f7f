package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured
const DefaultChannel = "agentdash:events"

// RedisRelay mirrors bus events onto a Redis channel so another process can follow them
type RedisRelay struct {
	client  *redis.Client
	channel string
	logger  *logrus.Entry
}

// NewRedisRelay creates a relay on channel
func NewRedisRelay(client *redis.Client, channel string, logger *logrus.Entry) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		logger:  logger.WithField("component", "event-relay"),
	}
}

// Publish sends one event to the channel
func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Forward publishes every bus event until ctx is done. Publish errors are logged and skipped.
func (r *RedisRelay) Forward(ctx context.Context, bus *Bus) {
	r.logger.Infof("Forwarding events to redis channel %s", r.channel)
	for ev := range bus.Subscribe(ctx, 0) {
		if err := r.Publish(ctx, ev); err != nil {
			r.logger.Warnf("Relay dropped %s for %s: %v", ev.Type, ev.TaskID, err)
		}
	}
	r.logger.Info("Event forwarding stopped")
}

// Listen calls handle for every event received on the channel until ctx is done
func (r *RedisRelay) Listen(ctx context.Context, handle func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Infof("Listening on redis channel %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warnf("Ignoring malformed event: %v", err)
				continue
			}
			handle(ev)
		}
	}
}
