package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisEventBus reparte eventos entre instancias usando pub/sub de Redis.
type RedisEventBus struct {
	client redisPubSubClient
	prefix string
	logger *zap.Logger
}

func NewRedisEventBus(client *redis.Client, logger *zap.Logger) *RedisEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEventBus{client: client, prefix: "chat:events:", logger: logger}
}

func (b *RedisEventBus) channel(deviceID string) string {
	return b.prefix + deviceID
}

func (b *RedisEventBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.DeviceID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *RedisEventBus) Subscribe(ctx context.Context, deviceID string) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(deviceID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("discarding malformed event", zap.String("device_id", deviceID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					b.logger.Warn("dropping event for slow subscriber", zap.String("device_id", deviceID))
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}
