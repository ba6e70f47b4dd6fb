package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tour_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PubSub cross-instance channel fan-out
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// PSubscribe call handler for every message on channels matching pattern
	// until ctx is done, returns once the subscription is confirmed
	PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) PubSub {
	return &RedisPubSub{client: client}
}

// Publish json encode message and publish it to channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	var data []byte
	switch m := message.(type) {
	case []byte:
		data = m
	default:
		var err error
		if data, err = json.Marshal(message); err != nil {
			return err
		}
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// PSubscribe pattern subscribe, messages are handled on one goroutine in arrival order
func (r *RedisPubSub) PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub := r.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler(m.Channel, []byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Info("redis subscription closed", zap.String("pattern", pattern))
				return
			}
		}
	}()
	return nil
}
