package database

import (
	"context"
	"fmt"
	"time"

	"tour_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry build a writer for k.Topic and dial the first
// reachable broker to confirm the cluster is up
func NewKafkaWriterWithRetry(ctx context.Context, k KafkaConnection) (*kafka.Writer, error) {
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		for _, broker := range k.Brokers {
			var conn *kafka.Conn
			conn, err = kafka.DialContext(ctx, "tcp", broker)
			if err == nil {
				_ = conn.Close()
				logger.Log.Info("kafka reachable", zap.String("broker", broker), zap.Int("attempt", attempt))
				return &kafka.Writer{
					Addr:                   kafka.TCP(k.Brokers...),
					Topic:                  k.Topic,
					Balancer:               &kafka.Hash{},
					AllowAutoTopicCreation: true,
				}, nil
			}
		}

		logger.Log.Warn("kafka not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max", k.RetryCount),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval)
	}

	return nil, fmt.Errorf("kafka writer for %s not ready after %d attempts: %w", k.Topic, k.RetryCount, err)
}
