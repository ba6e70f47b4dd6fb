package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// EventPublisher downstream sink of persisted message events
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.MessageEvent) error
	Close() error
}

// KafkaWriter the part of *kafka.Writer the publisher uses
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaEventPublisher struct {
	writer KafkaWriter
}

// NewKafkaEventPublisher publish events keyed by tour name so a room stays on one partition
func NewKafkaEventPublisher(w KafkaWriter) EventPublisher {
	return &kafkaEventPublisher{writer: w}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, ev domain.MessageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Message.TourName),
		Value: body,
		Time:  ev.At,
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *kafkaEventPublisher) Close() error {
	return p.writer.Close()
}

type rabbitEventPublisher struct {
	rabbit     database.RabbitRepo
	exchange   string
	routingKey string
}

// NewRabbitEventPublisher publish persistent json messages to exchange
func NewRabbitEventPublisher(rabbit database.RabbitRepo, exchange, routingKey string) EventPublisher {
	return &rabbitEventPublisher{rabbit: rabbit, exchange: exchange, routingKey: routingKey}
}

// DeclareEventExchange declare the durable topic exchange events go to
func DeclareEventExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

func (p *rabbitEventPublisher) Publish(_ context.Context, ev domain.MessageEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rabbit.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         ev.Type,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *rabbitEventPublisher) Close() error {
	if ch := p.rabbit.GetRabbit(); ch != nil {
		return ch.Close()
	}
	return nil
}

type nopEventPublisher struct{}

// NewNopEventPublisher discard every event
func NewNopEventPublisher() EventPublisher {
	return nopEventPublisher{}
}

func (nopEventPublisher) Publish(context.Context, domain.MessageEvent) error { return nil }
func (nopEventPublisher) Close() error                                       { return nil }
