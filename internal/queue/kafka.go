package queue

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by event id so one event's alerts stay on
// one partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, l *models.AlertLog) error {
	value, err := encode(l)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(l.EventID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(l.Severity)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
