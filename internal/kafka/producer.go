package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// Producer publishes fired-alert events. Publishing is best effort: the poll
// loop logs failures and moves on.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the alerts topic
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

// PublishAlert publishes an ALERT_TRIGGERED event keyed by symbol.
func (p *Producer) PublishAlert(ctx context.Context, event models.AlertEvent) error {
	event.EventType = "ALERT_TRIGGERED"
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Symbol),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
