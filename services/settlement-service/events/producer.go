package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"go.uber.org/zap"
)

// RunEventPublisher emits bulk run outcome events.
type RunEventPublisher interface {
	PublishRunEvent(ctx context.Context, evt models.RunEvent) error
}

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes run events to a Kafka topic, keyed by account id so one
// account's events stay ordered within a partition.
type Producer struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	logger.Info("Kafka run event producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return NewProducerWithWriter(w, topic, logger)
}

func NewProducerWithWriter(w MessageWriter, topic string, logger *zap.Logger) *Producer {
	return &Producer{writer: w, topic: topic, logger: logger}
}

func (p *Producer) PublishRunEvent(ctx context.Context, evt models.RunEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.EventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.AccountID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.EventType, p.topic, err)
	}
	p.logger.Debug("Run event published",
		zap.String("event_type", evt.EventType),
		zap.String("bulk_run_id", evt.BulkRunID.String()),
	)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
