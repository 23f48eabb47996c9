package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"correlation-service/models"
)

// CorrelationEventProducer publishes correlation outcomes for the analytics
// dashboard. Publishing is best-effort: the webhook ack never depends on it.
type CorrelationEventProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewCorrelationEventProducer(brokers []string, topic string, logger *zap.Logger) *CorrelationEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &CorrelationEventProducer{writer: w, logger: logger}
}

func (p *CorrelationEventProducer) Send(ctx context.Context, event models.CorrelationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		// Keyed by intent so all outcomes for one payment land in order.
		Key:   []byte(event.PaymentIntentID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish correlation event",
			zap.String("payment_intent_id", event.PaymentIntentID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("correlation event published",
		zap.String("type", event.Type),
		zap.String("payment_intent_id", event.PaymentIntentID),
		zap.String("outcome", event.Outcome),
	)
	return nil
}

func (p *CorrelationEventProducer) Close() {
	_ = p.writer.Close()
	p.logger.Info("kafka producer closed")
}
