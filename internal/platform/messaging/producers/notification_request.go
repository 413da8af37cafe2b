package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mortgage-deed-signing/internal/config"
	"github.com/mortgage-deed-signing/internal/logger"
	"github.com/segmentio/kafka-go"
)

// NotificationRequestProducer hands notification requests to the transport topic.
type NotificationRequestProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewNotificationRequestProducer ensures the notification topic exists and opens
// a synchronous writer. Writes block until every in-sync replica acknowledged,
// so a returned nil means the outbox row may be marked processed.
func NewNotificationRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationRequestProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return newNotificationRequestProducer(logger, writer, cfg.NotificationTopic), nil
}

func newNotificationRequestProducer(logger *slog.Logger, writer KafkaWriter, topic string) *NotificationRequestProducer {
	return &NotificationRequestProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Publish writes value as JSON. Keys are deed ids so all requests of one deed
// land on the same partition in order.
func (p *NotificationRequestProducer) Publish(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal notification request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}
	if id := logger.CorrelationID(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: CorrelationHeader, Value: []byte(id)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification request",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification request",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *NotificationRequestProducer) Close() error {
	p.logger.Info("Closing notification request producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
