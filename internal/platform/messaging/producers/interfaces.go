package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// CorrelationHeader carries the correlation id of the request that caused a message.
const CorrelationHeader = "X-Correlation-ID"

// MessagePublisher publishes JSON messages to a primary topic.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value any) error
	Close() error
}

// DeadLetterPublisher parks consumed messages that can never be processed.
type DeadLetterPublisher interface {
	Park(ctx context.Context, original kafka.Message, reason string) error
	Close() error
}

// KafkaWriter is the part of *kafka.Writer the producers use.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ KafkaWriter         = (*kafka.Writer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ MessagePublisher    = (*NotificationRequestProducer)(nil)
)
