package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mortgage-deed-signing/internal/config"
)

var ErrDLQDisabled = errors.New("dlq producer not initialized")

// ReasonHeader carries the reason a message was parked.
const ReasonHeader = "X-DLQ-Reason"

// DLQProducer parks receipts the dispatcher cannot apply, together with where
// they were read from so they can be replayed.
type DLQProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
	now    func() time.Time
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty.
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, DLQ producer disabled")
		return nil, nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for dlq producer: %w", err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	return newDLQProducer(logger, &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}, cfg.DLQTopic), nil
}

func newDLQProducer(logger *slog.Logger, writer KafkaWriter, topic string) *DLQProducer {
	return &DLQProducer{logger: logger, writer: writer, topic: topic, now: time.Now}
}

// ParkedMessage is the DLQ record for one unprocessable message.
type ParkedMessage struct {
	SourceTopic string    `json:"source_topic"`
	Partition   int       `json:"partition"`
	Offset      int64     `json:"offset"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Reason      string    `json:"reason"`
	ParkedAt    time.Time `json:"parked_at"`
}

// Park writes original to the DLQ. The original headers are kept, so the
// correlation id follows the message.
func (p *DLQProducer) Park(ctx context.Context, original kafka.Message, reason string) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	value, err := json.Marshal(ParkedMessage{
		SourceTopic: original.Topic,
		Partition:   original.Partition,
		Offset:      original.Offset,
		Key:         string(original.Key),
		Value:       string(original.Value),
		Reason:      reason,
		ParkedAt:    p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	headers := make([]kafka.Header, 0, len(original.Headers)+1)
	headers = append(headers, original.Headers...)
	headers = append(headers, kafka.Header{Key: ReasonHeader, Value: []byte(reason)})

	log := p.logger.With("topic", p.topic, "source_topic", original.Topic, "offset", original.Offset)
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: original.Key, Value: value, Headers: headers}); err != nil {
		log.Error("Failed to park message in DLQ", "error", err)
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.topic, err)
	}

	log.Warn("Parked message in DLQ", "reason", reason)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
