// Package analytics publishes closed viewing sessions to Kafka for
// downstream reporting.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// Publisher ships session records somewhere outside the ledger
type Publisher interface {
	Publish(ctx context.Context, record storage.SessionRecord) error
	Close() error
}

// Noop drops every record
type Noop struct{}

func (Noop) Publish(context.Context, storage.SessionRecord) error { return nil }
func (Noop) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per session, keyed by video id
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// New returns a Kafka publisher when enabled, otherwise Noop
func New(cfg config.KafkaConfig, logger zerolog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("analytics.kafka.brokers is required when kafka is enabled")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.Acks),
		WriteTimeout: writeTimeout,
		Async:        false,
	}
	return newKafkaPublisher(w, cfg.Topic, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "analytics").Str("topic", topic).Logger(),
	}
}

// Publish writes record synchronously
func (p *KafkaPublisher) Publish(ctx context.Context, record storage.SessionRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(record.VideoID),
		Value: value,
		Time:  record.EndedAt,
		Headers: []kafka.Header{
			{Key: "theme", Value: []byte(record.Theme)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish session %s: %w", record.ID, err)
	}

	p.logger.Debug().Str("session_id", record.ID).Msg("Published session record")
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
