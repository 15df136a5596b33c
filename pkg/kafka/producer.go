package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

var compressions = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Producer publishes sync results.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, errors.New("topic is required")
	}
	compression, ok := compressions[config.Compression]
	if !ok && config.Compression != "" && config.Compression != "none" {
		return nil, fmt.Errorf("unknown compression %q", config.Compression)
	}

	// no writer topic: every message names its own
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.BatchTimeout,
		MaxAttempts:            config.MaxAttempts,
		WriteTimeout:           config.WriteTimeout,
		Compression:            compression,
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer, logger: logger, topic: config.Topic}, nil
}

// PublishResult publishes result keyed like its task, so results of a record stay ordered.
func (p *Producer) PublishResult(ctx context.Context, result *SyncResult) error {
	return p.PublishToTopic(ctx, p.topic, result.Key(), result, HeadersFor(ctx, result.TenantID, result.Entity))
}

// PublishToTopic publishes v as JSON.
func (p *Producer) PublishToTopic(ctx context.Context, topic, key string, v any, headers MessageHeaders) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers.ToKafkaHeaders(),
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Sync result producer closed")
	return nil
}
