package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Default topics of the sync pipeline.
const (
	DefaultSyncTopic   = "clover.sync-tasks"
	DefaultResultTopic = "clover.sync-results"
	DefaultGroupID     = "clover"
)

// StartOffset values for a consumer group without a committed offset.
const (
	FirstOffset = kafka.FirstOffset
	LastOffset  = kafka.LastOffset
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	MinBytes int
	MaxBytes int
	MaxWait  time.Duration

	CommitInterval time.Duration
	StartOffset    int64

	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// DefaultConsumerConfig reads sync tasks from the oldest uncommitted offset. Commits
// are synchronous so a restart does not replay the task that was just handled.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		Topic:             DefaultSyncTopic,
		GroupID:           DefaultGroupID,
		MinBytes:          1,
		MaxBytes:          1 << 20,
		MaxWait:           time.Second,
		StartOffset:       FirstOffset,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	}
}

type ProducerConfig struct {
	Brokers []string
	Topic   string

	BatchSize    int
	BatchTimeout time.Duration
	// RequiredAcks is 0 for none, 1 for the leader and -1 for all replicas.
	RequiredAcks int
	MaxAttempts  int
	WriteTimeout time.Duration
	// Compression is none, gzip, snappy, lz4 or zstd.
	Compression string
}

// DefaultProducerConfig flushes small batches quickly since every result answers a
// waiting CRM record.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        DefaultResultTopic,
		BatchSize:    10,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: -1,
		MaxAttempts:  5,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}
