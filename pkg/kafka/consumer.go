package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

// fetchBackoff spaces out fetch retries while the brokers are unreachable.
const fetchBackoff = time.Second

// MessageHandler handles one sync task. The offset is committed whatever it returns.
type MessageHandler func(ctx context.Context, msg *ReceivedMessage) error

type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Headers   MessageHeaders

	Task *SyncTask
}

// Consumer reads sync tasks of one consumer group. Tasks are handled one at a
// time so the tasks of a record never race each other.
type Consumer struct {
	reader *kafka.Reader
	logger ectologger.Logger
	config ConsumerConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(config ConsumerConfig, logger ectologger.Logger) (*Consumer, error) {
	switch {
	case len(config.Brokers) == 0:
		return nil, errors.New("at least one broker is required")
	case config.Topic == "":
		return nil, errors.New("topic is required")
	case config.GroupID == "":
		return nil, errors.New("group ID is required")
	}

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           config.Brokers,
			Topic:             config.Topic,
			GroupID:           config.GroupID,
			MinBytes:          config.MinBytes,
			MaxBytes:          config.MaxBytes,
			MaxWait:           config.MaxWait,
			CommitInterval:    config.CommitInterval,
			StartOffset:       config.StartOffset,
			SessionTimeout:    config.SessionTimeout,
			HeartbeatInterval: config.HeartbeatInterval,
		}),
		logger: logger,
		config: config,
	}, nil
}

// Start consumes in the background until Stop is called or ctx ends.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return errors.New("consumer is already running")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.run(ctx, handler)
	}()

	c.logger.WithFields(map[string]any{
		"topic": c.config.Topic,
		"group": c.config.GroupID,
	}).Info("Sync task consumer started")
	return nil
}

// Stop lets the in-flight task finish, then closes the reader.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return nil
	}

	c.cancel()
	<-c.done
	c.done = nil

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	c.logger.Info("Sync task consumer stopped")
	return nil
}

func (c *Consumer) run(ctx context.Context, handler MessageHandler) {
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("Failed to fetch sync task")
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchBackoff):
			}
			continue
		}

		c.handle(ctx, msg, handler)

		// failures are reported on the result topic, retrying would only repeat them
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Errorf("Failed to commit offset %d", msg.Offset)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) {
	logger := c.logger.WithFields(map[string]any{
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"key":       string(msg.Key),
	})

	received, err := parseMessage(msg)
	if err != nil {
		logger.WithError(err).Error("Dropping malformed sync task")
		return
	}

	ctx = received.Headers.ContextWithTrace(ctx)
	if err := handler(ctx, received); err != nil {
		logger.WithContext(ctx).WithError(err).Error("Sync task handler failed")
	}
}

func parseMessage(msg kafka.Message) (*ReceivedMessage, error) {
	task, err := ParseSyncTask(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid sync task: %w", err)
	}
	return &ReceivedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Headers:   ExtractHeaders(msg.Headers),
		Task:      task,
	}, nil
}
