package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

// Message is a consumed message.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. A returned error triggers a retry.
type Handler func(ctx context.Context, msg *Message) error

// RetryConfig defines retry behaviour. MaxAttempts counts the first try.
type RetryConfig struct {
	MaxAttempts     int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string
	MessageTimeout  time.Duration
	Retry           RetryConfig
}

// ConsumerConfigFrom maps the application Kafka and worker settings.
func ConsumerConfigFrom(k config.KafkaConfig, w config.WorkerConfig, topics ...string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:         k.Brokers,
		GroupID:         k.GroupID,
		Topics:          topics,
		AutoOffsetReset: k.AutoOffsetReset,
		MessageTimeout:  w.MessageTimeout,
		Retry: RetryConfig{
			MaxAttempts:  w.MaxRetries,
			RetryBackoff: w.RetryBackoff,
		},
	}
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	Consumed     atomic.Int64
	Processed    atomic.Int64
	Retried      atomic.Int64
	DeadLettered atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a consumer group and dispatches messages by topic.
// Messages that keep failing are copied to "<topic>.dlq" and committed.
type Consumer struct {
	reader     ReaderInterface
	deadLetter Publisher
	config     ConsumerConfig
	logger     logging.Logger

	handlers map[string]Handler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *ConsumerMetrics
}

// NewConsumer creates a Consumer. deadLetter may be nil, in which case
// exhausted messages are logged and dropped.
func NewConsumer(cfg ConsumerConfig, deadLetter Publisher, log logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	start := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        time.Second,
		StartOffset:    start,
		SessionTimeout: 30 * time.Second,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	})
	return NewConsumerWithReader(reader, deadLetter, cfg, log), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r ReaderInterface, deadLetter Publisher, cfg ConsumerConfig, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.RetryBackoff <= 0 {
		cfg.Retry.RetryBackoff = time.Second
	}
	if cfg.Retry.MaxRetryBackoff <= 0 {
		cfg.Retry.MaxRetryBackoff = 30 * time.Second
	}
	return &Consumer{
		reader:     r,
		deadLetter: deadLetter,
		config:     cfg,
		logger:     log.Named("kafka-consumer"),
		handlers:   make(map[string]Handler),
		metrics:    &ConsumerMetrics{},
	}
}

// Subscribe registers handler for topic.
func (c *Consumer) Subscribe(topic string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

// Start runs the consume loop in the background until ctx is cancelled or
// Close is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)
	c.logger.Info("Kafka consumer started", logging.String("group", c.config.GroupID))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.metrics.Consumed.Add(1)

		msg := fromKafkaMessage(m)
		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
		} else if err := c.process(ctx, msg, handler); err != nil {
			// Only cancellation lands here; leave the offset uncommitted.
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

// process runs handler with retries. It returns an error only when ctx was
// cancelled; exhausted messages are dead-lettered. Validation errors are not
// retried.
func (c *Consumer) process(ctx context.Context, msg *Message, handler Handler) error {
	backoff := c.config.Retry.RetryBackoff
	var err error
	for attempt := 1; attempt <= c.config.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.Retried.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.config.Retry.MaxRetryBackoff {
				backoff = c.config.Retry.MaxRetryBackoff
			}
		}
		if err = c.invoke(ctx, msg, handler); err == nil {
			c.metrics.Processed.Add(1)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Handler failed",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Int("attempt", attempt),
			logging.Err(err))
		if errors.IsValidation(err) {
			break
		}
	}

	c.logger.Error("Message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))
	c.sendToDeadLetter(ctx, msg, err)
	return nil
}

func (c *Consumer) invoke(ctx context.Context, msg *Message, handler Handler) error {
	if c.config.MessageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.MessageTimeout)
		defer cancel()
	}
	return handler(ctx, msg)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg *Message, cause error) {
	if c.deadLetter == nil {
		return
	}
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["original_topic"] = msg.Topic
	headers["original_offset"] = strconv.FormatInt(msg.Offset, 10)
	headers["error_message"] = cause.Error()

	dl := &ProducerMessage{
		Topic:   DeadLetterTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.deadLetter.Publish(ctx, dl); err != nil {
		c.logger.Error("Failed to send to dead letter topic", logging.String("topic", dl.Topic), logging.Err(err))
		return
	}
	c.metrics.DeadLettered.Add(1)
}

// Stats returns processed, retried and dead-lettered counts.
func (c *Consumer) Stats() (processed, retried, deadLettered int64) {
	return c.metrics.Processed.Load(), c.metrics.Retried.Load(), c.metrics.DeadLettered.Load()
}

// Close stops the loop and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return c.reader.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.Int64("consumed", c.metrics.Consumed.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeValidation, "invalid auto offset reset")
	}
	return nil
}
