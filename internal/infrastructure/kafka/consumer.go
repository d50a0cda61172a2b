package kafka_infra

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payment-service/internal/metrics"
)

// MessageHandler processes one message. A non-nil error asks for redelivery.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

// Consumer fans messages out to Workers goroutines by partition, so a
// partition is always handled by the same worker, in offset order. A failing
// message is retried up to MaxAttempts times, then logged and committed.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	cfg     ConsumerConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, m *metrics.Metrics, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		Logger:         kafka.LoggerFunc(l.Sugar().Debugf),
		ErrorLogger:    kafka.LoggerFunc(l.Sugar().Errorf),
	})
	return newConsumer(reader, cfg, handler, m, l)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, handler MessageHandler, m *metrics.Metrics, l *zap.Logger) *Consumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Consumer{
		reader:  reader,
		handler: handler,
		cfg:     cfg,
		metrics: m,
		logger:  l,
	}
}

// Consume blocks until ctx is cancelled. In-flight messages finish their
// current attempt before it returns.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer starting message consumption",
		zap.String("topic", c.cfg.Topic),
		zap.String("group_id", c.cfg.GroupID),
		zap.Int("workers", c.cfg.Workers),
	)

	shards := make([]chan kafka.Message, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for msg := range in {
				if ctx.Err() != nil {
					continue
				}
				c.process(ctx, msg)
			}
		}(shards[i])
	}

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
		c.logger.Info("Kafka consumer workers stopped", zap.String("topic", c.cfg.Topic))
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, io.EOF) {
				return err
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		select {
		case shards[msg.Partition%len(shards)] <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.String("key", string(msg.Key)),
	}

	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, msg)
		if err == nil {
			c.metrics.Consumed("processed")
			break
		}
		if ctx.Err() != nil {
			// left uncommitted; the group redelivers it after rebalance
			c.logger.Warn("Shutdown during message handling, leaving offset uncommitted", append(fields, zap.Error(err))...)
			return
		}
		if attempt >= c.cfg.MaxAttempts {
			c.metrics.Consumed("exhausted")
			c.logger.Error("Giving up on Kafka message after max attempts, committing offset",
				append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			break
		}
		c.logger.Warn("Error handling Kafka message, retrying",
			append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		if !sleepCtx(ctx, c.cfg.Backoff) {
			return
		}
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
		c.logger.Error("Failed to commit offset for Kafka message", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("Kafka message offset committed", fields...)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
