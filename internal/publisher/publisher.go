package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"payment-service/internal/domain"
	kafka_infra "payment-service/internal/infrastructure/kafka"
	"payment-service/internal/metrics"
)

var ErrClosed = errors.New("publisher closed")

type Config struct {
	QueueSize      int
	Workers        int
	EnqueueTimeout time.Duration
}

// Publisher sends outcome events through a bounded queue drained by a fixed
// set of workers. Delivery is best effort: failures are logged and counted,
// never retried or reported to the caller.
type Publisher struct {
	producer kafka_infra.Producer
	queue    chan domain.PaymentEvent
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(producer kafka_infra.Producer, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Publisher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	p := &Publisher{
		producer: producer,
		queue:    make(chan domain.PaymentEvent, cfg.QueueSize),
		timeout:  cfg.EnqueueTimeout,
		metrics:  m,
		logger:   logger,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

// Publish enqueues event, waiting at most EnqueueTimeout for room.
func (p *Publisher) Publish(event domain.PaymentEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(event, ErrClosed)
		return
	}

	select {
	case p.queue <- event:
		return
	default:
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case p.queue <- event:
	case <-timer.C:
		p.drop(event, errors.New("publish queue full"))
	}
}

// Close stops accepting events, waits for queued ones to be written and then
// closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.producer.Close()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for event := range p.queue {
		p.send(event)
	}
}

func (p *Publisher) send(event domain.PaymentEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.metrics.Publish(metrics.PublishFailed)
		p.logger.Error("Failed to marshal payment event", zap.String("payment_id", event.PaymentID), zap.Error(err))
		return
	}

	key := strconv.FormatInt(event.OrderID, 10)
	if err := p.producer.Produce(context.Background(), key, payload); err != nil {
		p.metrics.Publish(metrics.PublishFailed)
		p.logger.Error("Failed to publish payment event",
			zap.Int64("order_id", event.OrderID),
			zap.String("payment_id", event.PaymentID),
			zap.String("status", string(event.Status)),
			zap.Error(err),
		)
		return
	}

	p.metrics.Publish(metrics.PublishSent)
	p.logger.Debug("Payment event published",
		zap.Int64("order_id", event.OrderID),
		zap.String("payment_id", event.PaymentID),
		zap.String("status", string(event.Status)),
	)
}

func (p *Publisher) drop(event domain.PaymentEvent, reason error) {
	p.metrics.Publish(metrics.PublishDropped)
	p.logger.Error("Dropping payment event",
		zap.Int64("order_id", event.OrderID),
		zap.String("payment_id", event.PaymentID),
		zap.Error(reason),
	)
}
