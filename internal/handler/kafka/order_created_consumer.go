package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/domain"
	kafka_infra "payment-service/internal/infrastructure/kafka"
	"payment-service/internal/metrics"
)

// OrderCreatedMessageHandler turns order-created events into payment creates.
// Messages that can never succeed (bad JSON, invalid fields) are logged and
// acknowledged; other failures go back to the consumer for redelivery.
func OrderCreatedMessageHandler(paymentService payments.PaymentService, m *metrics.Metrics, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var orderCreatedEvent domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &orderCreatedEvent); err != nil {
			m.Consumed("invalid")
			logger.Error("Failed to unmarshal Kafka message value to OrderCreatedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		logger.Info("Processing OrderCreatedEvent",
			zap.String("event_id", orderCreatedEvent.EventID),
			zap.Int64p("order_id", orderCreatedEvent.OrderID),
			zap.Int64p("user_id", orderCreatedEvent.UserID),
		)

		payment, err := paymentService.Create(ctx, payments.CreateRequestFromEvent(orderCreatedEvent))
		if err != nil {
			if errors.Is(err, domain.ErrInvalidPayment) {
				m.Consumed("invalid")
				logger.Error("Rejected invalid OrderCreatedEvent",
					zap.String("event_id", orderCreatedEvent.EventID),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				return nil
			}
			return fmt.Errorf("failed to process order created event %q: %w", orderCreatedEvent.EventID, err)
		}

		logger.Info("Successfully processed order created event",
			zap.String("event_id", orderCreatedEvent.EventID),
			zap.String("payment_id", payment.ID),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}
}
