package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// topicSpecs builds create requests for the service's topics. Partitions cap
// the consumer's useful worker count, since work is sharded by partition.
func topicSpecs(topics []string, partitions int) []kafka.TopicConfig {
	if partitions < 1 {
		partitions = 1
	}
	specs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	return specs
}

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, specs []kafka.TopicConfig, logger *zap.Logger) error {
	if len(brokerURLs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	for _, spec := range specs {
		err := controllerConn.CreateTopics(spec)
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			logger.Debug("Kafka topic already exists", zap.String("topic", spec.Topic))
		case err != nil:
			return fmt.Errorf("failed to create kafka topic %s: %w", spec.Topic, err)
		default:
			logger.Info("Kafka topic created",
				zap.String("topic", spec.Topic),
				zap.Int("partitions", spec.NumPartitions),
			)
		}
	}
	return nil
}
