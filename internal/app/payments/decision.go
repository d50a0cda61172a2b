package payments

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"payment-service/internal/domain"
	"payment-service/internal/infrastructure/random"
	"payment-service/internal/metrics"
	"payment-service/internal/repository/payments_repo"
)

// DecisionPolicy turns a random sample into a payment status.
//
// Even samples succeed, odd ones fail, and an unreachable oracle counts as a
// failed payment. A success is downgraded when the order already has one.
type DecisionPolicy struct {
	random  random.NumberSource
	repo    payments_repo.PaymentRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewDecisionPolicy(source random.NumberSource, repo payments_repo.PaymentRepository, m *metrics.Metrics, logger *zap.Logger) *DecisionPolicy {
	return &DecisionPolicy{
		random:  source,
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// Decide only returns an error when the existing-success lookup fails.
func (p *DecisionPolicy) Decide(ctx context.Context, orderID int64) (domain.PaymentStatus, error) {
	n, err := p.random.GetRandomNumber(ctx)
	if err != nil {
		p.metrics.OracleFailure()
		p.logger.Warn("Random number service unavailable, falling back to FAILED",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return domain.PaymentStatusFailed, nil
	}

	if n%2 != 0 {
		return domain.PaymentStatusFailed, nil
	}

	exists, err := p.repo.ExistsSuccessForOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to check existing success for order %d: %w", orderID, err)
	}
	if exists {
		p.logger.Info("Order already has a successful payment, forcing FAILED", zap.Int64("order_id", orderID))
		return domain.PaymentStatusFailed, nil
	}
	return domain.PaymentStatusSuccess, nil
}
