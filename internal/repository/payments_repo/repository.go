package payments_repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
)

// PaymentRepository is the only storage surface the payment flow needs.
// List results carry no ordering guarantee.
type PaymentRepository interface {
	// FindByEventID returns nil, nil when no payment carries eventID.
	FindByEventID(ctx context.Context, eventID string) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) ([]domain.Payment, error)
	FindByUserID(ctx context.Context, userID int64) ([]domain.Payment, error)
	FindByStatusIn(ctx context.Context, statuses []domain.PaymentStatus) ([]domain.Payment, error)
	ExistsSuccessForOrder(ctx context.Context, orderID int64) (bool, error)
	// SumSuccessfulAmountBetween sums SUCCESS amounts with from <= timestamp <= to.
	// An empty match yields exactly zero.
	SumSuccessfulAmountBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	// Save assigns an ID when payment.ID is empty. Unique violations surface as
	// domain.ErrDuplicateEventID or domain.ErrOrderAlreadyPaid.
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
}
