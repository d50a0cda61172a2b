package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
)

// CreatePaymentRequest is shared by the HTTP and Kafka adapters. Pointer
// fields distinguish "missing" from zero.
type CreatePaymentRequest struct {
	EventID       string           `json:"eventId,omitempty"`
	OrderID       *int64           `json:"orderId" validate:"required"`
	UserID        *int64           `json:"userId" validate:"required"`
	Status        *string          `json:"status,omitempty" validate:"omitempty,oneof=SUCCESS FAILED"`
	PaymentAmount *decimal.Decimal `json:"paymentAmount" validate:"required,positive"`
}

func CreateRequestFromEvent(e domain.OrderCreatedEvent) CreatePaymentRequest {
	return CreatePaymentRequest{
		EventID:       e.EventID,
		OrderID:       e.OrderID,
		UserID:        e.UserID,
		PaymentAmount: e.PaymentAmount,
	}
}

type TotalSum struct {
	Total decimal.Decimal
	From  time.Time
	To    time.Time
}
