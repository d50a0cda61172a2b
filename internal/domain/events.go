package domain

import "github.com/shopspring/decimal"

// OrderCreatedEvent is received from the orders topic. Pointer fields let
// validation tell a missing value from a zero one.
type OrderCreatedEvent struct {
	EventID       string           `json:"eventId"`
	OrderID       *int64           `json:"orderId"`
	UserID        *int64           `json:"userId"`
	PaymentAmount *decimal.Decimal `json:"paymentAmount"`
}

// PaymentEvent is published once per created payment.
type PaymentEvent struct {
	EventID   string        `json:"eventId"`
	OrderID   int64         `json:"orderId"`
	PaymentID string        `json:"paymentId"`
	Status    PaymentStatus `json:"status"`
}
