package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// ParsePaymentStatus accepts only the exact upper-case names.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(raw)
	if !status.Valid() {
		return "", ErrUnknownPaymentStatus
	}
	return status, nil
}

// Payment is immutable once saved.
type Payment struct {
	ID            string          `db:"id"`
	EventID       string          `db:"event_id"`
	OrderID       int64           `db:"order_id"`
	UserID        int64           `db:"user_id"`
	Status        PaymentStatus   `db:"status"`
	Timestamp     time.Time       `db:"timestamp"`
	PaymentAmount decimal.Decimal `db:"payment_amount"`
}
