package domain

import "errors"

var (
	ErrInvalidPayment       = errors.New("invalid payment")
	ErrUnknownPaymentStatus = errors.New("unknown payment status")
	ErrDuplicateEventID     = errors.New("payment with this event id already exists")
	ErrOrderAlreadyPaid     = errors.New("order already has a successful payment")
	ErrRandomUnavailable    = errors.New("random number service unavailable")
)
