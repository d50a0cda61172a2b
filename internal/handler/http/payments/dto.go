package payments_http

import (
	"encoding/json"
	"time"

	"payment-service/internal/app/payments"
	"payment-service/internal/domain"
)

type PaymentResponse struct {
	ID            string      `json:"id"`
	OrderID       int64       `json:"orderId"`
	UserID        int64       `json:"userId"`
	Status        string      `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
	PaymentAmount json.Number `json:"paymentAmount"`
	EventID       *string     `json:"eventId"`
}

type TotalSumResponse struct {
	Total json.Number `json:"total"`
	From  time.Time   `json:"from"`
	To    time.Time   `json:"to"`
}

// ApiError is the body of every non-2xx response.
type ApiError struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	Errors    []string  `json:"errors,omitempty"`
}

func toPaymentResponse(p domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		Status:        string(p.Status),
		Timestamp:     p.Timestamp,
		PaymentAmount: json.Number(p.PaymentAmount.String()),
	}
	if p.EventID != "" {
		eventID := p.EventID
		resp.EventID = &eventID
	}
	return resp
}

func toPaymentResponses(list []domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

func toTotalSumResponse(sum *payments.TotalSum) TotalSumResponse {
	return TotalSumResponse{
		Total: json.Number(sum.Total.String()),
		From:  sum.From,
		To:    sum.To,
	}
}
