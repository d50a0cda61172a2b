package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/domain"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
	now     func() time.Time
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l, now: time.Now}
}

func (h *PaymentHandler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req payments.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreatePayment", zap.Error(err))
		h.writeError(w, r, http.StatusBadRequest, "Malformed JSON request", nil)
		return
	}

	payment, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPaymentResponse(*payment))
}

func (h *PaymentHandler) GetByOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.pathInt64(w, r, "orderId")
	if !ok {
		return
	}

	list, err := h.service.GetByOrderID(r.Context(), orderID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponses(list))
}

func (h *PaymentHandler) GetByUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathInt64(w, r, "userId")
	if !ok {
		return
	}

	list, err := h.service.GetByUserID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponses(list))
}

// GetByStatusesHandler accepts repeated (?statuses=A&statuses=B) and
// comma-separated (?statuses=A,B) forms.
func (h *PaymentHandler) GetByStatusesHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["statuses"]
	if len(raw) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "Required parameter 'statuses' is not present", nil)
		return
	}

	var statuses []domain.PaymentStatus
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := domain.ParsePaymentStatus(part)
			if err != nil {
				h.writeError(w, r, http.StatusBadRequest, "Invalid value '"+part+"' for parameter 'statuses'", nil)
				return
			}
			statuses = append(statuses, status)
		}
	}

	list, err := h.service.GetByStatuses(r.Context(), statuses)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentResponses(list))
}

func (h *PaymentHandler) GetTotalSumHandler(w http.ResponseWriter, r *http.Request) {
	from, ok := h.queryTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := h.queryTime(w, r, "to")
	if !ok {
		return
	}

	sum, err := h.service.GetTotalBetween(r.Context(), from, to)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTotalSumResponse(sum))
}

func (h *PaymentHandler) pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid value '"+raw+"' for parameter '"+name+"'", nil)
		return 0, false
	}
	return value, true
}

func (h *PaymentHandler) queryTime(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		h.writeError(w, r, http.StatusBadRequest, "Required parameter '"+name+"' is not present", nil)
		return time.Time{}, false
	}
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid value '"+raw+"' for parameter '"+name+"'", nil)
		return time.Time{}, false
	}
	return value, true
}

func (h *PaymentHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *payments.ValidationError
	if errors.As(err, &ve) {
		h.writeError(w, r, http.StatusBadRequest, "Validation failed", ve.Fields)
		return
	}
	h.logger.Error("Payment request failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.writeError(w, r, http.StatusInternalServerError, "Internal server error", nil)
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, details []string) {
	h.writeJSON(w, status, ApiError{
		Timestamp: h.now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		Errors:    details,
	})
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
