package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"payment-service/internal/domain"
	"payment-service/internal/metrics"
	"payment-service/internal/repository/payments_repo"
)

type PaymentService interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) ([]domain.Payment, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Payment, error)
	GetByStatuses(ctx context.Context, statuses []domain.PaymentStatus) ([]domain.Payment, error)
	GetTotalBetween(ctx context.Context, from, to time.Time) (*TotalSum, error)
}

// EventPublisher hands outcome events to the broker without blocking on it.
type EventPublisher interface {
	Publish(event domain.PaymentEvent)
}

type Option func(*paymentService)

func WithClock(now func() time.Time) Option {
	return func(s *paymentService) { s.now = now }
}

// WithCreateTimeout bounds a create once its decision has started.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *paymentService) { s.createTimeout = d }
}

type paymentService struct {
	repo          payments_repo.PaymentRepository
	policy        *DecisionPolicy
	publisher     EventPublisher
	validate      *validator.Validate
	metrics       *metrics.Metrics
	now           func() time.Time
	createTimeout time.Duration
	logger        *zap.Logger
}

func NewPaymentService(
	repo payments_repo.PaymentRepository,
	policy *DecisionPolicy,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) PaymentService {
	s := &paymentService{
		repo:          repo,
		policy:        policy,
		publisher:     publisher,
		validate:      newValidator(),
		metrics:       m,
		now:           time.Now,
		createTimeout: 10 * time.Second,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *paymentService) Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	if req.EventID != "" {
		existing, err := s.repo.FindByEventID(ctx, req.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up payment by event id: %w", err)
		}
		if existing != nil {
			s.logger.Info("Payment already exists for event, returning it",
				zap.String("event_id", req.EventID),
				zap.String("payment_id", existing.ID),
			)
			return existing, nil
		}
	}

	// Past this point the create is not abandoned when the caller goes away.
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.createTimeout)
	defer cancel()

	status, err := s.policy.Decide(workCtx, *req.OrderID)
	if err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		EventID:       req.EventID,
		OrderID:       *req.OrderID,
		UserID:        *req.UserID,
		Status:        status,
		Timestamp:     s.now().UTC().Truncate(time.Microsecond),
		PaymentAmount: *req.PaymentAmount,
	}

	saved, created, err := s.persist(workCtx, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		return saved, nil
	}

	s.metrics.Decision(saved.Status)
	s.logger.Info("Payment created",
		zap.String("payment_id", saved.ID),
		zap.Int64("order_id", saved.OrderID),
		zap.String("status", string(saved.Status)),
		zap.String("amount", saved.PaymentAmount.String()),
	)

	s.publisher.Publish(domain.PaymentEvent{
		EventID:   saved.EventID,
		OrderID:   saved.OrderID,
		PaymentID: saved.ID,
		Status:    saved.Status,
	})
	return saved, nil
}

// persist saves the payment and resolves unique-index conflicts. created is
// false when a concurrent request already stored the same event.
func (s *paymentService) persist(ctx context.Context, payment *domain.Payment) (*domain.Payment, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		saved, err := s.repo.Save(ctx, payment)
		switch {
		case err == nil:
			return saved, true, nil
		case errors.Is(err, domain.ErrDuplicateEventID) && payment.EventID != "":
			existing, findErr := s.repo.FindByEventID(ctx, payment.EventID)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to re-read payment after event id conflict: %w", findErr)
			}
			if existing == nil {
				return nil, false, err
			}
			s.logger.Info("Concurrent payment for event won the race, returning it",
				zap.String("event_id", payment.EventID),
				zap.String("payment_id", existing.ID),
			)
			return existing, false, nil
		case errors.Is(err, domain.ErrOrderAlreadyPaid) && payment.Status == domain.PaymentStatusSuccess:
			s.logger.Info("Concurrent success for order, downgrading to FAILED", zap.Int64("order_id", payment.OrderID))
			payment.Status = domain.PaymentStatusFailed
		default:
			return nil, false, fmt.Errorf("failed to save payment: %w", err)
		}
	}
	return nil, false, fmt.Errorf("failed to save payment for order %d after conflict retry", payment.OrderID)
}

func (s *paymentService) GetByOrderID(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}

func (s *paymentService) GetByUserID(ctx context.Context, userID int64) ([]domain.Payment, error) {
	return s.repo.FindByUserID(ctx, userID)
}

func (s *paymentService) GetByStatuses(ctx context.Context, statuses []domain.PaymentStatus) ([]domain.Payment, error) {
	if len(statuses) == 0 {
		return []domain.Payment{}, nil
	}
	return s.repo.FindByStatusIn(ctx, statuses)
}

func (s *paymentService) GetTotalBetween(ctx context.Context, from, to time.Time) (*TotalSum, error) {
	total, err := s.repo.SumSuccessfulAmountBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &TotalSum{Total: total, From: from, To: to}, nil
}
