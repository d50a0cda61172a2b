package payments_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/infrastructure/database"
	"payment-service/internal/util"
)

const (
	eventIDIndex      = "payments_event_id_uniq"
	orderSuccessIndex = "payments_order_success_uniq"

	selectPayments = `SELECT id, event_id, order_id, user_id, status, "timestamp", payment_amount FROM payments`
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByEventID(ctx context.Context, eventID string) (*domain.Payment, error) {
	payment := &domain.Payment{}
	err := r.db.GetContext(ctx, payment, selectPayments+` WHERE event_id = $1 LIMIT 1`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment by event id %s: %w", eventID, err)
	}
	normalize(payment)
	return payment, nil
}

func (r *paymentRepository) FindByOrderID(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	payments, err := r.selectPayments(ctx, selectPayments+` WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by order id %d: %w", orderID, err)
	}
	return payments, nil
}

func (r *paymentRepository) FindByUserID(ctx context.Context, userID int64) ([]domain.Payment, error) {
	payments, err := r.selectPayments(ctx, selectPayments+` WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by user id %d: %w", userID, err)
	}
	return payments, nil
}

func (r *paymentRepository) FindByStatusIn(ctx context.Context, statuses []domain.PaymentStatus) ([]domain.Payment, error) {
	if len(statuses) == 0 {
		return []domain.Payment{}, nil
	}

	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	query, args, err := sqlx.In(selectPayments+` WHERE status IN (?)`, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build status query: %w", err)
	}
	payments, err := r.selectPayments(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by statuses %v: %w", raw, err)
	}
	return payments, nil
}

func (r *paymentRepository) ExistsSuccessForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = $2)`,
		orderID, domain.PaymentStatusSuccess,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check successful payment for order %d: %w", orderID, err)
	}
	return exists, nil
}

func (r *paymentRepository) SumSuccessfulAmountBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(payment_amount), 0) FROM payments
		 WHERE status = $1 AND "timestamp" BETWEEN $2 AND $3`,
		domain.PaymentStatusSuccess, from, to,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum successful payments: %w", err)
	}
	return total, nil
}

func (r *paymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	saved := *payment
	if saved.ID == "" {
		saved.ID = util.GenerateUUID()
	}
	saved.Timestamp = saved.Timestamp.UTC().Truncate(time.Microsecond)

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO payments (id, event_id, order_id, user_id, status, "timestamp", payment_amount)
		 VALUES (:id, :event_id, :order_id, :user_id, :status, :timestamp, :payment_amount)`,
		&saved,
	)
	if err != nil {
		if database.IsDuplicateKeyErr(err) {
			switch constraint := database.ViolatedConstraint(err); constraint {
			case eventIDIndex:
				return nil, fmt.Errorf("failed to save payment for event %s: %w", saved.EventID, domain.ErrDuplicateEventID)
			case orderSuccessIndex:
				return nil, fmt.Errorf("failed to save payment for order %d: %w", saved.OrderID, domain.ErrOrderAlreadyPaid)
			default:
				return nil, fmt.Errorf("failed to save payment, unique constraint %q violated: %w", constraint, err)
			}
		}
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}
	return &saved, nil
}

// DeleteAll empties the table. Used by tests only.
func (r *paymentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments`); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}

func (r *paymentRepository) selectPayments(ctx context.Context, query string, args ...interface{}) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, err
	}
	for i := range payments {
		normalize(&payments[i])
	}
	return payments, nil
}

func normalize(p *domain.Payment) {
	p.Timestamp = p.Timestamp.UTC()
}
