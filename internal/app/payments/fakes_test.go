package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"payment-service/internal/domain"
	"payment-service/internal/util"
)

// memoryRepo mirrors the Postgres unique indexes so conflict handling can be
// exercised without a database.
type memoryRepo struct {
	mu       sync.Mutex
	payments []domain.Payment

	existsErr error
	saveErr   error
	// hideEventOnce makes the first FindByEventID miss, as if a concurrent
	// writer committed right after the lookup.
	hideEventOnce bool
}

func (r *memoryRepo) FindByEventID(_ context.Context, eventID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideEventOnce {
		r.hideEventOnce = false
		return nil, nil
	}
	for _, p := range r.payments {
		if p.EventID == eventID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) filter(keep func(domain.Payment) bool) []domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Payment{}
	for _, p := range r.payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r *memoryRepo) FindByOrderID(_ context.Context, orderID int64) ([]domain.Payment, error) {
	return r.filter(func(p domain.Payment) bool { return p.OrderID == orderID }), nil
}

func (r *memoryRepo) FindByUserID(_ context.Context, userID int64) ([]domain.Payment, error) {
	return r.filter(func(p domain.Payment) bool { return p.UserID == userID }), nil
}

func (r *memoryRepo) FindByStatusIn(_ context.Context, statuses []domain.PaymentStatus) ([]domain.Payment, error) {
	return r.filter(func(p domain.Payment) bool {
		for _, s := range statuses {
			if p.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryRepo) ExistsSuccessForOrder(_ context.Context, orderID int64) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return len(r.filter(func(p domain.Payment) bool {
		return p.OrderID == orderID && p.Status == domain.PaymentStatusSuccess
	})) > 0, nil
}

func (r *memoryRepo) SumSuccessfulAmountBetween(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.filter(func(p domain.Payment) bool {
		return p.Status == domain.PaymentStatusSuccess && !p.Timestamp.Before(from) && !p.Timestamp.After(to)
	}) {
		total = total.Add(p.PaymentAmount)
	}
	return total, nil
}

func (r *memoryRepo) Save(_ context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if payment.EventID != "" && p.EventID == payment.EventID {
			return nil, domain.ErrDuplicateEventID
		}
		if payment.Status == domain.PaymentStatusSuccess && p.OrderID == payment.OrderID && p.Status == domain.PaymentStatusSuccess {
			return nil, domain.ErrOrderAlreadyPaid
		}
	}
	saved := *payment
	if saved.ID == "" {
		saved.ID = util.GenerateUUID()
	}
	r.payments = append(r.payments, saved)
	return &saved, nil
}

func (r *memoryRepo) add(p domain.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = util.GenerateUUID()
	}
	r.payments = append(r.payments, p)
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

type fixedRandom struct {
	value int
	err   error

	mu     sync.Mutex
	calls  int
	ctxErr error
}

func (f *fixedRandom) GetRandomNumber(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ctxErr = ctx.Err()
	return f.value, f.err
}

func (f *fixedRandom) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
}

func (p *recordingPublisher) Publish(event domain.PaymentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) published() []domain.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PaymentEvent(nil), p.events...)
}

var errStoreDown = errors.New("store down")
