package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payment-service/internal/domain"
	"payment-service/internal/metrics"
)

var fixedNow = time.Date(2025, 3, 14, 15, 9, 26, 535897000, time.UTC)

type fixture struct {
	repo      *memoryRepo
	random    *fixedRandom
	publisher *recordingPublisher
	service   PaymentService
}

func newFixture(randomValue int, randomErr error) *fixture {
	f := &fixture{
		repo:      &memoryRepo{},
		random:    &fixedRandom{value: randomValue, err: randomErr},
		publisher: &recordingPublisher{},
	}
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()
	policy := NewDecisionPolicy(f.random, f.repo, m, logger)
	f.service = NewPaymentService(f.repo, policy, f.publisher, m, logger,
		WithClock(func() time.Time { return fixedNow }),
		WithCreateTimeout(time.Second),
	)
	return f
}

func int64Ptr(v int64) *int64 { return &v }

func amountPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func request(orderID int64, amount, eventID string) CreatePaymentRequest {
	return CreatePaymentRequest{
		EventID:       eventID,
		OrderID:       int64Ptr(orderID),
		UserID:        int64Ptr(456),
		PaymentAmount: amountPtr(amount),
	}
}

func TestCreate_EvenNumberSucceedsAndIsIdempotent(t *testing.T) {
	f := newFixture(42, nil)
	ctx := context.Background()

	first, err := f.service.Create(ctx, request(123, "99.99", "evt-abc"))
	require.NoError(t, err)
	second, err := f.service.Create(ctx, request(123, "99.99", "evt-abc"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, first.Status)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)

	byOrder, err := f.service.GetByOrderID(ctx, 123)
	require.NoError(t, err)
	assert.Len(t, byOrder, 1)

	assert.Equal(t, 1, f.random.callCount(), "replay must not consult the oracle")
	events := f.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.PaymentEvent{
		EventID:   "evt-abc",
		OrderID:   123,
		PaymentID: first.ID,
		Status:    domain.PaymentStatusSuccess,
	}, events[0])
}

func TestCreate_OddNumberFails(t *testing.T) {
	f := newFixture(41, nil)

	p, err := f.service.Create(context.Background(), request(124, "10", "evt-odd"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Len(t, f.publisher.published(), 1)
}

func TestCreate_OracleFailureFallsBackToFailed(t *testing.T) {
	f := newFixture(0, fmt.Errorf("%w: timeout", domain.ErrRandomUnavailable))

	p, err := f.service.Create(context.Background(), request(125, "10", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Equal(t, 1, f.repo.count())
}

func TestCreate_SecondSuccessForOrderIsForcedToFailed(t *testing.T) {
	f := newFixture(42, nil)
	ctx := context.Background()

	first, err := f.service.Create(ctx, request(200, "10", "evt-1"))
	require.NoError(t, err)
	second, err := f.service.Create(ctx, request(200, "10", "evt-2"))
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, first.Status)
	assert.Equal(t, domain.PaymentStatusFailed, second.Status)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreate_PopulatesRecord(t *testing.T) {
	f := newFixture(2, nil)

	p, err := f.service.Create(context.Background(), request(300, "12.345", ""))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, int64(300), p.OrderID)
	assert.Equal(t, int64(456), p.UserID)
	assert.Equal(t, "", p.EventID)
	assert.True(t, decimal.RequireFromString("12.345").Equal(p.PaymentAmount))
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), p.Timestamp)
}

func TestCreate_StatusInRequestIsOverwritten(t *testing.T) {
	f := newFixture(41, nil)
	req := request(301, "1", "")
	status := "SUCCESS"
	req.Status = &status

	p, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
}

func TestCreate_Validation(t *testing.T) {
	badStatus := "PENDING"
	tests := []struct {
		name   string
		mutate func(r *CreatePaymentRequest)
		field  string
	}{
		{name: "missing order id", mutate: func(r *CreatePaymentRequest) { r.OrderID = nil }, field: "orderId"},
		{name: "missing user id", mutate: func(r *CreatePaymentRequest) { r.UserID = nil }, field: "userId"},
		{name: "missing amount", mutate: func(r *CreatePaymentRequest) { r.PaymentAmount = nil }, field: "paymentAmount"},
		{name: "zero amount", mutate: func(r *CreatePaymentRequest) { r.PaymentAmount = amountPtr("0") }, field: "paymentAmount"},
		{name: "negative amount", mutate: func(r *CreatePaymentRequest) { r.PaymentAmount = amountPtr("-0.01") }, field: "paymentAmount"},
		{name: "tiny negative amount", mutate: func(r *CreatePaymentRequest) { d := decimal.New(-1, -400); r.PaymentAmount = &d }, field: "paymentAmount"},
		{name: "unknown status", mutate: func(r *CreatePaymentRequest) { r.Status = &badStatus }, field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(42, nil)
			req := request(1, "10", "evt")
			tt.mutate(&req)

			_, err := f.service.Create(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidPayment)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Len(t, ve.Fields, 1)
			assert.Contains(t, ve.Fields[0], tt.field)

			assert.Zero(t, f.repo.count())
			assert.Zero(t, f.random.callCount())
			assert.Empty(t, f.publisher.published())
		})
	}
}

func TestCreate_TinyPositiveAmountIsAccepted(t *testing.T) {
	f := newFixture(42, nil)
	req := request(1, "10", "evt-tiny")
	tiny := decimal.New(1, -400)
	req.PaymentAmount = &tiny

	p, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, p.PaymentAmount.Equal(tiny))
	assert.Equal(t, 1, f.repo.count())
}

func TestCreate_StoreErrorInDecisionPropagates(t *testing.T) {
	f := newFixture(42, nil)
	f.repo.existsErr = errStoreDown

	_, err := f.service.Create(context.Background(), request(1, "10", ""))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, f.repo.count())
	assert.Empty(t, f.publisher.published())
}

func TestCreate_SaveErrorPropagatesWithoutPublish(t *testing.T) {
	f := newFixture(41, nil)
	f.repo.saveErr = errStoreDown

	_, err := f.service.Create(context.Background(), request(1, "10", ""))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.publisher.published())
}

func TestCreate_EventIDRaceReturnsWinner(t *testing.T) {
	f := newFixture(41, nil)
	winner := domain.Payment{
		ID:            "winner",
		EventID:       "evt-race",
		OrderID:       7,
		UserID:        456,
		Status:        domain.PaymentStatusFailed,
		Timestamp:     fixedNow,
		PaymentAmount: decimal.RequireFromString("10"),
	}
	f.repo.add(winner)
	f.repo.hideEventOnce = true

	p, err := f.service.Create(context.Background(), request(7, "10", "evt-race"))
	require.NoError(t, err)
	assert.Equal(t, "winner", p.ID)
	assert.Equal(t, 1, f.repo.count())
	assert.Empty(t, f.publisher.published())
}

func TestCreate_ConcurrentSuccessesKeepOnePerOrder(t *testing.T) {
	f := newFixture(42, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.service.Create(context.Background(), request(900, "1", fmt.Sprintf("evt-%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	payments, err := f.service.GetByOrderID(context.Background(), 900)
	require.NoError(t, err)
	assert.Len(t, payments, n)

	successes := 0
	for _, p := range payments {
		if p.Status == domain.PaymentStatusSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, f.publisher.published(), n)
}

func TestCreate_CallerCancellationDoesNotAbortDecision(t *testing.T) {
	f := newFixture(42, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := f.service.Create(ctx, request(5, "1", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, p.Status)
	assert.NoError(t, f.random.ctxErr)
}

func TestGetTotalBetween(t *testing.T) {
	f := newFixture(0, nil)
	ctx := context.Background()
	from := fixedNow.Add(-time.Hour)
	to := fixedNow.Add(time.Hour)

	f.repo.add(domain.Payment{OrderID: 1, Status: domain.PaymentStatusSuccess, Timestamp: fixedNow, PaymentAmount: decimal.RequireFromString("5.00")})
	f.repo.add(domain.Payment{OrderID: 2, Status: domain.PaymentStatusSuccess, Timestamp: fixedNow, PaymentAmount: decimal.RequireFromString("5.00")})
	f.repo.add(domain.Payment{OrderID: 3, Status: domain.PaymentStatusFailed, Timestamp: fixedNow, PaymentAmount: decimal.RequireFromString("100.00")})

	sum, err := f.service.GetTotalBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, "10", sum.Total.String())
	assert.Equal(t, from, sum.From)
	assert.Equal(t, to, sum.To)

	empty, err := f.service.GetTotalBetween(ctx, to.Add(time.Hour), to.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())

	inverted, err := f.service.GetTotalBetween(ctx, to, from)
	require.NoError(t, err)
	assert.True(t, inverted.Total.IsZero())
	assert.Equal(t, to, inverted.From)
	assert.Equal(t, from, inverted.To)
}

func TestGetTotalBetween_OnlySuccessfulInRange(t *testing.T) {
	f := newFixture(0, nil)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	f.repo.add(domain.Payment{OrderID: 1, Status: domain.PaymentStatusSuccess, Timestamp: from.Add(24 * time.Hour), PaymentAmount: decimal.RequireFromString("10.00")})
	f.repo.add(domain.Payment{OrderID: 2, Status: domain.PaymentStatusFailed, Timestamp: from.Add(48 * time.Hour), PaymentAmount: decimal.RequireFromString("20.00")})
	f.repo.add(domain.Payment{OrderID: 3, Status: domain.PaymentStatusSuccess, Timestamp: to.Add(24 * time.Hour), PaymentAmount: decimal.RequireFromString("30.00")})

	sum, err := f.service.GetTotalBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.True(t, sum.Total.Equal(decimal.RequireFromString("10.00")), sum.Total.String())
}

func TestGetByStatuses(t *testing.T) {
	f := newFixture(0, nil)
	ctx := context.Background()
	f.repo.add(domain.Payment{OrderID: 1, UserID: 1, Status: domain.PaymentStatusSuccess})
	f.repo.add(domain.Payment{OrderID: 2, UserID: 1, Status: domain.PaymentStatusFailed})

	all, err := f.service.GetByStatuses(ctx, []domain.PaymentStatus{domain.PaymentStatusSuccess, domain.PaymentStatusFailed})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := f.service.GetByStatuses(ctx, []domain.PaymentStatus{domain.PaymentStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].OrderID)

	none, err := f.service.GetByStatuses(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	byUser, err := f.service.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
}

func TestGetByStatuses_TwoOfEach(t *testing.T) {
	f := newFixture(0, nil)
	ctx := context.Background()
	f.repo.add(domain.Payment{OrderID: 1, Status: domain.PaymentStatusSuccess})
	f.repo.add(domain.Payment{OrderID: 2, Status: domain.PaymentStatusSuccess})
	f.repo.add(domain.Payment{OrderID: 3, Status: domain.PaymentStatusFailed})
	f.repo.add(domain.Payment{OrderID: 4, Status: domain.PaymentStatusFailed})

	both, err := f.service.GetByStatuses(ctx, []domain.PaymentStatus{domain.PaymentStatusSuccess, domain.PaymentStatusFailed})
	require.NoError(t, err)
	assert.Len(t, both, 4)

	success, err := f.service.GetByStatuses(ctx, []domain.PaymentStatus{domain.PaymentStatusSuccess})
	require.NoError(t, err)
	require.Len(t, success, 2)
	for _, p := range success {
		assert.Equal(t, domain.PaymentStatusSuccess, p.Status)
	}
}
