package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payment-service/internal/domain"
)

const (
	PublishSent    = "sent"
	PublishFailed  = "failed"
	PublishDropped = "dropped"
)

type Metrics struct {
	decisions      *prometheus.CounterVec
	oracleFailures prometheus.Counter
	publishes      *prometheus.CounterVec
	consumed       *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Use prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_decisions_total",
				Help: "Payment decisions by resulting status",
			},
			[]string{"status"},
		),
		oracleFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "payments_random_oracle_failures_total",
				Help: "Random oracle calls that fell back to FAILED",
			},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_publish_total",
				Help: "Outcome events by publish result",
			},
			[]string{"result"},
		),
		consumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_consumed_messages_total",
				Help: "Inbound messages by handling result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.decisions, m.oracleFailures, m.publishes, m.consumed, m.httpRequests, m.httpDuration)
	return m
}

// The recording methods are nil-safe so components can run without metrics.

func (m *Metrics) Decision(status domain.PaymentStatus) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) OracleFailure() {
	if m == nil {
		return
	}
	m.oracleFailures.Inc()
}

func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(result).Inc()
}

func (m *Metrics) Consumed(result string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware labels requests by chi route pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	})
}
