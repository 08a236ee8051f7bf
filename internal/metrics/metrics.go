package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated        prometheus.Counter
	OrderCreateFailures  *prometheus.CounterVec
	OrderCreateLatency   prometheus.Histogram
	StockConflicts       prometheus.Counter
	Compensations        prometheus.Counter
	CompensationFailures prometheus.Counter
	NumberRetries        prometheus.Counter
	Transitions          *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	VerificationsIssued  prometheus.Counter
	VerificationFailures *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	m := &Registry{
		reg: r,
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_orders_created_total",
			Help: "Orders successfully placed.",
		}),
		OrderCreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dapur_order_create_failures_total",
			Help: "Failed order placements by reason.",
		}, []string{"reason"}),
		OrderCreateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dapur_order_create_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_stock_conflicts_total",
			Help: "Conditional decrements rejected for insufficient stock.",
		}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_stock_compensations_total",
			Help: "Stock increments applied to undo a partial order.",
		}),
		CompensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_stock_compensation_failures_total",
			Help: "Stock restorations that need manual reconciliation.",
		}),
		NumberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_order_number_retries_total",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dapur_order_transitions_total",
		}, []string{"to"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dapur_notifications_total",
		}, []string{"kind", "outcome"}),
		VerificationsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dapur_verification_codes_issued_total",
		}),
		VerificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dapur_verification_failures_total",
		}, []string{"reason"}),
	}

	r.MustRegister(
		m.OrdersCreated,
		m.OrderCreateFailures,
		m.OrderCreateLatency,
		m.StockConflicts,
		m.Compensations,
		m.CompensationFailures,
		m.NumberRetries,
		m.Transitions,
		m.Notifications,
		m.VerificationsIssued,
		m.VerificationFailures,
	)

	return m
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveTo records the elapsed seconds into h.
func (t *Timer) ObserveTo(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
