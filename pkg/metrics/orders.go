package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records lifecycle and settlement activity for orders.
type OrderMetrics struct {
	transitions     *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	confirmDuration prometheus.Histogram
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by resulting status.",
	}, []string{"status"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_settlements_total",
		Help: "Loyalty settlement outcomes.",
	}, []string{"result"})
	confirmDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_confirm_duration_seconds",
		Help:    "Duration of the confirm operation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(transitions, settlements, confirmDuration)
	return &OrderMetrics{
		transitions:     transitions,
		settlements:     settlements,
		confirmDuration: confirmDuration,
	}
}

// IncTransition counts a transition into the given status.
func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncSettlement counts a settlement outcome (applied, skipped, reverted).
func (m *OrderMetrics) IncSettlement(result string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveConfirmDuration records how long a confirm call took.
func (m *OrderMetrics) ObserveConfirmDuration(duration time.Duration) {
	if m == nil || m.confirmDuration == nil {
		return
	}
	m.confirmDuration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
