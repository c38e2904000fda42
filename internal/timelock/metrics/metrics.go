package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for time-lock coordination.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	Callbacks        *prometheus.CounterVec
	CallbackSources  *prometheus.CounterVec
	PendingRequests  prometheus.Gauge
	RegisterDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_timelock_registrations_total",
			Help: "Unlock registrations by outcome",
		}, []string{"outcome"}),
		Callbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_timelock_callbacks_total",
			Help: "Unlock callbacks by outcome (decrypted, duplicate, unknown, invalid)",
		}, []string{"outcome"}),
		CallbackSources: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_timelock_callback_deliveries_total",
			Help: "Unlock callbacks delivered, by source (relay, webhook, poller)",
		}, []string{"source"}),
		PendingRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "unikyc_timelock_pending_requests",
			Help: "Requests awaiting release, as of the last poll",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unikyc_timelock_register_duration_seconds",
			Help:    "Time spent registering with the conditional-encryption network",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCallback(outcome string) {
	m.Callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDelivery(source string) {
	m.CallbackSources.WithLabelValues(source).Inc()
}

func (m *Metrics) SetPending(n int) {
	m.PendingRequests.Set(float64(n))
}

func (m *Metrics) ObserveRegister(seconds float64) {
	m.RegisterDuration.Observe(seconds)
}
