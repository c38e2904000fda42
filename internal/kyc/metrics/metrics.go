package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the KYC record lifecycle.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	StatusChecks    *prometheus.CounterVec
	LazyExpiries    prometheus.Counter
	UnlockCallbacks *prometheus.CounterVec
	PayloadReads    *prometheus.CounterVec
	CipherDuration  *prometheus.HistogramVec
	SubmitDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_kyc_submissions_total",
			Help: "Verification submissions by outcome",
		}, []string{"outcome"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_kyc_transitions_total",
			Help: "Record status transitions",
		}, []string{"from", "to"}),
		StatusChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_kyc_status_checks_total",
			Help: "Status checks by effective status",
		}, []string{"status"}),
		LazyExpiries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unikyc_kyc_lazy_expiries_total",
			Help: "Active records written back as expired on read",
		}),
		UnlockCallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_kyc_unlock_callbacks_total",
			Help: "Unlock callbacks handled by the engine, by outcome",
		}, []string{"outcome"}),
		PayloadReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_kyc_payload_reads_total",
			Help: "Decrypted payload reads by outcome",
		}, []string{"outcome"}),
		CipherDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unikyc_kyc_cipher_duration_seconds",
			Help:    "Threshold cipher latency",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"op"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "unikyc_kyc_submit_duration_seconds",
			Help:    "End-to-end submission latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncStatusCheck(status string) {
	m.StatusChecks.WithLabelValues(status).Inc()
}

func (m *Metrics) IncLazyExpiry() {
	m.LazyExpiries.Inc()
}

func (m *Metrics) IncUnlockCallback(outcome string) {
	m.UnlockCallbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPayloadRead(outcome string) {
	m.PayloadReads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCipher(op string, seconds float64) {
	m.CipherDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) ObserveSubmit(seconds float64) {
	m.SubmitDuration.Observe(seconds)
}
