package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identifier resolution.
type Metrics struct {
	Resolutions  *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_identity_resolutions_total",
			Help: "Identifier resolutions by outcome",
		}, []string{"outcome"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unikyc_identity_cache_lookups_total",
			Help: "Name cache lookups by result (hit, miss, error, bypass)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}
