// Package metrics exposes pgqd's three counters (n_ticks, n_maint,
// n_retry of §4.8) as Prometheus series, additive to the periodic log
// line stats.Emitter writes — grounded on the ConnectionMetrics /
// Prometheus wiring pattern of the teacher's database and metrics
// packages, scaled down to what this daemon actually measures.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the counters and gauges pgqd reports.
type Registry struct {
	Ticks     *prometheus.CounterVec
	Maint     *prometheus.CounterVec
	Retry     *prometheus.CounterVec
	HasPgq    *prometheus.GaugeVec
	Databases prometheus.Gauge
}

// NewRegistry builds and registers the pgqd metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgqd_ticks_total",
			Help: "Total number of pgq.ticker() invocations that returned a row.",
		}, []string{"database"}),
		Maint: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgqd_maint_total",
			Help: "Total number of completed maintenance cycles.",
		}, []string{"database"}),
		Retry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgqd_retry_total",
			Help: "Total number of events retried by pgq.maint_retry_events().",
		}, []string{"database"}),
		HasPgq: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pgqd_has_pgq",
			Help: "1 if the pgq extension was detected with a supported version, 0 otherwise.",
		}, []string{"database"}),
		Databases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgqd_databases_managed",
			Help: "Number of databases currently tracked in the registry.",
		}),
	}
	reg.MustRegister(m.Ticks, m.Maint, m.Retry, m.HasPgq, m.Databases)
	return m
}

// IncTicks increments the per-database tick counter.
func (m *Registry) IncTicks(db string) { m.Ticks.WithLabelValues(db).Inc() }

// IncMaint increments the per-database maintenance-cycle counter.
func (m *Registry) IncMaint(db string) { m.Maint.WithLabelValues(db).Inc() }

// AddRetry adds n to the per-database retry counter.
func (m *Registry) AddRetry(db string, n int64) {
	if n <= 0 {
		return
	}
	m.Retry.WithLabelValues(db).Add(float64(n))
}

// SetHasPgq records whether db currently has a usable pgq extension.
func (m *Registry) SetHasPgq(db string, has bool) {
	v := 0.0
	if has {
		v = 1.0
	}
	m.HasPgq.WithLabelValues(db).Set(v)
}

// SetDatabaseCount sets the registry-size gauge.
func (m *Registry) SetDatabaseCount(n int) {
	m.Databases.Set(float64(n))
}
