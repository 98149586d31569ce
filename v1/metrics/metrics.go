package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks successful acquisitions by topic and kind.
	AcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txlock_acquire_total",
		Help: "Total number of successful lock acquisitions",
	}, []string{"topic", "kind"})
	// ConflictCounter tracks acquisitions rejected by a topic policy.
	ConflictCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txlock_conflict_total",
		Help: "Total number of rejected lock acquisitions",
	}, []string{"topic"})
	// DeniedCounter tracks operations refused by the capability gate.
	DeniedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "txlock_denied_total",
		Help: "Total number of operations denied by the capability gate",
	}, []string{"capability"})
	// ElevationGauge reports the number of scoped elevations in progress.
	ElevationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "txlock_elevations",
		Help: "Current number of active scoped lock elevations",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers txlock metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, ConflictCounter, DeniedCounter, ElevationGauge)
}
