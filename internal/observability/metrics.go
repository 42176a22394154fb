package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the weather records service.
type Metrics struct {
	RecordsCreated    prometheus.Counter
	RecordsDeleted    prometheus.Counter
	SimulatedFailures prometheus.Counter
	StoreErrors       *prometheus.CounterVec // labels: op

	// Fault injection.
	FaultDelay    prometheus.Gauge
	InjectedDelay prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_records",
			Name:      "records_created_total",
			Help:      "Total weather records created.",
		}),
		RecordsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_records",
			Name:      "records_deleted_total",
			Help:      "Total weather records deleted, including retention sweeps.",
		}),
		SimulatedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_records",
			Name:      "simulated_failures_total",
			Help:      "Forecast requests aborted by injected failure.",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_records",
			Name:      "store_errors_total",
			Help:      "Persistence failures by service operation.",
		}, []string{"op"}),
		FaultDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_records",
			Name:      "fault_delay_milliseconds",
			Help:      "Currently configured artificial forecast delay.",
		}),
		InjectedDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_records",
			Name:      "injected_delay_seconds",
			Help:      "Time forecast requests spent in the artificial delay.",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsCreated,
		m.RecordsDeleted,
		m.SimulatedFailures,
		m.StoreErrors,
		m.FaultDelay,
		m.InjectedDelay,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
