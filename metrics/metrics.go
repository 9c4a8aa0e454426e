// Package metrics provides the Prometheus collectors shared by the
// classifier, scheduler, worker health loop, and transfer protocol.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every collector under one prometheus.Registerer so rchd
// can expose them on a single /metrics handler, and so tests can use an
// isolated registry instead of the global default.
type Registry struct {
	// classifier
	DecisionLatency          *prometheus.HistogramVec
	BudgetViolations         *prometheus.CounterVec
	ClassifierInternalErrors prometheus.Counter

	// scheduler
	BuildsTotal     *prometheus.CounterVec
	InFlightBuilds  prometheus.Gauge
	DedupAttached   prometheus.Counter
	AdmissionDenied *prometheus.CounterVec

	// worker health / circuit breaker
	WorkerUp            *prometheus.GaugeVec
	CircuitState        *prometheus.GaugeVec
	CircuitTrips        *prometheus.CounterVec
	ProbeLatency        *prometheus.HistogramVec
	ConsecutiveFailures *prometheus.GaugeVec

	// transfer
	TransferBytes   *prometheus.CounterVec
	TransferErrors  *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
}

// New registers and returns a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() in tests for isolation, or prometheus.DefaultRegisterer
// in production.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		DecisionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rch",
			Subsystem: "classifier",
			Name:      "decision_latency_seconds",
			Help:      "Latency of a single classify() call, by outcome class.",
			Buckets:   []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"outcome"}),

		BudgetViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "classifier",
			Name:      "budget_violations_total",
			Help:      "Classify calls that exceeded their tier's latency budget.",
		}, []string{"tier"}),

		ClassifierInternalErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "classifier",
			Name:      "internal_errors_total",
			Help:      "classify() calls that fell back to ClassifierBug.",
		}),

		BuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "scheduler",
			Name:      "builds_total",
			Help:      "Build requests by terminal outcome.",
		}, []string{"outcome"}),

		InFlightBuilds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rch",
			Subsystem: "scheduler",
			Name:      "in_flight_builds",
			Help:      "Currently in-flight build requests.",
		}),

		DedupAttached: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "scheduler",
			Name:      "dedup_attached_total",
			Help:      "Requests that attached to an already in-flight build by fingerprint.",
		}),

		AdmissionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "scheduler",
			Name:      "admission_denied_total",
			Help:      "Admission denials by reason.",
		}, []string{"reason"}),

		WorkerUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rch",
			Subsystem: "worker",
			Name:      "up",
			Help:      "1 if WorkerHealth.available == Up, else 0.",
		}, []string{"worker"}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rch",
			Subsystem: "worker",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=Closed, 1=HalfOpen, 2=Open).",
		}, []string{"worker"}),

		CircuitTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "worker",
			Name:      "circuit_trips_total",
			Help:      "Circuit breaker Closed/HalfOpen -> Open transitions.",
		}, []string{"worker"}),

		ProbeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rch",
			Subsystem: "worker",
			Name:      "probe_latency_seconds",
			Help:      "Health probe round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker"}),

		ConsecutiveFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rch",
			Subsystem: "worker",
			Name:      "consecutive_failures",
			Help:      "Current consecutive worker-fault count.",
		}, []string{"worker"}),

		TransferBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "transfer",
			Name:      "bytes_total",
			Help:      "Bytes transferred, by phase.",
		}, []string{"phase"}),

		TransferErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rch",
			Subsystem: "transfer",
			Name:      "errors_total",
			Help:      "Transfer phase failures, by phase and reason code.",
		}, []string{"phase", "reason"}),

		SessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rch",
			Subsystem: "transfer",
			Name:      "session_duration_seconds",
			Help:      "Total TransferSession duration, by terminal phase.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase"}),
	}
}

// CircuitStateValue maps a breaker state name, as rchapi.CircuitState's
// String method returns it, to the gauge value Prometheus dashboards expect
// (0=Closed, 1=HalfOpen, 2=Open; a drained worker's breaker is Open).
func CircuitStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	default: // open
		return 2
	}
}
