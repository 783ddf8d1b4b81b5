package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives the outcome of database operations and version runs.
type Recorder interface {
	Operation(component, operation string, err error, elapsed time.Duration)
	Version(collection, outcome string)
}

// Version outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Nop discards every observation.
type Nop struct{}

func (Nop) Operation(string, string, error, time.Duration) {}
func (Nop) Version(string, string)                          {}

// Prometheus records into its own registry so several instances can coexist.
type Prometheus struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	versions   *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "configurator",
			Name:      "operations_total",
			Help:      "The total number of database operations by outcome",
		}, []string{"component", "operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "configurator",
			Name:      "operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "operation"}),
		versions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "configurator",
			Name:      "versions_processed_total",
			Help:      "The total number of processed collection versions by outcome",
		}, []string{"collection", "outcome"}),
	}
	p.registry.MustRegister(
		p.operations, p.durations, p.versions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Operation(component, operation string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.operations.WithLabelValues(component, operation, status).Inc()
	p.durations.WithLabelValues(component, operation).Observe(elapsed.Seconds())
}

func (p *Prometheus) Version(collection, outcome string) {
	p.versions.WithLabelValues(collection, outcome).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Provide is the injector constructor.
func Provide() *Prometheus {
	return NewPrometheus()
}
