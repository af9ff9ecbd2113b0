package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskwellio/taskwell/pkg/pool"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "taskwell"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds the push-style Prometheus metrics for the worker pool
// and its submission surfaces. Submission, rejection and drain totals
// are deliberately absent here: those are pool counters read at scrape
// time by Collector, so each family has exactly one source.
type Metrics struct {
	// Job metrics
	JobsCompletedTotal prometheus.Counter
	JobsFailedTotal    prometheus.Counter
	JobDuration        prometheus.Histogram
	SubmitWait         prometheus.Histogram

	// Gateway metrics
	GatewayRequestsTotal *prometheus.CounterVec
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		JobsCompletedTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "taskwell_jobs_completed_total",
				Help: "Total number of jobs executed without error",
			},
		),
		JobsFailedTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "taskwell_jobs_failed_total",
				Help: "Total number of jobs that returned an error or panicked",
			},
		),
		JobDuration: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskwell_job_duration_seconds",
				Help:    "Job execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SubmitWait: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskwell_submit_wait_seconds",
				Help:    "Time jobs spend queued before a worker picks them up",
				Buckets: prometheus.DefBuckets,
			},
		),
		GatewayRequestsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskwell_gateway_requests_total",
				Help: "Total number of gateway requests by outcome",
			},
			[]string{"outcome"}, // accepted, rejected, invalid, unauthorized
		),
	}
}

// ObserveJob records one finished job. Wire it to pool.Config.OnJobDone
// so the core pool stays free of metrics imports.
func (m *Metrics) ObserveJob(r pool.JobResult) {
	if r.Err != nil {
		m.JobsFailedTotal.Inc()
	} else {
		m.JobsCompletedTotal.Inc()
	}
	m.JobDuration.Observe(r.Duration.Seconds())
	m.SubmitWait.Observe(r.Wait.Seconds())
}

// Handler returns an HTTP handler exposing DefaultRegistry for scraping
func Handler() http.Handler {
	GetMetrics() // families are present even before the first job runs
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
