package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskwellio/taskwell/pkg/failfast"
	"github.com/taskwellio/taskwell/pkg/pool"
)

// Collector adapts a pool's Stats() snapshot to prometheus.Collector.
// Gauges and the submission/rejection/drain totals are read at scrape
// time instead of being pushed, so they cannot disagree with Stats().
type Collector struct {
	pool pool.Pool

	queueDepth    *prometheus.Desc
	queueCapacity *prometheus.Desc
	workers       *prometheus.Desc
	busyWorkers   *prometheus.Desc
	submitted     *prometheus.Desc
	rejected      *prometheus.Desc
	drained       *prometheus.Desc
}

// NewCollector creates a Collector for p
func NewCollector(p pool.Pool) *Collector {
	failfast.NotNil(p, "pool")
	return &Collector{
		pool: p,
		queueDepth: prometheus.NewDesc(
			"taskwell_queue_depth",
			"Jobs currently enqueued and awaiting a worker",
			nil, nil,
		),
		queueCapacity: prometheus.NewDesc(
			"taskwell_queue_capacity",
			"Job queue capacity (backpressure bound)",
			nil, nil,
		),
		workers: prometheus.NewDesc(
			"taskwell_workers",
			"Worker goroutine count",
			nil, nil,
		),
		busyWorkers: prometheus.NewDesc(
			"taskwell_busy_workers",
			"Workers currently executing a job",
			nil, nil,
		),
		submitted: prometheus.NewDesc(
			"taskwell_jobs_submitted_total",
			"Total jobs accepted by the pool",
			nil, nil,
		),
		rejected: prometheus.NewDesc(
			"taskwell_jobs_rejected_total",
			"Total submissions rejected by backpressure",
			nil, nil,
		),
		drained: prometheus.NewDesc(
			"taskwell_jobs_drained_total",
			"Total jobs drained unexecuted at shutdown",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.queueCapacity
	ch <- c.workers
	ch <- c.busyWorkers
	ch <- c.submitted
	ch <- c.rejected
	ch <- c.drained
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stats()

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.Queued))
	ch <- prometheus.MustNewConstMetric(c.queueCapacity, prometheus.GaugeValue, float64(stats.Capacity))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(stats.Workers))
	ch <- prometheus.MustNewConstMetric(c.busyWorkers, prometheus.GaugeValue, float64(stats.BusyWorkers))
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(stats.Submitted))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.Rejected))
	ch <- prometheus.MustNewConstMetric(c.drained, prometheus.CounterValue, float64(stats.Drained))
}
