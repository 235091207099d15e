package schedule

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teranos/chronograph/errors"
)

// Metrics collects per-cycle counters for the node_exporter textfile
// collector. A cycle is a short-lived process, so the registry is written
// to disk once at the end rather than served.
type Metrics struct {
	registry *prometheus.Registry

	jobsDue       prometheus.Gauge
	stuckReset    prometheus.Counter
	jobsRun       *prometheus.CounterVec
	jobsSkipped   prometheus.Counter
	jobDuration   prometheus.Histogram
	cycleDuration prometheus.Gauge
	lastCycle     prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chrono",
			Name:      "jobs_due",
			Help:      "Jobs due at the start of the last cycle.",
		}),
		stuckReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chrono",
			Name:      "stuck_jobs_reset_total",
			Help:      "Jobs whose running state was reset at cycle start.",
		}),
		jobsRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chrono",
			Name:      "job_runs_total",
			Help:      "Job runs by outcome.",
		}, []string{"outcome"}),
		jobsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chrono",
			Name:      "jobs_skipped_total",
			Help:      "Due jobs skipped because they were no longer due at launch.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chrono",
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		cycleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chrono",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of the last cycle.",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chrono",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
	}
	m.registry.MustRegister(
		m.jobsDue, m.stuckReset, m.jobsRun, m.jobsSkipped,
		m.jobDuration, m.cycleDuration, m.lastCycle,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a finished cycle
func (m *Metrics) Observe(report *CycleReport) {
	if m == nil || report == nil {
		return
	}
	m.jobsDue.Set(float64(report.Due))
	m.stuckReset.Add(float64(len(report.Stuck)))
	m.jobsSkipped.Add(float64(report.Skipped))
	for _, run := range report.Runs {
		outcome := "failed"
		if run.Success {
			outcome = "success"
		}
		m.jobsRun.WithLabelValues(outcome).Inc()
		if d, ok := run.Duration(); ok {
			m.jobDuration.Observe(d.Seconds())
		}
	}
	m.jobsRun.WithLabelValues("error").Add(float64(report.Errors))
	m.cycleDuration.Set(report.Finished.Sub(report.Started).Seconds())
	m.lastCycle.Set(float64(report.Finished.Unix()))
}

// WriteTextfile atomically writes the registry in text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
