// Package metrics exposes the ambient observability surface (see
// SPEC_FULL.md's DOMAIN STACK): an in-process Prometheus registry the
// Process Lifecycle can optionally publish over /metrics. Pulled from
// ChuLiYu-raft-recovery's use of github.com/prometheus/client_golang.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runpod-worker/serverless-worker/internal/resourcemonitor"
)

// Metrics holds the worker's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	jobsInFlight    prometheus.Gauge
	jobsCompleted   prometheus.Counter
	jobsFailed      prometheus.Counter
	queueDepth      prometheus.Gauge
	cpuPercent      prometheus.Gauge
	ramPercent      prometheus.Gauge
}

// New registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		jobsInFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "worker_jobs_in_flight",
			Help: "Number of jobs currently executing.",
		}),
		jobsCompleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Number of jobs completed successfully.",
		}),
		jobsFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Number of jobs that ended in an error result.",
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Number of jobs currently queued awaiting dispatch.",
		}),
		cpuPercent: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "worker_cpu_percent",
			Help: "Last-sampled host CPU utilization percentage.",
		}),
		ramPercent: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "worker_ram_percent",
			Help: "Last-sampled host RAM utilization percentage.",
		}),
	}
	return m
}

// JobCompleted increments the completed-jobs counter.
func (m *Metrics) JobCompleted() { m.jobsCompleted.Inc() }

// JobFailed increments the failed-jobs counter.
func (m *Metrics) JobFailed() { m.jobsFailed.Inc() }

// SetInFlight records the current number of executing jobs.
func (m *Metrics) SetInFlight(n int) { m.jobsInFlight.Set(float64(n)) }

// SetQueueDepth records the current queue depth.
func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }

// ObserveResources samples the host once and records CPU/RAM gauges.
func (m *Metrics) ObserveResources(ctx context.Context, monitor *resourcemonitor.Monitor) {
	sample, err := monitor.Sample(ctx)
	if err != nil {
		return
	}
	m.cpuPercent.Set(sample.CPUPercent)
	m.ramPercent.Set(sample.RAMPercent)
}

// Handler returns the HTTP handler serving this registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
