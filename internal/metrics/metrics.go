// Package metrics exposes scheduler activity as Prometheus metrics.
//
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autocompose"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the scheduler's instruments on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	cycles       *prometheus.CounterVec
	taskExits    *prometheus.CounterVec
	tasksRunning *prometheus.GaugeVec
	taskDuration *prometheus.HistogramVec
	changed      *prometheus.CounterVec
	published    prometheus.Gauge
	lastPublish  prometheus.Gauge
}

// New creates the instruments and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished build cycles by stage and aggregate result.",
		}, []string{"stage", "result"}),
		taskExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_exits_total",
			Help:      "Finished build tasks by stage and result.",
		}, []string{"stage", "result"}),
		tasksRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_running",
			Help:      "Build subprocesses currently running.",
		}, []string{"stage"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of build subprocesses.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 10),
		}, []string{"stage"}),
		changed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_changes_total",
			Help:      "Compose tasks whose ref moved to a new revision.",
		}, []string{"treefile"}),
		published: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "published_slot",
			Help:      "Image slot the publish link points at.",
		}),
		lastPublish: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_publish_timestamp_seconds",
			Help:      "Unix time of the last publish link swap.",
		}),
	}
	reg.MustRegister(
		m.cycles, m.taskExits, m.tasksRunning, m.taskDuration, m.changed, m.published, m.lastPublish,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// TaskStarted counts a launched subprocess.
func (m *Metrics) TaskStarted(stage string) {
	if m == nil {
		return
	}
	m.tasksRunning.WithLabelValues(stage).Inc()
}

// TaskFinished records a subprocess exit.
func (m *Metrics) TaskFinished(stage string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksRunning.WithLabelValues(stage).Dec()
	m.taskExits.WithLabelValues(stage, result(success)).Inc()
	m.taskDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// TaskFailedToStart records a task that never got a subprocess.
func (m *Metrics) TaskFailedToStart(stage string) {
	if m == nil {
		return
	}
	m.taskExits.WithLabelValues(stage, ResultFailure).Inc()
}

// TreeChanged counts a compose task that produced a new revision.
func (m *Metrics) TreeChanged(treefile string) {
	if m == nil {
		return
	}
	m.changed.WithLabelValues(treefile).Inc()
}

// CycleFinished records an aggregate cycle outcome.
func (m *Metrics) CycleFinished(stage string, success bool) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(stage, result(success)).Inc()
}

// Published records a publish link swap.
func (m *Metrics) Published(slot int, at time.Time) {
	if m == nil {
		return
	}
	m.published.Set(float64(slot))
	m.lastPublish.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
