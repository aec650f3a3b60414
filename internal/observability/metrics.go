package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bianoble/sfsync/internal/engine"
)

const namespace = "sfsync"

// Metrics holds the reconciliation collectors on a private registry.
// It implements engine.SummarySink.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	UpsertsTotal    *prometheus.CounterVec
	DeletesTotal    *prometheus.CounterVec
	SkippedRows     *prometheus.CounterVec
	RemoteIndexSize *prometheus.GaugeVec
	DeleteSetSize   *prometheus.GaugeVec
	LastRunTime     *prometheus.GaugeVec
	LastRunErrored  *prometheus.GaugeVec
	Running         prometheus.Gauge
}

// NewMetrics creates and registers every collector. Go runtime and process
// collectors are registered as well.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Reconciliation passes by terminal status.",
		}, []string{"record_type", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Reconciliation pass duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"record_type"}),
		UpsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Upsert attempts by outcome.",
		}, []string{"record_type", "outcome"}),
		DeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Delete attempts by result.",
		}, []string{"record_type", "result"}),
		SkippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Source rows skipped for an empty external id.",
		}, []string{"record_type"}),
		RemoteIndexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_index_size",
			Help:      "External ids found in the target on the last pass.",
		}, []string{"record_type"}),
		DeleteSetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delete_set_size",
			Help:      "Remote records planned for deletion on the last pass.",
		}, []string{"record_type"}),
		LastRunTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pass finished.",
		}, []string{"record_type"}),
		LastRunErrored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_errored",
			Help:      "Per-record failures in the last pass.",
		}, []string{"record_type"}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a pass is in progress.",
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal, m.RunDuration, m.UpsertsTotal, m.DeletesTotal, m.SkippedRows,
		m.RemoteIndexSize, m.DeleteSetSize, m.LastRunTime, m.LastRunErrored, m.Running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetRunning flips the in-progress gauge.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

// Record implements engine.SummarySink. Dry runs are not counted.
func (m *Metrics) Record(ctx context.Context, s *engine.RunSummary) {
	if s.DryRun {
		return
	}
	rt := s.RecordType
	m.RunsTotal.WithLabelValues(rt, string(s.Status)).Inc()
	m.RunDuration.WithLabelValues(rt).Observe(s.Duration.Seconds())
	m.SkippedRows.WithLabelValues(rt).Add(float64(s.SkippedRows))
	m.LastRunTime.WithLabelValues(rt).Set(float64(s.FinishedAt.Unix()))
	m.LastRunErrored.WithLabelValues(rt).Set(float64(s.Errored))

	// Index gauges keep their last value when the pass never reached the index.
	if s.Status == engine.StatusAborted && s.IndexPages == 0 {
		return
	}
	m.RemoteIndexSize.WithLabelValues(rt).Set(float64(s.RemoteIndexSize))
	m.DeleteSetSize.WithLabelValues(rt).Set(float64(s.DeleteSet))

	m.UpsertsTotal.WithLabelValues(rt, "created").Add(float64(s.Created))
	m.UpsertsTotal.WithLabelValues(rt, "updated").Add(float64(s.Updated))
	m.UpsertsTotal.WithLabelValues(rt, "failed").Add(float64(s.UpsertErrors))
	m.DeletesTotal.WithLabelValues(rt, "ok").Add(float64(s.Deleted))
	m.DeletesTotal.WithLabelValues(rt, "failed").Add(float64(s.DeleteErrors))
}
