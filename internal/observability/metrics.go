package observability

import (
	"database/sql"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "missions"

// Metrics methods are safe on a nil receiver so callers never branch on METRICS_ENABLED.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	actionsReceived  *prometheus.CounterVec
	batchesFlushed   prometheus.Counter
	batchSize        prometheus.Histogram
	batchLatency     prometheus.Histogram
	progressUpdates  prometheus.Counter
	missionsComplete prometheus.Counter
	pairFailures     *prometheus.CounterVec
	missionsReaped   prometheus.Counter
	outboxApplied    prometheus.Counter
	outboxFailed     prometheus.Counter
	outboxStuck      prometheus.Gauge
	resolverLookups  *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics once. It returns nil when metrics are disabled.
func Init(enabled bool) *Metrics {
	initOnce.Do(func() {
		if !enabled {
			return
		}
		instance = NewMetrics()
	})
	return instance
}

// NewMetrics builds an independent registry; tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "api_inflight_requests", Help: "HTTP requests in flight.",
		}),
		actionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "actions_received_total", Help: "Action events submitted to the dispatcher.",
		}, []string{"action"}),
		batchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_flushed_total", Help: "Dispatcher flushes that processed at least one event.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_size_events", Help: "Events per flushed batch.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_duration_seconds", Help: "ProcessBatch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		progressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "progress_updates_total", Help: "Progress updates produced.",
		}),
		missionsComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "missions_completed_total", Help: "Missions whose completed_at was set.",
		}),
		pairFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pair_failures_total", Help: "Failed (mission, requirement) updates by stage.",
		}, []string{"stage"}),
		missionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "missions_reaped_total", Help: "Expired incomplete missions removed.",
		}),
		outboxApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_applied_total", Help: "Outbox rows applied to the ledger.",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_failed_total", Help: "Outbox apply attempts that failed.",
		}),
		outboxStuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outbox_stuck_rows", Help: "Outbox rows that exhausted their retries.",
		}),
		resolverLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolver_lookups_total", Help: "Active-mission resolver lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.actionsReceived, m.batchesFlushed, m.batchSize, m.batchLatency,
		m.progressUpdates, m.missionsComplete, m.pairFailures,
		m.missionsReaped, m.outboxApplied, m.outboxFailed, m.outboxStuck, m.resolverLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterDB exports connection pool stats for db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) {
	if m == nil || db == nil {
		return
	}
	_ = m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ActionReceived(action string) {
	if m == nil {
		return
	}
	m.actionsReceived.WithLabelValues(action).Inc()
}

func (m *Metrics) BatchFlushed(events int, dur time.Duration) {
	if m == nil {
		return
	}
	m.batchesFlushed.Inc()
	m.batchSize.Observe(float64(events))
	m.batchLatency.Observe(dur.Seconds())
}

func (m *Metrics) ProgressUpdates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.progressUpdates.Add(float64(n))
}

func (m *Metrics) MissionCompleted() {
	if m == nil {
		return
	}
	m.missionsComplete.Inc()
}

func (m *Metrics) PairFailed(stage string) {
	if m == nil {
		return
	}
	m.pairFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) MissionsReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.missionsReaped.Add(float64(n))
}

func (m *Metrics) OutboxApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxApplied.Add(float64(n))
}

func (m *Metrics) OutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailed.Inc()
}

func (m *Metrics) OutboxStuck(n int64) {
	if m == nil {
		return
	}
	m.outboxStuck.Set(float64(n))
}

func (m *Metrics) ResolverLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.resolverLookups.WithLabelValues("hit").Inc()
		return
	}
	m.resolverLookups.WithLabelValues("miss").Inc()
}
