// Package metrics exposes Prometheus collectors for HTTP traffic, ledger
// mutations, cached views and the spreadsheet mirror.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hisab"

// Metrics owns a private registry so tests and multiple servers never
// collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	mutations    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	mirrorRuns   *prometheus.CounterVec
	revision     prometheus.Gauge
	syncedRev    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Ledger mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_cache_lookups_total",
			Help:      "Derived view cache lookups by view and result.",
		}, []string{"view", "result"}),
		mirrorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_runs_total",
			Help:      "Spreadsheet mirror runs by outcome.",
		}, []string{"outcome"}),
		revision: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_revision",
			Help:      "Latest dataset revision written.",
		}),
		syncedRev: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_synced_revision",
			Help:      "Latest dataset revision mirrored to the spreadsheet.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.mutations, m.cacheLookups,
		m.mirrorRuns, m.revision, m.syncedRev,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordMutation counts a ledger action. revision is ignored on failure.
func (m *Metrics) RecordMutation(action string, revision int64, err error) {
	if err != nil {
		m.mutations.WithLabelValues(action, "error").Inc()
		return
	}
	m.mutations.WithLabelValues(action, "ok").Inc()
	m.revision.Set(float64(revision))
}

func (m *Metrics) RecordCacheLookup(view string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(view, result).Inc()
}

func (m *Metrics) RecordMirror(revision int64, err error) {
	if err != nil {
		m.mirrorRuns.WithLabelValues("error").Inc()
		return
	}
	m.mirrorRuns.WithLabelValues("ok").Inc()
	m.syncedRev.Set(float64(revision))
}
