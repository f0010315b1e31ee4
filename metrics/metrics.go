// Package metrics wraps a Prometheus registry with the counters, gauges,
// and histogram that describe a running store's activity. It has no
// listener of its own — an embedder mounts the handler it exposes on
// whatever HTTP server it already runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, gauge, and histogram the store publishes.
type Metrics struct {
	registry *prometheus.Registry

	Puts          prometheus.Counter
	Gets          prometheus.Counter
	Deletes       prometheus.Counter
	GetNotFound   prometheus.Counter
	Flushes       prometheus.Counter
	Compactions   prometheus.Counter
	CompactionDur prometheus.Histogram
	L0Files       prometheus.Gauge
	L1Files       prometheus.Gauge
}

// New creates a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_puts_total",
			Help: "Total number of put operations.",
		}),
		Gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_gets_total",
			Help: "Total number of get operations.",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_deletes_total",
			Help: "Total number of delete operations.",
		}),
		GetNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_get_not_found_total",
			Help: "Total number of get operations that found no live value.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_flushes_total",
			Help: "Total number of memtable flushes to L0.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lsmkv_compactions_total",
			Help: "Total number of L0-to-L1 compaction passes that retired L0 files.",
		}),
		CompactionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lsmkv_compaction_duration_seconds",
			Help:    "Duration of L0-to-L1 compaction passes.",
			Buckets: prometheus.DefBuckets,
		}),
		L0Files: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lsmkv_l0_files",
			Help: "Current number of L0 SST files.",
		}),
		L1Files: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lsmkv_l1_files",
			Help: "Current number of L1 SST files.",
		}),
	}

	reg.MustRegister(m.Puts, m.Gets, m.Deletes, m.GetNotFound, m.Flushes,
		m.Compactions, m.CompactionDur, m.L0Files, m.L1Files)

	return m
}

// IncPuts, IncGets, IncDeletes, IncGetNotFound, IncFlushes, and
// IncCompactions are thin convenience wrappers so callers don't need to
// reach into the underlying prometheus.Counter fields directly.
func (m *Metrics) IncPuts()        { m.Puts.Inc() }
func (m *Metrics) IncGets()        { m.Gets.Inc() }
func (m *Metrics) IncDeletes()     { m.Deletes.Inc() }
func (m *Metrics) IncGetNotFound() { m.GetNotFound.Inc() }
func (m *Metrics) IncFlushes()     { m.Flushes.Inc() }
func (m *Metrics) IncCompactions() { m.Compactions.Inc() }

// ObserveCompactionSeconds records one compaction pass's wall-clock
// duration.
func (m *Metrics) ObserveCompactionSeconds(seconds float64) {
	m.CompactionDur.Observe(seconds)
}

// PublishLevelFileCounts updates the level file-count gauges. Called after
// every flush and compaction.
func (m *Metrics) PublishLevelFileCounts(l0, l1 int) {
	m.L0Files.Set(float64(l0))
	m.L1Files.Set(float64(l1))
}

// Handler returns an http.Handler exposing these metrics in the Prometheus
// text exposition format, for an embedder to mount.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
