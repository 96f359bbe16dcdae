// Package metrics exposes the Prometheus instrumentation surface for
// the recording server: ingest throughput and failure counts, an
// active-recordings gauge, asset-cache hit/miss/inconsistency counters,
// and fetch latency.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures metric registration.
type Config struct {
	// Namespace is the metrics namespace (default: "domcorder").
	Namespace string

	// Registry is the Prometheus registry to register with.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Metrics holds the Prometheus instruments for one server instance.
type Metrics struct {
	RecordingsStarted    prometheus.Counter
	RecordingsCommitted  prometheus.Counter
	RecordingsQuarantined *prometheus.CounterVec
	ActiveRecordings     prometheus.Gauge
	FramesWritten        prometheus.Counter
	FramesDropped        *prometheus.CounterVec
	AssetCacheHits       prometheus.Counter
	AssetCacheMisses     prometheus.Counter
	AssetCacheInconsistencies *prometheus.CounterVec
	FetchDuration        *prometheus.HistogramVec
	FetchErrors          *prometheus.CounterVec
}

var (
	global     *Metrics
	globalOnce sync.Once
	globalMu   sync.Mutex
)

func defaultConfig() Config {
	return Config{
		Namespace: "domcorder",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// New registers and returns a fresh Metrics instance against cfg's
// registry. Call Init instead to share a process-wide singleton.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "domcorder"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "recordings_started_total",
			Help:      "Total number of recording sessions that delivered RecordingMetadata.",
		}),
		RecordingsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "recordings_committed_total",
			Help:      "Total number of recording sessions committed to the canonical directory.",
		}),
		RecordingsQuarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "recordings_quarantined_total",
			Help:      "Total number of recording sessions quarantined, by cause.",
		}, []string{"cause"}),
		ActiveRecordings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_recordings",
			Help:      "Number of recordings currently in the ACTIVE state.",
		}),
		FramesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_written_total",
			Help:      "Total number of frames persisted across all recordings.",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped by the ingest filter, by reason.",
		}, []string{"reason"}),
		AssetCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "asset_cache_hits_total",
			Help:      "Total number of assets resolved without storing new bytes.",
		}),
		AssetCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "asset_cache_misses_total",
			Help:      "Total number of assets stored as new blobs.",
		}),
		AssetCacheInconsistencies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "asset_cache_inconsistencies_total",
			Help:      "Total number of detected CAS/metadata inconsistencies, by kind.",
		}, []string{"kind"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of server-side fallback asset fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "fetch_errors_total",
			Help:      "Total server-side fallback fetch errors, by kind.",
		}, []string{"kind"}),
	}
}

// Init initializes (once) and returns the process-wide Metrics
// singleton. Subsequent calls return the same instance, ignoring cfg.
func Init(cfg Config) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(cfg)
	}
	return global
}

// Default returns the process-wide singleton, initializing it with
// default settings if Init was never called.
func Default() *Metrics {
	globalOnce.Do(func() {
		globalMu.Lock()
		if global == nil {
			global = New(defaultConfig())
		}
		globalMu.Unlock()
	})
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// ObserveFetch records the duration and outcome of one fallback fetch
// attempt.
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	m.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
