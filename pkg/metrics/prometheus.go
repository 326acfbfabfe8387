// Package metrics provides Prometheus metrics for the zkPresence service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the zkPresence service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	scoringLatency prometheus.Histogram
	presenceCases  *prometheus.CounterVec

	// Result cache
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheCorrupt     prometheus.Counter
	cacheWriteErrors prometheus.Counter
	cacheEntries     prometheus.Gauge

	// Dataset loading
	datasetRecords      *prometheus.GaugeVec
	datasetLoadDuration *prometheus.HistogramVec
	datasetLoadErrors   *prometheus.CounterVec
	fetchAttempts       prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// process pairs the global manager with the custom registry it is
// registered on. The custom registry keeps default Go metrics out.
type process struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[process] //nolint:gochecknoglobals // intentional global for singleton metrics manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure replaces the process-wide manager with one built from opts on a
// fresh registry and returns it. Call it at startup, before handlers capture
// GetRegistry.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	opts = append(append([]Option(nil), opts...), WithPrometheusRegistry(registry))
	m := NewManager(opts...)
	current.Store(&process{manager: m, registry: registry})
	return m
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "zkpresence",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Enabled reports whether collection is on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge-style system metrics should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("scoring_latency_milliseconds"),
		Help:        "Histogram of presence scoring latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.presenceCases = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("presence_results_total"),
			Help:        "Computed presence results by season membership",
			ConstLabels: constLabels,
		},
		[]string{"case"},
	)

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_hits_total"),
		Help:        "Result cache hits",
		ConstLabels: constLabels,
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_misses_total"),
		Help:        "Result cache misses",
		ConstLabels: constLabels,
	})

	m.cacheCorrupt = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_corrupt_entries_total"),
		Help:        "Cache entries that could not be decoded and were treated as misses",
		ConstLabels: constLabels,
	})

	m.cacheWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_write_errors_total"),
		Help:        "Failed result cache writes",
		ConstLabels: constLabels,
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_entries"),
		Help:        "Number of cached presence results",
		ConstLabels: constLabels,
	})

	m.datasetRecords = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("dataset_records"),
			Help:        "Records in the loaded leaderboard dataset by season",
			ConstLabels: constLabels,
		},
		[]string{"season"},
	)

	m.datasetLoadDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("dataset_load_duration_milliseconds"),
			Help:        "Time to fetch and parse a season dataset",
			Buckets:     m.histogramBuckets,
			ConstLabels: constLabels,
		},
		[]string{"season"},
	)

	m.datasetLoadErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("dataset_load_errors_total"),
			Help:        "Failed dataset loads by season",
			ConstLabels: constLabels,
		},
		[]string{"season"},
	)

	m.fetchAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fetch_attempts_total"),
		Help:        "Outbound dataset fetch attempts including retries",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and type",
			ConstLabels: constLabels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_type_total"),
			Help:        "Errors by type and severity",
			ConstLabels: constLabels,
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "HTTP errors by endpoint, method and type",
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("error_latency_milliseconds"),
			Help:        "Latency of operations that ended in an error",
			Buckets:     m.histogramBuckets,
			ConstLabels: constLabels,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_bytes"),
		Help:        "Heap memory in use",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_milliseconds"),
		Help:        "Most recent GC pause in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})
}

// Scoring Metrics Functions.

// RecordScoringLatency records the time spent computing one result.
func RecordScoringLatency(latencyMs float64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.scoringLatency.Observe(latencyMs)
}

// RecordPresenceCase counts a computed result by season membership.
func RecordPresenceCase(presenceCase string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.presenceCases.WithLabelValues(presenceCase).Inc()
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	m := Global()
	if !m.enabled {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	m := Global()
	if !m.enabled {
		return
	}
	m.cacheMisses.Inc()
}

// RecordCacheCorrupt increments the corrupt entry counter.
func RecordCacheCorrupt() {
	m := Global()
	if !m.enabled {
		return
	}
	m.cacheCorrupt.Inc()
}

// RecordCacheWriteError increments the cache write error counter.
func RecordCacheWriteError() {
	m := Global()
	if !m.enabled {
		return
	}
	m.cacheWriteErrors.Inc()
}

// UpdateCacheSize sets the number of cached results.
func UpdateCacheSize(count int) {
	m := Global()
	if !m.enabled {
		return
	}
	m.cacheEntries.Set(float64(count))
}

// Dataset Metrics Functions.

// UpdateDatasetRecords sets the record count of a loaded season.
func UpdateDatasetRecords(season string, count int) {
	m := Global()
	if !m.enabled {
		return
	}
	m.datasetRecords.WithLabelValues(season).Set(float64(count))
}

// RecordDatasetLoad records how long a season took to fetch and parse.
func RecordDatasetLoad(season string, durationMs float64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.datasetLoadDuration.WithLabelValues(season).Observe(durationMs)
}

// RecordDatasetLoadError increments the load error counter for a season.
func RecordDatasetLoadError(season string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.datasetLoadErrors.WithLabelValues(season).Inc()
}

// RecordFetchAttempt increments the outbound fetch attempt counter.
func RecordFetchAttempt() {
	m := Global()
	if !m.enabled {
		return
	}
	m.fetchAttempts.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	m := Global()
	if !m.enabled {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	m := Global()
	if !m.enabled {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	m := Global()
	if !m.enabled {
		return
	}
	m.systemGCPauseTime.Observe(pauseMs)
}

// Global returns the process-wide manager.
func Global() *Manager {
	return current.Load().manager
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
