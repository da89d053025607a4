package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик поисковых операций (§4.C.3, §4.E)
type Metrics struct {
	// Cache (§4.C.2)
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	CacheBytesUsed   prometheus.Gauge

	// Search Executor (§4.E)
	SearchDuration     *prometheus.HistogramVec
	SearchesTotal      *prometheus.CounterVec
	MatchesProduced    prometheus.Histogram
	FilesScanned       prometheus.Histogram
	OverflowTotal      prometheus.Counter
	TimeoutTotal       prometheus.Counter
	ErrorsByKindTotal  *prometheus.CounterVec

	// Admission (§4.C.1, §4.G heartbeat)
	AdmissionSlotsInUse prometheus.Gauge
	AdmissionSlotsTotal prometheus.Gauge
	PoolUtilization     prometheus.Gauge

	// Housekeeping (§4.G)
	SpillFilesDeletedTotal prometheus.Counter

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of result cache hits",
			},
			[]string{"backend"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of result cache misses",
			},
			[]string{"backend"},
		),

		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries held in the local cache",
			},
		),

		CacheBytesUsed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_bytes_used",
				Help:      "Current estimated byte size of the local cache",
			},
		),

		SearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "search_duration_seconds",
				Help:      "Wall-clock duration of search() calls",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"cached", "partial"},
		),

		SearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "searches_total",
				Help:      "Total number of search() calls",
			},
			[]string{"outcome"}, // ok, partial, timeout
		),

		MatchesProduced: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matches_produced",
				Help:      "Total matches produced per search",
				Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),

		FilesScanned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "files_scanned",
				Help:      "Files examined per search across all services",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),

		OverflowTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "overflow_total",
				Help:      "Total searches whose match count exceeded preview_limit",
			},
		),

		TimeoutTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "timeout_total",
				Help:      "Total searches cancelled by the overall deadline",
			},
		),

		ErrorsByKindTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "errors_total",
				Help:      "Total errors by kind (apperror.ErrorCode)",
			},
			[]string{"kind"},
		),

		AdmissionSlotsInUse: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "admission_slots_in_use",
				Help:      "Global admission slots currently held",
			},
		),

		AdmissionSlotsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "admission_slots_total",
				Help:      "Configured global admission capacity (N)",
			},
		),

		PoolUtilization: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "coordination_pool_utilization",
				Help:      "Result-cache keys as a fraction of the configured entry cap, sampled by housekeeping (connection pool usage is not measured)",
			},
		),

		SpillFilesDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "spill_files_deleted_total",
				Help:      "Total spill files removed by the retention sweep",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("logai", "engine")
	}
	return defaultMetrics
}

// RecordCacheHit записывает попадание в кэш
func (m *Metrics) RecordCacheHit(backend string) {
	m.CacheHitsTotal.WithLabelValues(backend).Inc()
}

// RecordCacheMiss записывает промах кэша
func (m *Metrics) RecordCacheMiss(backend string) {
	m.CacheMissesTotal.WithLabelValues(backend).Inc()
}

// SetCacheStats обновляет текущие размеры локального кэша
func (m *Metrics) SetCacheStats(entries int, bytesUsed int64) {
	m.CacheEntries.Set(float64(entries))
	m.CacheBytesUsed.Set(float64(bytesUsed))
}

// RecordSearch записывает итог одного вызова search()
func (m *Metrics) RecordSearch(cached, partial, overflow, timedOut bool, duration time.Duration, matches, filesScanned int) {
	m.SearchDuration.WithLabelValues(boolLabel(cached), boolLabel(partial)).Observe(duration.Seconds())

	outcome := "ok"
	switch {
	case timedOut:
		outcome = "timeout"
	case partial:
		outcome = "partial"
	}
	m.SearchesTotal.WithLabelValues(outcome).Inc()

	m.MatchesProduced.Observe(float64(matches))
	m.FilesScanned.Observe(float64(filesScanned))

	if overflow {
		m.OverflowTotal.Inc()
	}
	if timedOut {
		m.TimeoutTotal.Inc()
	}
}

// RecordError increments the error counter for a given kind (apperror.Kind).
func (m *Metrics) RecordError(kind string) {
	m.ErrorsByKindTotal.WithLabelValues(kind).Inc()
}

// SetAdmissionGauges updates the admission gauges sampled by housekeeping (§4.G).
func (m *Metrics) SetAdmissionGauges(inUse, total int) {
	m.AdmissionSlotsInUse.Set(float64(inUse))
	m.AdmissionSlotsTotal.Set(float64(total))
}

// SetPoolUtilization records the fraction of the result-cache entry cap in use.
func (m *Metrics) SetPoolUtilization(fraction float64) {
	m.PoolUtilization.Set(fraction)
}

// RecordSpillFilesDeleted records how many spill files one retention sweep removed.
func (m *Metrics) RecordSpillFilesDeleted(n int) {
	m.SpillFilesDeletedTotal.Add(float64(n))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
