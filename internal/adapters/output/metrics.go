// Package output exposes pipeline observability.
package output

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// PrometheusMetrics implements ports.MetricsCollector and serves /metrics.
type PrometheusMetrics struct {
	cycles           *prometheus.CounterVec
	alertsStored     prometheus.Counter
	blacklistInserts prometheus.Counter
	cleanupDeleted   prometheus.Counter
	historyLen       prometheus.GaugeFunc
	blacklistSize    prometheus.GaugeFunc

	server *http.Server
	mu     sync.Mutex
}

type MetricsConfig struct {
	Addr string
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr: ":9090",
		Path: "/metrics",
	}
}

// NewPrometheusMetrics registers the pipeline metrics. The gauge closures
// read live component state at scrape time.
func NewPrometheusMetrics(namespace string, historyLen, blacklistSize func() int) *PrometheusMetrics {
	if namespace == "" {
		namespace = "suriwatch"
	}

	m := &PrometheusMetrics{}

	m.cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_cycles_total",
		Help:      "Capture cycles completed, by outcome",
	}, []string{"result"})

	m.alertsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_stored_total",
		Help:      "New non-duplicate alerts stored in history",
	})

	m.blacklistInserts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blacklist_inserts_total",
		Help:      "New addresses appended to the blacklist",
	})

	m.cleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captures_deleted_total",
		Help:      "Expired transient capture files deleted by cleanup",
	})

	m.historyLen = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "alert_history_length",
		Help:      "Alerts currently retained in history",
	}, func() float64 {
		if historyLen != nil {
			return float64(historyLen())
		}
		return 0
	})

	m.blacklistSize = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "blacklist_size",
		Help:      "Addresses currently blacklisted",
	}, func() float64 {
		if blacklistSize != nil {
			return float64(blacklistSize())
		}
		return 0
	})

	return m
}

func (m *PrometheusMetrics) CycleCompleted(result string) {
	m.cycles.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) AlertsStored(count int) {
	if count > 0 {
		m.alertsStored.Add(float64(count))
	}
}

func (m *PrometheusMetrics) BlacklistInsert() {
	m.blacklistInserts.Inc()
}

func (m *PrometheusMetrics) CleanupDeleted(count int) {
	if count > 0 {
		m.cleanupDeleted.Add(float64(count))
	}
}

func (m *PrometheusMetrics) StartServer(config MetricsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(config.Path, promhttp.Handler())

	m.server = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", config.Addr).Str("path", config.Path).Msg("Starting metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server.Close()
	}
	return nil
}
