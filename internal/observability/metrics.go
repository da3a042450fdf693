// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the detector.
type Metrics struct {
	// Ingestion metrics
	LiquidationsReceived  *prometheus.CounterVec
	LiquidationsStored    prometheus.Counter
	EventProcessingErrors *prometheus.CounterVec
	FeedReconnects        prometheus.Counter

	// Engine metrics
	CalculationLatency prometheus.Histogram
	TrackedSymbols     prometheus.Gauge
	EngineMemoryKB     prometheus.Gauge
	QueueDepth         prometheus.Gauge
	DegradedMode       prometheus.Gauge

	// Risk metrics
	AssessmentsTotal *prometheus.CounterVec
	BroadcastsTotal  prometheus.Counter
	BroadcastErrors  prometheus.Counter

	// Database metrics
	DBWriteDuration *prometheus.HistogramVec
	DBWriteErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cascade_lab"
	}

	return &Metrics{
		LiquidationsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "liquidations_received_total",
			Help:      "Total number of liquidation events received by exchange",
		}, []string{"exchange"}),
		LiquidationsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "liquidations_stored_total",
			Help:      "Total number of liquidation events written to the store",
		}),
		EventProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by type",
		}, []string{"error_type"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_reconnects_total",
			Help:      "Total number of liquidation feed reconnect attempts",
		}),

		CalculationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "calculation_latency_seconds",
			Help:      "Velocity snapshot calculation latency in seconds",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		TrackedSymbols: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tracked_symbols",
			Help:      "Number of symbols with event history",
		}),
		EngineMemoryKB: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "memory_estimate_kb",
			Help:      "Estimated engine memory footprint in KB",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Current depth of the inbound event queue",
		}),
		DegradedMode: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "degraded_mode",
			Help:      "1 while the manager serves coarse snapshots under load",
		}),

		AssessmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total number of risk assessments by level",
		}, []string{"level"}),
		BroadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "broadcasts_total",
			Help:      "Total number of assessments published",
		}),
		BroadcastErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "broadcast_errors_total",
			Help:      "Total number of failed assessment publishes",
		}),

		DBWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "write_duration_seconds",
			Help:      "Database write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database"}),
		DBWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "write_errors_total",
			Help:      "Total number of database write errors",
		}, []string{"database"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordLiquidation increments the received counter for the exchange.
func RecordLiquidation(exchange string) {
	DefaultMetrics.LiquidationsReceived.WithLabelValues(exchange).Inc()
}

// RecordAssessment increments the assessment counter for the risk level.
func RecordAssessment(level string) {
	DefaultMetrics.AssessmentsTotal.WithLabelValues(level).Inc()
}

// RecordBroadcast records a publish attempt.
func RecordBroadcast(err error) {
	DefaultMetrics.BroadcastsTotal.Inc()
	if err != nil {
		DefaultMetrics.BroadcastErrors.Inc()
	}
}

// RecordEventError records an event processing error.
func RecordEventError(errorType string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(errorType).Inc()
}

// RecordDBWrite records a store write.
func RecordDBWrite(database string, seconds float64, err error) {
	DefaultMetrics.DBWriteDuration.WithLabelValues(database).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBWriteErrors.WithLabelValues(database).Inc()
	}
}

// UpdateEngineGauges refreshes the engine gauges from current state.
func UpdateEngineGauges(symbols int, memoryKB float64, queueDepth int, degraded bool) {
	DefaultMetrics.TrackedSymbols.Set(float64(symbols))
	DefaultMetrics.EngineMemoryKB.Set(memoryKB)
	DefaultMetrics.QueueDepth.Set(float64(queueDepth))
	if degraded {
		DefaultMetrics.DegradedMode.Set(1)
	} else {
		DefaultMetrics.DegradedMode.Set(0)
	}
}
