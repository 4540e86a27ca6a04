// Package metrics exposes the Prometheus collectors of the service.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

// Metrics groups the business and database collectors
type Metrics struct {
	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration     *prometheus.HistogramVec
	FusionRulesTotal     *prometheus.CounterVec
	LLMFallbacksTotal    prometheus.Counter
	FeedbackTotal        prometheus.Counter
	RetrainsTotal        *prometheus.CounterVec
	CalibrationRunsTotal prometheus.Counter
	CalibrationAccuracy  prometheus.Gauge
	CalibrationRate      prometheus.Gauge

	dbOpenConnections prometheus.Gauge
	dbInUse           prometheus.Gauge
	dbIdle            prometheus.Gauge
	dbWaitCount       prometheus.Gauge
}

// New registers the collectors under namespace with reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total news analyses by final verdict",
		}, []string{"verdict"}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
		FusionRulesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_rules_total",
			Help:      "Fusion policy branches taken",
		}, []string{"flag"}),
		LLMFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Analyses that used the neutral LLM default",
		}),
		FeedbackTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Feedback records persisted",
		}),
		RetrainsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrains_total",
			Help:      "Retrain attempts by outcome",
		}, []string{"outcome"}),
		CalibrationRunsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_runs_total",
			Help:      "Completed calibration runs",
		}),
		CalibrationAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_average_accuracy",
			Help:      "Average accuracy of the last calibration run",
		}),
		CalibrationRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_rate_percent",
			Help:      "Share of analyses calibrated in the last run",
		}),
		dbOpenConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Open database connections",
		}),
		dbInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "in_use_connections",
			Help:      "Database connections in use",
		}),
		dbIdle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "idle_connections",
			Help:      "Idle database connections",
		}),
		dbWaitCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "wait_count",
			Help:      "Total connections waited for",
		}),
	}
}

// ObserveAnalysis records one finished analysis
func (m *Metrics) ObserveAnalysis(ctx context.Context, verdict, status string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(verdict).Inc()

	observer := m.AnalysisDuration.WithLabelValues(status)
	// Link the sample to the active trace when there is one
	if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(seconds, prometheus.Labels{"trace_id": span.SpanContext().TraceID().String()})
			return
		}
	}
	observer.Observe(seconds)
}

// FusionRule counts a fired fusion flag
func (m *Metrics) FusionRule(flag string) {
	if m == nil {
		return
	}
	m.FusionRulesTotal.WithLabelValues(flag).Inc()
}

// LLMFallback counts an analysis that used the neutral LLM default
func (m *Metrics) LLMFallback() {
	if m == nil {
		return
	}
	m.LLMFallbacksTotal.Inc()
}

// Feedback counts a persisted feedback record
func (m *Metrics) Feedback() {
	if m == nil {
		return
	}
	m.FeedbackTotal.Inc()
}

// Retrain counts a retrain attempt; outcome is "trained" or a reason code
func (m *Metrics) Retrain(outcome string) {
	if m == nil {
		return
	}
	m.RetrainsTotal.WithLabelValues(outcome).Inc()
}

// Calibration records a finished calibration run
func (m *Metrics) Calibration(rate, accuracy float64) {
	if m == nil {
		return
	}
	m.CalibrationRunsTotal.Inc()
	m.CalibrationRate.Set(rate)
	m.CalibrationAccuracy.Set(accuracy)
}

// UpdateDBStats copies connection pool stats into the gauges
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	s := db.Stats()
	m.dbOpenConnections.Set(float64(s.OpenConnections))
	m.dbInUse.Set(float64(s.InUse))
	m.dbIdle.Set(float64(s.Idle))
	m.dbWaitCount.Set(float64(s.WaitCount))
}
