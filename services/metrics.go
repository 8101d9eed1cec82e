package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service-level Prometheus collectors.
type Metrics struct {
	Calculations   *prometheus.CounterVec
	Scans          *prometheus.CounterVec
	ScanDuration   *prometheus.HistogramVec
	AnalyzerCache  *prometheus.CounterVec
	QuotaRejected  prometheus.Counter
	PaymentsByStat *prometheus.CounterVec
	WSConnections  prometheus.Gauge
}

// NewMetrics registers the collectors on reg; pass prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calculations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sikalori_metrics_calculations_total",
			Help: "Health metric calculations by goal",
		}, []string{"goal"}),

		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sikalori_scans_total",
			Help: "Food scans by source and outcome",
		}, []string{"source", "outcome"}),

		ScanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sikalori_scan_duration_seconds",
			Help:    "Time spent analysing a scan",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),

		AnalyzerCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sikalori_analyzer_cache_total",
			Help: "Analyzer cache lookups by result",
		}, []string{"result"}),

		QuotaRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "sikalori_quota_rejected_total",
			Help: "Scans rejected by the free-tier quota",
		}),

		PaymentsByStat: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sikalori_payments_total",
			Help: "Payment state transitions",
		}, []string{"status"}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "sikalori_ws_connections",
			Help: "Open realtime websocket connections",
		}),
	}
}
