package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 采集相关指标；reg 为 nil 时只创建不注册
type Metrics struct {
	fetches     *prometheus.CounterVec
	stored      *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastSuccess *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendingarchive",
			Subsystem: "scheduler",
			Name:      "fetches_total",
			Help:      "Fetch attempts per source by outcome.",
		}, []string{"source", "outcome"}),
		stored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendingarchive",
			Subsystem: "scheduler",
			Name:      "rows_stored_total",
			Help:      "Rows committed per source.",
		}, []string{"source"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trendingarchive",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full ingestion cycle.",
			Buckets:   []float64{1, 10, 60, 120, 300, 600, 1200},
		}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trendingarchive",
			Subsystem: "scheduler",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful processing per source.",
		}, []string{"source"}),
	}
}
