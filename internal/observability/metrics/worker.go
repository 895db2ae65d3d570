package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SplitWorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	splitTotal    *prometheus.CounterVec
	splitDuration *prometheus.HistogramVec
	splitInFlight prometheus.Gauge
	childrenPer   *prometheus.HistogramVec
}

func NewSplitWorkerMetrics(service string) *SplitWorkerMetrics {
	registry := prometheus.NewRegistry()

	splitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "split_total",
			Help:      "Total processed split submissions by status.",
		},
		[]string{"service", "status"},
	)
	splitDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "split_duration_seconds",
			Help:      "Split processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	splitInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "split_in_flight",
			Help:      "Number of in-flight split tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	childrenPer := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "split_children",
			Help:      "Distribution of child resources per resolved split.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)

	registry.MustRegister(splitTotal, splitDuration, splitInFlight, childrenPer)

	return &SplitWorkerMetrics{
		registry:      registry,
		service:       service,
		splitTotal:    splitTotal,
		splitDuration: splitDuration,
		splitInFlight: splitInFlight,
		childrenPer:   childrenPer,
	}
}

func (m *SplitWorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SplitWorkerMetrics) StartSplit() {
	m.splitInFlight.Inc()
}

func (m *SplitWorkerMetrics) FinishSplit(duration time.Duration, err error) {
	m.splitInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.splitTotal.WithLabelValues(m.service, status).Inc()
	m.splitDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *SplitWorkerMetrics) ObserveChildren(count int) {
	if count < 0 {
		return
	}
	m.childrenPer.WithLabelValues(m.service).Observe(float64(count))
}
