package services

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "catdog"

// Metrics exposes service counters on a private registry so that several
// instances can coexist in one process (tests).
type Metrics struct {
	registry          *prometheus.Registry
	inferenceDuration *prometheus.HistogramVec
	inferenceTotal    *prometheus.CounterVec
	feedbackTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "inference_duration_seconds",
			Help:      "Classifier call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		inferenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inference_total",
			Help:      "Classification attempts by outcome.",
		}, []string{"outcome"}),
		feedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_total",
			Help:      "Feedback submissions by polarity and label.",
		}, []string{"polarity", "label"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inferenceDuration,
		m.inferenceTotal,
		m.feedbackTotal,
	)
	return m
}

func (m *Metrics) ObserveInference(elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.inferenceDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.inferenceTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFeedback(feedback int, label string) {
	if m == nil {
		return
	}
	m.feedbackTotal.WithLabelValues(strconv.Itoa(feedback), label).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
