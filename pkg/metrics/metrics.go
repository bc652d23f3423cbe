package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "detector"

// Outcome labels for UploadsTotal.
const (
	OutcomeAnnotated   = "annotated"
	OutcomeNoObjects   = "no_objects"
	OutcomeBadImage    = "bad_image"
	OutcomeModelError  = "model_error"
	OutcomeServerError = "server_error"
)

type Metrics struct {
	registry        *prometheus.Registry
	uploadsTotal    *prometheus.CounterVec
	detectionsTotal prometheus.Counter
	modelDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded images by outcome.",
		}, []string{"outcome"}),
		detectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_drawn_total",
			Help:      "Bounding boxes drawn onto annotated images.",
		}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of prediction requests to the model endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.uploadsTotal,
		m.detectionsTotal,
		m.modelDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveUpload(outcome string) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddDetections(n int) {
	m.detectionsTotal.Add(float64(n))
}

func (m *Metrics) ObserveModelRequest(status string, d time.Duration) {
	m.modelDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
