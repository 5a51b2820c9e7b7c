// Package metrics exposes Prometheus collectors for HTTP traffic and model
// inference.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voiceapi"

// Metrics owns a registry with the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	inferenceDuration *prometheus.HistogramVec
	inferenceErrors   *prometheus.CounterVec
	modelsLoaded      *prometheus.GaugeVec
}

// New builds the collectors plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route", "status"},
		),
		inferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_seconds",
				Help:      "Duration of model calls in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model", "operation"},
		),
		inferenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_errors_total",
				Help:      "Total number of failed model calls",
			},
			[]string{"model", "operation"},
		),
		modelsLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "models_loaded",
				Help:      "1 when the model of the given kind is loaded",
			},
			[]string{"model"},
		),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.inferenceDuration,
		m.inferenceErrors,
		m.modelsLoaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveInference records one model call.
func (m *Metrics) ObserveInference(model, operation string, d time.Duration, err error) {
	m.inferenceDuration.WithLabelValues(model, operation).Observe(d.Seconds())
	if err != nil {
		m.inferenceErrors.WithLabelValues(model, operation).Inc()
	}
}

// SetModelLoaded updates the loaded gauge for a model kind.
func (m *Metrics) SetModelLoaded(kind string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.modelsLoaded.WithLabelValues(kind).Set(v)
}

// Middleware records request durations labelled by the matched mux pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(p)
}

// Flush keeps streaming responses working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
