// Package metrics exposes grading and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	scoreRatio      prometheus.Histogram
}

// New registers the collectors with reg. Tests pass a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testgrade_submissions_total",
				Help: "Grading calls by outcome",
			},
			[]string{"status"},
		),
		scoreRatio: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "testgrade_score_ratio",
				Help:    "Score divided by the auto-gradable maximum, for graded submissions with a non-zero maximum",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.submissions, m.scoreRatio)
	return m
}

// ObserveSubmission records one grading call.
func (m *Metrics) ObserveSubmission(status string, score, maxAuto float64) {
	m.submissions.WithLabelValues(status).Inc()
	if status == "ok" && maxAuto > 0 {
		m.scoreRatio.Observe(score / maxAuto)
	}
}

// Middleware labels requests by chi route pattern, not raw path, to keep
// label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
