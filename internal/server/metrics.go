package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request and draw counters.
type Metrics interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, d time.Duration)
	IncDraws(spreadID string)
}

type promMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	draws           *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) Metrics {
	f := promauto.With(reg)
	return &promMetrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arcanad_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arcanad_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		draws: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arcanad_draws_total",
			Help: "Total number of draws per spread",
		}, []string{"spread"}),
	}
}

func (m *promMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, statusBucket(status)).Inc()
}

func (m *promMetrics) ObserveRequestDuration(endpoint string, d time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *promMetrics) IncDraws(spreadID string) {
	m.draws.WithLabelValues(spreadID).Inc()
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noopMetrics struct{}

func (noopMetrics) IncRequestsTotal(string, int)                 {}
func (noopMetrics) ObserveRequestDuration(string, time.Duration) {}
func (noopMetrics) IncDraws(string)                              {}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps next with request metrics labelled by the matched route.
func instrument(m Metrics, mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		mux.ServeHTTP(rec, r)
		m.ObserveRequestDuration(pattern, time.Since(start))
		m.IncRequestsTotal(pattern, rec.status)
	})
}
