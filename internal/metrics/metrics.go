// Package metrics exposes Prometheus counters for the practice flow and an
// HTTP middleware recording request metrics.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview_coach"

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "practice_sessions_started_total",
		Help:      "Practice sessions started",
	})

	feedbackRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_requests_total",
		Help:      "Feedback requests by outcome",
	}, []string{"outcome"})

	feedbackLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feedback_request_duration_seconds",
		Help:      "Duration of feedback requests in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45},
	})

	historyAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_records_appended_total",
		Help:      "Practice history records appended",
	})

	questionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_ingested_total",
		Help:      "New questions inserted by ingestion source",
	}, []string{"source"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})
)

// Feedback outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

func SessionStarted() {
	sessionsStarted.Inc()
}

func FeedbackRequest(outcome string, took time.Duration) {
	feedbackRequests.WithLabelValues(outcome).Inc()
	feedbackLatency.Observe(took.Seconds())
}

func HistoryAppended() {
	historyAppended.Inc()
}

func QuestionsIngested(source string, n int) {
	if n > 0 {
		questionsIngested.WithLabelValues(source).Add(float64(n))
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrade pass through the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request count, latency and in-flight requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   routeLabel(r.URL.Path),
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses per-file media paths and static assets into one label each.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/media/"):
		return "/api/media/{name}"
	case strings.HasPrefix(path, "/api/"), path == "/ws", path == "/metrics":
		return path
	default:
		return "/static"
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
