// Package metrics defines the Prometheus collectors for the assistant.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_askbot_turns_total",
			Help: "Conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	SynthesisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wms_askbot_synthesis_duration_seconds",
			Help:    "Duration of language model calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GateRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wms_askbot_gate_rejections_total",
			Help: "Generated statements rejected by the safety gate",
		},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wms_askbot_query_duration_seconds",
			Help:    "Duration of warehouse queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_askbot_escalations_total",
			Help: "Escalation issues created, by notification result",
		},
		[]string{"delivered"},
	)

	MailAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_askbot_mail_attempts_total",
			Help: "SMTP delivery attempts by transport mode and result",
		},
		[]string{"mode", "result"},
	)

	ArtifactsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wms_askbot_artifacts_swept_total",
			Help: "Expired result artifacts removed from the output directory",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wms_askbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wms_askbot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveQuery records a warehouse query duration.
func ObserveQuery(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	QueryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
