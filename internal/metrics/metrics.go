package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	backendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathify",
		Name:      "backend_requests_total",
		Help:      "Calls made to the Mathify backend, by method, route and status.",
	}, []string{"method", "route", "status"})

	backendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mathify",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of calls to the Mathify backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	staleResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathify",
		Name:      "stale_responses_total",
		Help:      "Month-scoped responses dropped because a newer month was requested.",
	}, []string{"view"})

	sessionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mathify",
		Name:      "session_events_total",
		Help:      "Session bootstrap and teardown outcomes.",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(backendRequests, backendLatency, staleResponses, sessionEvents)
}

// ObserveBackend records one backend call. status is 0 for transport failures.
func ObserveBackend(method, path string, status int, took time.Duration) {
	route := Route(path)
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	backendRequests.WithLabelValues(method, route, code).Inc()
	backendLatency.WithLabelValues(method, route).Observe(took.Seconds())
}

// StaleResponse counts a dropped response for view.
func StaleResponse(view string) {
	staleResponses.WithLabelValues(view).Inc()
}

// SessionEvent counts login, fallback, logout and token invalidation.
func SessionEvent(event string) {
	sessionEvents.WithLabelValues(event).Inc()
}

// Route keeps the first three path segments so ids do not explode label cardinality.
func Route(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return "/" + strings.Join(parts, "/")
}
