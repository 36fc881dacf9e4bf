package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Bridge HTTP metrics. Backend call, session, points and chat metrics live
// in internal/metrics; all of them are exposed on the same /metrics route.

var (
	// httpRequestsTotal counts bridge requests by method, route pattern, and status.
	//
	// Labels: method, route (/api/v1/rewards/{id}/redeem), status
	// Type: Counter
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Total number of bridge HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// httpRequestDuration measures bridge request processing time, which
	// includes the backend round trip for pass-through routes.
	//
	// Labels: method, route
	// Type: Histogram
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "Bridge HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// httpRequestSize tracks request body sizes.
	//
	// Labels: method, route
	// Type: Histogram
	// Buckets: Exponential from 100 bytes to 100 MB
	httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_size_bytes",
			Help:    "Bridge HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)

	// httpResponseSize tracks response body sizes.
	//
	// Labels: method, route
	// Type: Histogram
	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_response_size_bytes",
			Help:    "Bridge HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestSize)
	prometheus.MustRegister(httpResponseSize)
}

// Metrics creates middleware for collecting bridge HTTP metrics.
//
// Requests are labeled with the matched chi route pattern rather than the
// raw path, so /api/v1/rewards/r1/redeem and /api/v1/rewards/r2/redeem share
// one series. Unmatched requests are labeled "unmatched".
//
// Example Prometheus queries:
//
//	# Error rate percentage
//	sum(rate(bridge_http_requests_total{status=~"5.."}[5m])) / sum(rate(bridge_http_requests_total[5m]))
//
//	# P95 latency
//	histogram_quantile(0.95, rate(bridge_http_request_duration_seconds_bucket[5m]))
//
// Usage:
//
//	r.Use(middleware.Metrics())
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			if r.ContentLength > 0 {
				httpRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, route).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routePattern returns the chi pattern matched for r. Only valid after
// the router has served the request.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
//
// Usage:
//
//	r.Get("/metrics", middleware.MetricsHandler().ServeHTTP)
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
