package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/metastage/metastage/kit/tracing"
	"github.com/metastage/metastage/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Middleware constructor.
type Middleware func(http.Handler) http.Handler

// SetCORS answers pre-flight requests and echoes the request origin.
func SetCORS(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			// Access-Control-Allow-Origin must be present in every response
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		if r.Method == http.MethodOptions {
			// allow and stop processing in pre-flight requests
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, User-Agent")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// NewRequestMetrics returns the request counter and duration histogram used
// by Metrics. The caller registers them.
func NewRequestMetrics(namespace string) (*prometheus.CounterVec, *prometheus.HistogramVec) {
	labels := []string{"handler", "method", "path", "status", "response_code"}
	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of http requests received",
	}, labels)
	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time taken to respond to HTTP request",
	}, labels)
	return reqs, dur
}

// Metrics records request counts and durations for 2XX and 5XX responses.
func Metrics(name string, reqMetric *prometheus.CounterVec, durMetric *prometheus.HistogramVec) Middleware {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			statusW := NewStatusResponseWriter(w)

			defer func(start time.Time) {
				statusCode := statusW.Code()
				// only log metrics for 2XX or 5XX requests
				if !reportFromCode(statusCode) {
					return
				}

				label := prometheus.Labels{
					"handler":       name,
					"method":        r.Method,
					"path":          routePattern(r),
					"status":        statusW.StatusCodeClass(),
					"response_code": fmt.Sprintf("%d", statusCode),
				}

				durMetric.With(label).Observe(time.Since(start).Seconds())
				reqMetric.With(label).Inc()
			}(time.Now())

			next.ServeHTTP(statusW, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Trace starts a span for every request, continuing a trace found in the headers.
func Trace(name string) Middleware {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			span, r := tracing.StartSpanFromHTTPRequest(r, name)
			defer span.Finish()

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Logging logs every request at debug level. Handlers find a logger tagged
// with the request id in the request context.
func Logging(log *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLog := log
			if id := middleware.GetReqID(r.Context()); id != "" {
				reqLog = log.With(zap.String("request_id", id))
			}
			r = r.WithContext(logger.NewContextWithLogger(r.Context(), reqLog))

			statusW := NewStatusResponseWriter(w)
			defer func(start time.Time) {
				reqLog.Debug("Request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status_code", statusW.Code()),
					zap.Int("response_size", statusW.ResponseBytes()),
					zap.Duration("took", time.Since(start)),
				)
			}(time.Now())

			next.ServeHTTP(statusW, r)
		}
		return http.HandlerFunc(fn)
	}
}

// routePattern prefers the chi route pattern so path parameters do not
// explode the label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// reportFromCode is a helper function to determine if telemetry data should be
// reported for this response.
func reportFromCode(c int) bool {
	return (c >= 200 && c <= 299) || (c >= 500 && c <= 599)
}
