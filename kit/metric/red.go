// Package metric provides RED (rate, errors, duration) instrumentation for
// service middlewares.
package metric

import (
	"time"

	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ClientOptFn configures a REDClient.
type ClientOptFn func(*ClientOptions)

// ClientOptions holds the optional naming parts of the metrics.
type ClientOptions struct {
	Namespace string
	Subsystem string
}

// WithSuffix appends a suffix to the subsystem, e.g. "staging_perform".
func WithSuffix(suffix string) ClientOptFn {
	return func(o *ClientOptions) {
		o.Subsystem = o.Subsystem + "_" + suffix
	}
}

// WithNamespace overrides the default namespace.
func WithNamespace(ns string) ClientOptFn {
	return func(o *ClientOptions) {
		o.Namespace = ns
	}
}

// REDClient records call counts, error counts and durations per method.
type REDClient struct {
	callCount *prometheus.CounterVec
	errCount  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// New creates a REDClient for subsystem and registers its collectors with reg.
func New(reg prometheus.Registerer, subsystem string, opts ...ClientOptFn) *REDClient {
	o := ClientOptions{
		Namespace: "metastage",
		Subsystem: subsystem,
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := &REDClient{
		callCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      "call_total",
			Help:      "Number of calls",
		}, []string{"method"}),
		errCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      "error_total",
			Help:      "Number of errors encountered",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of calls",
		}, []string{"method"}),
	}
	reg.MustRegister(client.callCount, client.errCount, client.duration)
	return client
}

// Record starts a measurement for method. The returned func is called with
// the call's error and returns it unchanged.
func (c *REDClient) Record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		c.callCount.WithLabelValues(method).Inc()
		if err != nil {
			c.errCount.WithLabelValues(method, errors.ErrorCode(err)).Inc()
		}
		c.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		return err
	}
}
