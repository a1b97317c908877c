package staging

import (
	"context"

	"github.com/metastage/metastage/changes"
	"github.com/metastage/metastage/kit/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService is a metrics middleware for the staging service.
type MetricsService struct {
	// RED metrics
	rec *metric.REDClient

	// failed counts changes that could not be applied, by change type.
	failed *prometheus.CounterVec

	underlying Service
}

var _ Service = (*MetricsService)(nil)

// NewMetricsService creates a staging metrics middleware and registers its
// collectors with reg.
func NewMetricsService(reg prometheus.Registerer, underlying Service) *MetricsService {
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metastage",
		Subsystem: "staging",
		Name:      "failed_changes_total",
		Help:      "Number of staged changes that could not be applied",
	}, []string{"change_type"})
	reg.MustRegister(failed)

	return &MetricsService{
		rec:        metric.New(reg, "staging"),
		failed:     failed,
		underlying: underlying,
	}
}

// Prepare calls the underlying service and tracks RED metrics for the call.
func (ms *MetricsService) Prepare(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (*Staging, error) {
	rec := ms.rec.Record("prepare")
	s, err := ms.underlying.Prepare(ctx, applicationID, sourceEnvID, targetEnvID, filter)
	return s, rec(err)
}

// Perform calls the underlying service and tracks RED metrics for the call.
func (ms *MetricsService) Perform(ctx context.Context, st *Staging) ([]Result, error) {
	rec := ms.rec.Record("perform")
	results, err := ms.underlying.Perform(ctx, st)
	for _, r := range results {
		if !r.Succeeded {
			ms.failed.WithLabelValues(string(r.Change.Type())).Inc()
		}
	}
	return results, rec(err)
}
