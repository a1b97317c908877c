package metric_test

import (
	"errors"
	"testing"

	"github.com/metastage/metastage/kit/metric"
	perrors "github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/kit/prom/promtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestREDClient_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metric.New(reg, "staging", metric.WithSuffix("service"))

	require.NoError(t, rec.Record("prepare")(nil))
	err := &perrors.Error{Code: perrors.EInvalid}
	require.Equal(t, err, rec.Record("prepare")(err))
	require.Error(t, rec.Record("perform")(errors.New("plain")))

	mfs := promtest.MustGather(t, reg)

	calls := promtest.MustFindMetric(t, mfs, "metastage_staging_service_call_total", map[string]string{"method": "prepare"})
	require.Equal(t, float64(2), calls.GetCounter().GetValue())

	invalid := promtest.MustFindMetric(t, mfs, "metastage_staging_service_error_total", map[string]string{"method": "prepare", "code": perrors.EInvalid})
	require.Equal(t, float64(1), invalid.GetCounter().GetValue())

	internal := promtest.MustFindMetric(t, mfs, "metastage_staging_service_error_total", map[string]string{"method": "perform", "code": perrors.EInternal})
	require.Equal(t, float64(1), internal.GetCounter().GetValue())

	dur := promtest.MustFindMetric(t, mfs, "metastage_staging_service_duration_seconds", map[string]string{"method": "perform"})
	require.Equal(t, uint64(1), dur.GetHistogram().GetSampleCount())
}
