package promtest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metastage",
		Name:      "calls_total",
	}, []string{"method", "code"})
	reg.MustRegister(calls)
	calls.WithLabelValues("prepare", "ok").Inc()
	calls.WithLabelValues("perform", "invalid").Add(2)

	mfs := MustGather(t, reg)

	m := MustFindMetric(t, mfs, "metastage_calls_total", map[string]string{"method": "perform", "code": "invalid"})
	assert.Equal(t, 2.0, m.GetCounter().GetValue())
	require.NotNil(t, FindMetric(mfs, "metastage_calls_total", map[string]string{"method": "prepare", "code": "ok"}))

	assert.Nil(t, FindMetric(mfs, "metastage_calls_total", map[string]string{"method": "perform"}))
	assert.Nil(t, FindMetric(mfs, "metastage_calls_total", map[string]string{"method": "perform", "status": "invalid"}))
	assert.Nil(t, FindMetric(mfs, "metastage_missing_total", nil))
}
