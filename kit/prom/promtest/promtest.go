// Package promtest finds gathered prometheus metrics in tests.
package promtest

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MustGather gathers g and fails the test on error.
func MustGather(tb testing.TB, g prometheus.Gatherer) []*dto.MetricFamily {
	tb.Helper()
	mfs, err := g.Gather()
	if err != nil {
		tb.Fatalf("gathering metrics: %v", err)
	}
	return mfs
}

// FindMetric returns the metric of family name whose labels are exactly
// labels, or nil.
func FindMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	if fam := family(mfs, name); fam != nil {
		return match(fam, labels)
	}
	return nil
}

// MustFindMetric is FindMetric failing the test when nothing matches. The
// failure lists what was gathered instead.
func MustFindMetric(tb testing.TB, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	tb.Helper()

	fam := family(mfs, name)
	if fam == nil {
		names := make([]string, 0, len(mfs))
		for _, mf := range mfs {
			names = append(names, mf.GetName())
		}
		tb.Fatalf("no metric family %q; gathered:\n\t%s", name, strings.Join(names, "\n\t"))
	}

	m := match(fam, labels)
	if m == nil {
		sets := make([]string, 0, len(fam.Metric))
		for _, m := range fam.Metric {
			sets = append(sets, labelString(m))
		}
		tb.Fatalf("no %s metric with labels %v; gathered:\n\t%s", name, labels, strings.Join(sets, "\n\t"))
	}
	return m
}

func family(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func match(fam *dto.MetricFamily, labels map[string]string) *dto.Metric {
next:
	for _, m := range fam.Metric {
		if len(m.Label) != len(labels) {
			continue
		}
		for _, l := range m.Label {
			if v, ok := labels[l.GetName()]; !ok || v != l.GetValue() {
				continue next
			}
		}
		return m
	}
	return nil
}

func labelString(m *dto.Metric) string {
	pairs := make([]string, len(m.Label))
	for i, l := range m.Label {
		pairs[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ", ") + "}"
}
