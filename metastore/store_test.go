package metastore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/metastage/metastage/kit/prom/promtest"
	platformerrors "github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	platformtesting "github.com/metastage/metastage/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPrefix = "test-meta-"

func initStore(f platformtesting.MetadataStoreFields, t *testing.T) (platformtesting.RecordStore, func()) {
	t.Helper()

	broker := messaging.NewBroker()
	topic := testPrefix + "records"
	require.NoError(t, broker.CreateTopic(context.Background(), messaging.Compacted(topic)))
	for _, r := range f.Records {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		_, err = broker.Append(topic, []byte(r.ID), b)
		require.NoError(t, err)
	}
	for _, key := range f.Deleted {
		_, err := broker.Append(topic, []byte(key), nil)
		require.NoError(t, err)
	}

	s, err := metastore.Open[*platformtesting.TestRecord](context.Background(), broker, "dev", "records", nil,
		metastore.WithLogger(zaptest.NewLogger(t)),
		metastore.WithTopicPrefix(testPrefix),
		metastore.WithReconnectTimeout(10*time.Millisecond),
	)
	require.NoError(t, err)
	return s, func() {
		_ = s.Close()
		_ = broker.Close()
	}
}

func TestMetadataStore(t *testing.T) {
	platformtesting.MetadataStore(initStore, t)
}

func newTestStore(t *testing.T, broker *messaging.Broker, opts ...metastore.Option) *metastore.Store[*platformtesting.TestRecord] {
	t.Helper()
	opts = append([]metastore.Option{
		metastore.WithLogger(zaptest.NewLogger(t)),
		metastore.WithTopicPrefix(testPrefix),
		metastore.WithReconnectTimeout(5 * time.Millisecond),
	}, opts...)
	s, err := metastore.Open[*platformtesting.TestRecord](context.Background(), broker, "dev", "records", nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func await[T any](t *testing.T, f interface {
	Await(context.Context) (T, error)
}) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestStore_OpenCreatesCompactedTopic(t *testing.T) {
	broker := messaging.NewBroker()
	s := newTestStore(t, broker)

	assert.Equal(t, testPrefix+"records", s.Topic())
	desc, err := broker.DescribeTopic(context.Background(), s.Topic())
	require.NoError(t, err)
	assert.Equal(t, "compact", desc.Configs["cleanup.policy"])
	assert.Equal(t, 1, desc.Partitions)
}

func TestStore_SaveFailsWhenBrokerRejects(t *testing.T) {
	broker := messaging.NewBroker()
	reg := prometheus.NewRegistry()
	m := metastore.NewMetrics()
	reg.MustRegister(m.PrometheusCollectors()...)
	s := newTestStore(t, broker, metastore.WithMetrics(m))

	broker.FailProduce(errors.New("not enough replicas"))
	_, err := await[*platformtesting.TestRecord](t, s.Save(context.Background(), &platformtesting.TestRecord{ID: "a"}))
	require.Error(t, err)
	assert.Equal(t, platformerrors.EUnavailable, platformerrors.ErrorCode(err))
	assert.Equal(t, "metastore/Save", platformerrors.ErrorOp(err))
	assert.Contains(t, err.Error(), "not enough replicas")

	_, ok := s.Get("a")
	assert.False(t, ok)

	_, err = await[struct{}](t, s.DeleteKey(context.Background(), "a"))
	assert.Equal(t, "metastore/Delete", platformerrors.ErrorOp(err))

	mfs := promtest.MustGather(t, reg)
	metric := promtest.MustFindMetric(t, mfs, "metastage_metastore_write_errors_total", map[string]string{
		"environment": "dev",
		"store":       "records",
	})
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestStore_RecoversFromConsumptionErrors(t *testing.T) {
	broker := messaging.NewBroker()
	reg := prometheus.NewRegistry()
	m := metastore.NewMetrics()
	reg.MustRegister(m.PrometheusCollectors()...)
	s := newTestStore(t, broker, metastore.WithMetrics(m))

	_, err := await[*platformtesting.TestRecord](t, s.Save(context.Background(), &platformtesting.TestRecord{ID: "a", Value: "1"}))
	require.NoError(t, err)

	broker.FailReads(errors.New("connection reset"))
	labels := map[string]string{"environment": "dev", "store": "records"}
	require.Eventually(t, func() bool {
		metric := promtest.FindMetric(promtest.MustGather(t, reg), "metastage_metastore_consume_errors_total", labels)
		return metric != nil && metric.GetCounter().GetValue() >= 2
	}, 5*time.Second, 5*time.Millisecond)

	// reads keep serving the last known view during the outage.
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", got.Value)

	broker.FailReads(nil)
	_, err = await[*platformtesting.TestRecord](t, s.Save(context.Background(), &platformtesting.TestRecord{ID: "b", Value: "2"}))
	require.NoError(t, err)

	got, ok = s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", got.Value)
	assert.Len(t, s.GetAll(), 2)
}

func TestStore_SkipsUndecodableRecords(t *testing.T) {
	broker := messaging.NewBroker()
	reg := prometheus.NewRegistry()
	m := metastore.NewMetrics()
	reg.MustRegister(m.PrometheusCollectors()...)

	topic := testPrefix + "records"
	require.NoError(t, broker.CreateTopic(context.Background(), messaging.Compacted(topic)))
	_, err := broker.Append(topic, []byte("broken"), []byte("{not json"))
	require.NoError(t, err)
	_, err = broker.Append(topic, []byte("ok"), []byte(`{"id":"ok","value":"fine"}`))
	require.NoError(t, err)

	s := newTestStore(t, broker, metastore.WithMetrics(m))
	ok, err := await[bool](t, s.WaitForInitialization(5*time.Second, time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	_, found := s.Get("broken")
	assert.False(t, found)
	got, found := s.Get("ok")
	require.True(t, found)
	assert.Equal(t, "fine", got.Value)

	mfs := promtest.MustGather(t, reg)
	labels := map[string]string{"environment": "dev", "store": "records"}
	assert.Equal(t, float64(1), promtest.MustFindMetric(t, mfs, "metastage_metastore_decode_errors_total", labels).GetCounter().GetValue())
	assert.Equal(t, float64(1), promtest.MustFindMetric(t, mfs, "metastage_metastore_records", labels).GetGauge().GetValue())
}

func TestStore_WaitForInitialization(t *testing.T) {
	t.Run("idle window elapses before the end offset is reached", func(t *testing.T) {
		broker := messaging.NewBroker()
		topic := testPrefix + "records"
		require.NoError(t, broker.CreateTopic(context.Background(), messaging.Compacted(topic)))
		_, err := broker.Append(topic, []byte("a"), []byte(`{"id":"a"}`))
		require.NoError(t, err)
		// nothing is readable, so the end offset is never reached.
		broker.FailReads(errors.New("unavailable"))

		mock := clock.NewMock()
		s := newTestStore(t, broker, metastore.WithClock(mock))

		f := s.WaitForInitialization(time.Minute, 10*time.Second)
		require.Eventually(t, func() bool {
			mock.Add(time.Second)
			_, _, done := f.Result()
			return done
		}, 5*time.Second, time.Millisecond)

		ok, err := await[bool](t, f)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("max wait", func(t *testing.T) {
		broker := messaging.NewBroker()
		topic := testPrefix + "records"
		require.NoError(t, broker.CreateTopic(context.Background(), messaging.Compacted(topic)))
		_, err := broker.Append(topic, []byte("a"), []byte(`{"id":"a"}`))
		require.NoError(t, err)
		broker.FailReads(errors.New("unavailable"))

		s := newTestStore(t, broker)
		ok, err := await[bool](t, s.WaitForInitialization(20*time.Millisecond, time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_CloseFailsPendingWrites(t *testing.T) {
	broker := messaging.NewBroker()
	s := newTestStore(t, broker)
	broker.FailReads(errors.New("unavailable"))

	f := s.Save(context.Background(), &platformtesting.TestRecord{ID: "a"})
	require.NoError(t, s.Close())

	_, err := await[*platformtesting.TestRecord](t, f)
	require.Error(t, err)
	assert.Equal(t, platformerrors.EUnavailable, platformerrors.ErrorCode(err))
}
