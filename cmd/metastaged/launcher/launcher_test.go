package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changelog"
	"github.com/metastage/metastage/changes"
	icontext "github.com/metastage/metastage/context"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/staging"
	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jaeger "github.com/uber/jaeger-client-go"
)

// newTestLauncher returns a launcher serving on a random port backed by
// in-memory brokers.
func newTestLauncher(t *testing.T) *Launcher {
	t.Helper()
	l := NewLauncher()
	l.Stdout = io.Discard
	l.brokerType = MemoryBroker
	l.httpBindAddress = "127.0.0.1:0"
	l.storeInitMaxWait = 5 * time.Second
	l.storeInitIdle = time.Second
	l.storeReconnectTimeout = 10 * time.Millisecond
	l.environments = []environment.Config{{ID: "dev"}, {ID: "prod", Production: true}}
	return l
}

func TestLauncher_Run(t *testing.T) {
	l := newTestLauncher(t)
	ctx := context.Background()
	require.NoError(t, l.Run(ctx))
	defer func() {
		require.NoError(t, l.Shutdown(ctx))
		assert.False(t, l.Running())
	}()
	require.True(t, l.Running())

	resp, err := http.Get(l.URL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	envs, err := l.Environments().ListEnvironments(ctx)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.False(t, envs[0].Stagable)
	assert.True(t, envs[1].Stagable)
}

func TestLauncher_StageTopic(t *testing.T) {
	l := newTestLauncher(t)
	ctx := context.Background()
	require.NoError(t, l.Run(ctx))
	defer l.Shutdown(ctx)

	// applications live on the last environment by default.
	require.NoError(t, l.ApplicationService().RegisterApplication(ctx, &metastage.Application{ID: "shop", Name: "Shop"}))

	pctx := icontext.SetPrincipal(ctx, icontext.Principal{ID: "jdoe", FullName: "Jane Doe"})
	require.NoError(t, l.TopicService().CreateTopic(pctx, "dev", &metastage.TopicMetadata{
		Name:               "shop.audit",
		Type:               metastage.TopicTypeInternal,
		OwnerApplicationID: "shop",
	}, metastage.TopicCreateParams{NumberOfPartitions: 1, ReplicationFactor: 1}))

	resp, err := http.Get(l.URL() + "/api/staging/shop?from=dev")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var st staging.Staging
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "prod", st.TargetEnvironmentID)
	require.Len(t, st.Changes, 1)
	assert.Equal(t, changes.TypeTopicCreated, st.Changes[0].Type())

	req, err := http.NewRequest(http.MethodPost, l.URL()+"/api/staging/shop?from=dev", nil)
	require.NoError(t, err)
	req.Header.Set("X-Metastage-User", "jdoe")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var results []staging.Result
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded, results[0].ErrorMessage)

	got, err := l.TopicService().GetTopic(ctx, "prod", "shop.audit")
	require.NoError(t, err)
	assert.Equal(t, "shop", got.OwnerApplicationID)

	resp, err = http.Get(l.URL() + "/api/changelog/prod")
	require.NoError(t, err)
	var entries []*changelog.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	resp.Body.Close()
	require.Len(t, entries, 1)
	assert.Equal(t, "jdoe", entries[0].Principal)
	assert.Equal(t, changes.TypeTopicCreated, entries[0].Change.Type())

	resp, err = http.Get(l.URL() + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	metrics := string(body)
	assert.True(t, strings.Contains(metrics, "metastage_staging_call_total"), "staging RED metrics are exposed")
	assert.True(t, strings.Contains(metrics, "metastage_metastore_records_applied_total"), "store metrics are exposed")
	assert.True(t, strings.Contains(metrics, "metastage_http_requests_total"), "http metrics are exposed")
}

func TestLauncher_RunErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no environments", func(t *testing.T) {
		l := newTestLauncher(t)
		l.environments = nil
		require.Error(t, l.Run(ctx))
		assert.False(t, l.Running())
	})

	t.Run("unknown broker", func(t *testing.T) {
		l := newTestLauncher(t)
		l.brokerType = "rabbitmq"
		require.EqualError(t, l.Run(ctx), `unknown broker "rabbitmq"`)
	})

	t.Run("kafka without bootstrap servers", func(t *testing.T) {
		l := newTestLauncher(t)
		l.brokerType = KafkaBroker
		require.Error(t, l.Run(ctx))
	})

	t.Run("unknown tracing type", func(t *testing.T) {
		l := newTestLauncher(t)
		l.tracingType = "zipkin"
		require.EqualError(t, l.Run(ctx), `unknown tracing type "zipkin"`)
	})

	t.Run("unknown applications environment", func(t *testing.T) {
		l := newTestLauncher(t)
		l.appsEnvID = "qa"
		require.Error(t, l.Run(ctx))
		assert.False(t, l.Running())
	})
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLauncher_LogTracing(t *testing.T) {
	out := &syncBuffer{}
	l := newTestLauncher(t)
	l.Stdout = out
	l.tracingType = LogTracing
	ctx := context.Background()
	require.NoError(t, l.Run(ctx))

	_, ok := opentracing.GlobalTracer().(*jaeger.Tracer)
	require.True(t, ok, "log tracing installs a global tracer")

	resp, err := http.Get(l.URL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, l.Shutdown(ctx))
	assert.IsType(t, opentracing.NoopTracer{}, opentracing.GlobalTracer())
	assert.Contains(t, out.String(), "Reporting span")
}

func TestLauncher_JaegerTracing(t *testing.T) {
	t.Setenv("JAEGER_SERVICE_NAME", "metastaged-test")
	t.Setenv("JAEGER_SAMPLER_TYPE", "const")
	t.Setenv("JAEGER_SAMPLER_PARAM", "1")
	t.Setenv("JAEGER_AGENT_HOST", "127.0.0.1")
	t.Setenv("JAEGER_AGENT_PORT", "6831")

	l := newTestLauncher(t)
	l.tracingType = JaegerTracing
	ctx := context.Background()
	require.NoError(t, l.Run(ctx))

	_, ok := opentracing.GlobalTracer().(*jaeger.Tracer)
	assert.True(t, ok, "jaeger tracing installs a global tracer")

	require.NoError(t, l.Shutdown(ctx))
	assert.IsType(t, opentracing.NoopTracer{}, opentracing.GlobalTracer())
}
