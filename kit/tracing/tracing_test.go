package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockTracer(t *testing.T) *mocktracer.MockTracer {
	t.Helper()
	tracer := mocktracer.New()
	old := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(old) })
	return tracer
}

func TestStartSpanFromContext(t *testing.T) {
	tracer := withMockTracer(t)

	parent, ctx := opentracing.StartSpanFromContext(context.Background(), "request")
	span, _ := StartSpanFromContext(ctx, opentracing.Tag{Key: "application", Value: "shop"})
	span.Finish()
	parent.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "tracing.TestStartSpanFromContext", spans[0].OperationName)
	assert.Equal(t, "shop", spans[0].Tag("application"))
	assert.Equal(t, spans[1].SpanContext.SpanID, spans[0].ParentID)
}

func TestLogError(t *testing.T) {
	tracer := withMockTracer(t)

	span := tracer.StartSpan("op")
	require.NoError(t, LogError(span, nil))
	want := errors.New("boom")
	assert.Same(t, want, LogError(span, want))
	span.Finish()

	finished := tracer.FinishedSpans()[0]
	assert.Len(t, finished.Logs(), 1)
	assert.Equal(t, true, finished.Tag("error"))
}

func TestStartSpanFromHTTPRequest(t *testing.T) {
	tracer := withMockTracer(t)

	parent := tracer.StartSpan("client")
	req, err := http.NewRequest(http.MethodPost, "http://localhost/api/staging/shop?from=dev", nil)
	require.NoError(t, err)
	require.NoError(t, tracer.Inject(parent.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header)))

	span, req := StartSpanFromHTTPRequest(req, "metastaged")
	span.Finish()

	assert.Same(t, span, opentracing.SpanFromContext(req.Context()))
	child := span.(*mocktracer.MockSpan)
	assert.Equal(t, parent.(*mocktracer.MockSpan).SpanContext.SpanID, child.ParentID)
	assert.Equal(t, "metastaged", child.OperationName)
	assert.Equal(t, "POST", child.Tag("http.method"))
	assert.Equal(t, "/api/staging/shop", child.Tag("http.url"))
}

func TestStartSpanFromHTTPRequestWithoutTrace(t *testing.T) {
	tracer := withMockTracer(t)

	req, err := http.NewRequest(http.MethodGet, "http://localhost/health", nil)
	require.NoError(t, err)
	span, _ := StartSpanFromHTTPRequest(req, "metastaged")
	span.Finish()

	require.Len(t, tracer.FinishedSpans(), 1)
	assert.Equal(t, 0, tracer.FinishedSpans()[0].ParentID)
}
