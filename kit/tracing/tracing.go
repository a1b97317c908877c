// Package tracing starts opentracing spans for the HTTP layer and the
// staging services. Spans go to the global tracer installed on startup.
package tracing

import (
	"context"
	"net/http"
	"runtime"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

// LogError records err on span and returns it unchanged, so it can wrap a
// return value:
//
//	return nil, tracing.LogError(span, err)
func LogError(span opentracing.Span, err error) error {
	if err == nil {
		return nil
	}
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))
	return err
}

// StartSpanFromHTTPRequest starts a server span for r, continuing the trace
// found in its headers. The returned request carries the span.
func StartSpanFromHTTPRequest(r *http.Request, operation string) (opentracing.Span, *http.Request) {
	parent, err := opentracing.GlobalTracer().Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header))
	if err != nil {
		// missing or broken trace headers start a new trace
		parent = nil
	}

	span := opentracing.StartSpan(operation, ext.RPCServerOption(parent))
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.Path)
	return span, r.WithContext(opentracing.ContextWithSpan(r.Context(), span))
}

// StartSpanFromContext starts a child of the span in ctx named after the
// calling function, without its package path.
func StartSpanFromContext(ctx context.Context, opts ...opentracing.StartSpanOption) (opentracing.Span, context.Context) {
	name := "unknown"
	if pc, _, _, ok := runtime.Caller(1); ok {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		name = frame.Function[strings.LastIndex(frame.Function, "/")+1:]
	}
	return opentracing.StartSpanFromContext(ctx, name, opts...)
}
