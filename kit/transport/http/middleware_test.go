package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/metastage/metastage/kit/prom/promtest"
	"github.com/metastage/metastage/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCors(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("nextHandler"))
	})

	tests := []struct {
		name            string
		method          string
		headers         []string
		expectedStatus  int
		expectedHeaders map[string]string
	}{
		{
			name:           "OPTIONS with Origin",
			method:         "OPTIONS",
			headers:        []string{"Origin", "http://myapp.com"},
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "GET with Origin",
			method:         "GET",
			headers:        []string{"Origin", "http://anotherapp.com"},
			expectedStatus: http.StatusOK,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin": "http://anotherapp.com",
			},
		},
		{
			name:           "GET without Origin",
			method:         "GET",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			for i := 0; i+1 < len(tt.headers); i += 2 {
				r.Header.Set(tt.headers[i], tt.headers[i+1])
			}
			rec := httptest.NewRecorder()
			SetCORS(nextHandler).ServeHTTP(rec, r)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			for k, v := range tt.expectedHeaders {
				assert.Equal(t, v, rec.Header().Get(k))
			}
		})
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	reqs, dur := NewRequestMetrics("metastage")
	reg.MustRegister(reqs, dur)

	router := chi.NewRouter()
	router.Use(Metrics("staging", reqs, dur))
	router.Get("/api/staging/{applicationId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, p := range []string{"/api/staging/app-1", "/api/staging/app-2", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	mfs := promtest.MustGather(t, reg)
	m := promtest.MustFindMetric(t, mfs, "metastage_http_requests_total", map[string]string{
		"handler":       "staging",
		"method":        http.MethodGet,
		"path":          "/api/staging/{applicationId}",
		"status":        "2XX",
		"response_code": "200",
	})
	require.Equal(t, float64(2), m.GetCounter().GetValue())

	// 4XX responses are not reported.
	require.Nil(t, promtest.FindMetric(mfs, "metastage_http_requests_total", map[string]string{
		"handler":       "staging",
		"method":        http.MethodGet,
		"path":          "/missing",
		"status":        "4XX",
		"response_code": "404",
	}))
}

func TestStatusResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewStatusResponseWriter(rec)
	assert.Equal(t, http.StatusOK, w.Code())

	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, w.ResponseBytes())

	w.WriteHeader(http.StatusServiceUnavailable)
	assert.Equal(t, "5XX", w.StatusCodeClass())
}

func TestLoggingCarriesRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	router := chi.NewRouter()
	router.Use(middleware.RequestID, Logging(zap.New(core)))
	router.Post("/api/staging/{applicationId}", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context(), zap.NewNop()).Info("Staging performed")
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodPost, "/api/staging/shop", nil)
	r.Header.Set(middleware.RequestIDHeader, "req-42")
	router.ServeHTTP(httptest.NewRecorder(), r)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Staging performed", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "Request", entries[1].Message)
	assert.Equal(t, "req-42", entries[1].ContextMap()["request_id"])
}
