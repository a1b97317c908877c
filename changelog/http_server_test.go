package changelog_test

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/metastage/metastage/changelog"
	"github.com/metastage/metastage/changes"
	icontext "github.com/metastage/metastage/context"
	platformtesting "github.com/metastage/metastage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHandler_GetChangeLog(t *testing.T) {
	envs := platformtesting.NewEnvironments(t, "dev", "prod")
	defer envs.Close()

	s, err := changelog.NewService(context.Background(), envs.Registry)
	require.NoError(t, err)
	envs.WaitReady(t)

	ctx := icontext.SetPrincipal(context.Background(), icontext.Principal{ID: "jdoe"})
	s.ChangeApplied(ctx, "dev", &changes.TopicDeleted{TopicName: "orders"})

	h := changelog.NewHandler(zaptest.NewLogger(t), s)
	mux := chi.NewRouter()
	mux.Mount(h.Prefix(), h)

	t.Run("entries", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/changelog/dev", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var entries []*changelog.Entry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "jdoe", entries[0].Principal)
		assert.Equal(t, &changes.TopicDeleted{TopicName: "orders"}, entries[0].Change)
	})

	t.Run("empty environment", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/changelog/prod", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("unknown environment", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/changelog/qa", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_GetChangeLogCompressed(t *testing.T) {
	envs := platformtesting.NewEnvironments(t, "dev")
	defer envs.Close()

	s, err := changelog.NewService(context.Background(), envs.Registry)
	require.NoError(t, err)
	envs.WaitReady(t)

	for i := 0; i < 50; i++ {
		s.ChangeApplied(context.Background(), "dev", &changes.TopicDeleted{TopicName: fmt.Sprintf("orders-%d", i)})
	}

	h := changelog.NewHandler(zaptest.NewLogger(t), s)
	mux := chi.NewRouter()
	mux.Mount(h.Prefix(), h)

	r := httptest.NewRequest(http.MethodGet, "/api/changelog/dev", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var entries []*changelog.Entry
	require.NoError(t, json.NewDecoder(zr).Decode(&entries))
	assert.Len(t, entries, 50)
}
