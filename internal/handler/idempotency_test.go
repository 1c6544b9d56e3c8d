package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/handler"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/cache"
)

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	store := cache.New[handler.StoredResponse](time.Hour)
	t.Cleanup(store.Close)

	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	h := middleware.Recoverer(handler.Idempotency(store, zap.NewNop())(inner))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/me/redeem", nil)
		req.Header.Set("Idempotency-Key", "panic-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusInternalServerError, send().Code)
	require.Equal(t, 0, store.Len())

	retry := send()
	require.Equal(t, http.StatusCreated, retry.Code)
	require.Empty(t, retry.Header().Get("Idempotent-Replayed"))

	replay := send()
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.Equal(t, 2, calls)
}
