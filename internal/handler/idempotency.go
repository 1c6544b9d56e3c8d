package handler

import (
	"bytes"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/cache"
)

const idempotencyHeader = "Idempotency-Key"

// StoredResponse is a captured response replayed for a repeated
// Idempotency-Key. A zero Status marks a request still in flight.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyCache holds captured responses keyed by subject, route and key.
type IdempotencyCache = cache.InMemory[StoredResponse]

// Idempotency executes a mutating request once per Idempotency-Key and
// replays the first response for repeats. Requests without the header pass
// through. Server errors are not remembered so the client can retry.
func Idempotency(store *IdempotencyCache, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 255 {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			scoped := SubjectIDFromContext(r.Context()) + "|" + r.Method + " " + r.URL.Path + "|" + key
			if !store.SetIfAbsent(scoped, StoredResponse{}) {
				prev, ok := store.Get(scoped)
				switch {
				case ok && prev.Status != 0:
					logger.Debug("idempotent replay", zap.String("key", key), zap.Int("status", prev.Status))
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(prev.Status)
					_, _ = w.Write(prev.Body)
				case ok:
					writeError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
				default:
					// expired between the two calls; treat as new
					next.ServeHTTP(w, r)
				}
				return
			}

			// a panicking handler must not leave the key reserved
			completed := false
			defer func() {
				if !completed {
					store.Delete(scoped)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			completed = true

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				store.Delete(scoped)
				return
			}
			store.Set(scoped, StoredResponse{Status: status, Body: rec.buf.Bytes()})
		})
	}
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	if rr.status == 0 {
		rr.status = status
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
