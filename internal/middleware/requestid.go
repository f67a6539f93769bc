package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"example.com/socialfeed/internal/logger"
	"github.com/google/uuid"
)

type contextKey string

const RequestIDCtxKey = contextKey("request_id")

const RequestIDHeader = "X-Request-ID"

var logg = logger.New()

// RequestID tags every request with an id, taken from X-Request-ID when the
// caller sent one, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog writes one line per request with status and latency.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		id, _ := RequestIDFromContext(r.Context())
		logg.Info("http", r.Method+" "+r.URL.Path,
			"status", strconv.Itoa(sw.status),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", id,
		)
	})
}

// Extracting request_id in handler
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDCtxKey).(string)
	return id, ok
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
