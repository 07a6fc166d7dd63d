package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/phrazzld/yaha/internal/platform/logger"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// TraceID returns the request's trace id, or "" outside a traced request.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// traceMiddleware assigns each request a trace id and a request-scoped
// logger carrying it, then logs the completed request.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.NewString()
		log := logger.FromContext(r.Context()).With("trace_id", traceID)

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		ctx = logger.WithLogger(ctx, log)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		log.Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(started).Milliseconds())
	})
}
