// Package middleware provides the HTTP middleware chain mounted ahead of
// the resource handlers: request tracing and optional bearer-token
// authentication.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strata-api/strata/internal/platform/logger"
)

type contextKey string

// TraceIDKey is the context key carrying the request's trace ID.
const TraceIDKey contextKey = "traceID"

const traceIDBytes = 16

// Trace assigns every request a trace ID and stores a request-scoped
// logger carrying it in the context. It should run first in the chain so
// every downstream log line is correlated.
func Trace(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := newTraceID()
			reqLog := log.With(slog.String("trace_id", traceID))

			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, reqLog)

			start := time.Now()
			reqLog.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))

			reqLog.Debug("request finished",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

// TraceID retrieves the trace ID from the context, or an empty string when
// the trace middleware did not run.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}

func newTraceID() string {
	b := make([]byte, traceIDBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is exceptional; a UUID still gives a
		// unique correlation value.
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
