package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

// CorrelationIDHeader carries the request correlation ID in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

// maxCorrelationIDLen bounds caller-supplied correlation IDs; longer ones are replaced.
const maxCorrelationIDLen = 128

// RequestLogging assigns every request a correlation ID and writes one access
// log line when it completes. Server errors log at error level, client errors
// at warn and everything else at info.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()

			id := r.Header.Get(CorrelationIDHeader)
			if id == "" || len(id) > maxCorrelationIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationIDHeader, id)
			ctx := logger.WithCorrelationID(r.Context(), id)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case sw.statusCode >= http.StatusInternalServerError:
				level = slog.LevelError
			case sw.statusCode >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("correlation_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", sw.statusCode),
				slog.Int("bytes", sw.bytes),
				slog.Duration("duration", time.Since(began)),
				slog.String("client_ip", ClientIP(r)),
			}
			// Session runs further in and echoes the ID on the response.
			if sid := sw.Header().Get(SessionIDHeader); sid != "" {
				attrs = append(attrs, slog.String("session_id", sid))
			}
			l.LogAttrs(ctx, level, "http request", attrs...)
		})
	}
}
