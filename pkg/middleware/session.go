package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

// SessionIDHeader identifies the shopper's browser session.
const SessionIDHeader = "X-Session-ID"

// sessionQueryParam is accepted for websocket upgrades, where browsers cannot
// set custom headers.
const sessionQueryParam = "session"

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Session resolves the session ID from the X-Session-ID header (or the
// `session` query parameter), minting a new one when absent or malformed. The
// ID is stored in the request context and echoed in the response header.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get(SessionIDHeader)
			if sid == "" {
				sid = r.URL.Query().Get(sessionQueryParam)
			}
			if !validSessionID.MatchString(sid) {
				sid = uuid.New().String()
			}

			w.Header().Set(SessionIDHeader, sid)
			next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), sid)))
		})
	}
}
