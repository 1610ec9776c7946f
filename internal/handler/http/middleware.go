package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// ContentTypeJSON refuses write requests and bodies declared as anything but
// JSON with 415. A missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		declared := r.Header.Get("Content-Type")
		hasBody := r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch
		if !hasBody || declared == "" {
			next.ServeHTTP(w, r)
			return
		}
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType == "application/json" {
			next.ServeHTTP(w, r)
			return
		}
		httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "UNSUPPORTED_MEDIA_TYPE",
				Message: "request body must be application/json",
			},
		})
	})
}
