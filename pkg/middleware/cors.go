package middleware

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge           int
	AllowCredentials bool
}

// DefaultCORSConfig allows any origin to call the storefront API and read
// the correlation and session headers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", CorrelationIDHeader, SessionIDHeader},
		ExposedHeaders: []string{CorrelationIDHeader, SessionIDHeader},
		MaxAge:         3600,
	}
}

type corsPolicy struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed. A wildcard is echoed back as the concrete
// origin when credentials are allowed.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.anyOrigin && p.credentials:
		return origin
	case p.anyOrigin:
		return "*"
	case origin != "" && slices.Contains(p.origins, origin):
		return origin
	}
	return ""
}

// CORS sets Cross-Origin Resource Sharing headers and answers preflight
// requests with 204 without calling next. Unset fields fall back to
// DefaultCORSConfig.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	p := corsPolicy{
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(orDefault(cfg.AllowedMethods, def.AllowedMethods), ", "),
		headers:     strings.Join(orDefault(cfg.AllowedHeaders, def.AllowedHeaders), ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      strconv.Itoa(cmp.Or(cfg.MaxAge, def.MaxAge)),
	}
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		p.anyOrigin = p.anyOrigin || o == "*"
		p.origins = append(p.origins, o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if allowed := p.allowOrigin(origin); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
			}

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			h.Set("Access-Control-Max-Age", p.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func orDefault(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
