package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterOptions carries the transport settings of the router.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// Handlers groups the storefront HTTP handlers.
type Handlers struct {
	Cart    *CartHandler
	Search  *SearchHandler
	Country *CountryHandler
	Header  *HeaderHandler
	Health  *health.Handler
}

// NewRouter creates a chi router with all storefront routes registered. ctx
// bounds the rate limiter's background cleanup.
func NewRouter(ctx context.Context, h Handlers, opts RouterOptions, logger *slog.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	cors := middleware.DefaultCORSConfig()
	if len(opts.AllowedOrigins) > 0 {
		cors.AllowedOrigins = opts.AllowedOrigins
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.CORS(cors))

	// Health check endpoints
	r.Get("/health/live", h.Health.LivenessHandler())
	r.Get("/health/ready", h.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session())
		r.Use(middleware.RequestLogger(logger))

		// The header websocket is long-lived and must not be compressed or
		// timed out.
		r.Get("/header/ws", h.Header.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(opts.RequestTimeout))
			r.Use(ContentTypeJSON)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Get("/totals", h.Cart.GetTotals)
				r.Get("/coupons", h.Cart.GetCoupons)

				r.Post("/items", h.Cart.AddItem)
				r.Patch("/items/{productId}/{size}", h.Cart.UpdateQuantity)
				r.Delete("/items/{productId}/{size}", h.Cart.RemoveItem)
				r.Post("/items/{productId}/{size}/wishlist", h.Cart.MoveToWishlist)
			})

			r.With(middleware.RateLimit(ctx, opts.RateLimitRPS, opts.RateLimitBurst, logger)).
				Get("/search", h.Search.Search)

			r.Get("/countries", h.Country.ListCountries)
			r.Get("/country", h.Country.GetCountry)
			r.Put("/country", h.Country.SelectCountry)
		})
	})

	return r
}
