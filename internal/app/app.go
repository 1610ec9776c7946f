package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/counter"
	"github.com/utafrali/storefront/internal/coupon"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/geo"
	handler "github.com/utafrali/storefront/internal/handler/http"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/search"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront-service"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	header         *handler.HeaderHandler
	httpServer     *http.Server
	stopBackground context.CancelFunc
	shutdownTracer tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		_ = shutdownTracer(context.Background())
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	healthHandler := health.NewHandler()
	healthHandler.Register("redis", database.RedisChecker(rdb))

	// Cart events are optional; without Kafka the service only skips publishing.
	var (
		producer  *pkgkafka.Producer
		publisher service.EventPublisher
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(producer, logger)
		healthHandler.RegisterOptional("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Outbound collaborators share one retrying client, each behind its own
	// breaker. An open breaker degrades readiness without failing it.
	httpClient := httpclient.New(cfg.HTTPClient())
	breaker := func(name string) httpclient.HTTPDoer {
		cb := httpclient.NewCircuitBreakerClient(httpClient, cfg.CircuitBreaker(name), logger)
		healthHandler.RegisterOptional(name, cb.Checker())
		return cb
	}

	backend, err := newSearchBackend(ctx, cfg, breaker, healthHandler, logger)
	if err != nil {
		_ = rdb.Close()
		_ = shutdownTracer(context.Background())
		return nil, err
	}

	// Build the dependency graph.
	ttl := cfg.CartTTLDuration()
	counts := counter.New(rdb, ttl, logger)
	cartService := service.NewCartService(
		redisrepo.NewCartRepository(rdb, ttl),
		counts,
		publisher,
		service.Options{
			DefaultCurrency:   cfg.DefaultCurrency,
			EnforceStockLimit: cfg.EnforceStockLimit,
			MaxLines:          cfg.MaxLinesPerCart,
			MaxQuantity:       cfg.MaxQuantityPerLine,
		},
		logger,
	)
	geoService := geo.NewService(
		redisrepo.NewCountryRepository(rdb, ttl),
		geo.NewLocator(breaker("geolocation"), cfg.GeoAPIURL, logger),
		logger,
	)
	couponClient := coupon.NewClient(breaker("coupon-service"), cfg.CouponAPIURL, logger)
	searcher := search.NewSearcher(backend, logger)

	header := handler.NewHeaderHandler(counts, searcher, cfg.SearchDebounce(), cfg.CORSAllowedOrigins, logger)

	// The rate limiter's cleanup loop lives as long as the app.
	bgCtx, stopBackground := context.WithCancel(context.Background())

	router := handler.NewRouter(bgCtx, handler.Handlers{
		Cart:    handler.NewCartHandler(cartService, couponClient, logger),
		Search:  handler.NewSearchHandler(searcher, logger),
		Country: handler.NewCountryHandler(geoService, logger),
		Header:  header,
		Health:  healthHandler,
	}, handler.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)

	// No WriteTimeout: it would cut off the header websocket. REST routes are
	// bounded by the router's request timeout.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		header:         header,
		httpServer:     httpServer,
		stopBackground: stopBackground,
		shutdownTracer: shutdownTracer,
	}, nil
}

// newSearchBackend selects the product search backend from configuration.
func newSearchBackend(ctx context.Context, cfg *config.Config, breaker func(string) httpclient.HTTPDoer, h *health.Handler, logger *slog.Logger) (search.Backend, error) {
	switch cfg.SearchBackend {
	case config.SearchBackendElasticsearch:
		es, err := search.NewElasticsearchBackend(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("create elasticsearch backend: %w", err)
		}
		if err := es.Ping(ctx); err != nil {
			// Search degrades to flagged empty results until the cluster is back.
			logger.Warn("elasticsearch not reachable at startup",
				slog.String("url", cfg.ElasticsearchURL),
				slog.String("error", err.Error()),
			)
		}
		h.RegisterOptional("elasticsearch", es.Ping)
		logger.Info("using elasticsearch search backend", slog.String("index", cfg.ElasticsearchIndex))
		return es, nil
	default:
		logger.Info("using search API backend", slog.String("url", cfg.SearchAPIURL))
		return search.NewAPIBackend(breaker("search-service"), cfg.SearchAPIURL, logger), nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by the server.
	a.header.Close()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.stopBackground()

	// Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	// Close Redis client.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
