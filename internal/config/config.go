package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Search backends.
const (
	SearchBackendAPI           = "api"
	SearchBackendElasticsearch = "elasticsearch"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart
	CartTTL            int    `env:"CART_TTL_HOURS" envDefault:"720"`
	EnforceStockLimit  bool   `env:"CART_ENFORCE_STOCK_LIMIT" envDefault:"false"`
	DefaultCurrency    string `env:"DEFAULT_CURRENCY" envDefault:"INR"`
	MaxLinesPerCart    int    `env:"CART_MAX_LINES" envDefault:"50"`
	// Bounds AddItem only; UpdateQuantity is limited by the stock flag.
	MaxQuantityPerLine int    `env:"CART_MAX_QUANTITY" envDefault:"99"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Search
	SearchBackend      string `env:"SEARCH_BACKEND" envDefault:"api"`
	SearchAPIURL       string `env:"SEARCH_API_URL" envDefault:"http://localhost:8081/api"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"products"`
	SearchDebounceMS   int    `env:"SEARCH_DEBOUNCE_MS" envDefault:"300"`

	// Collaborators
	CouponAPIURL string `env:"COUPON_API_URL" envDefault:"http://localhost:8081/api"`
	GeoAPIURL    string `env:"GEO_API_URL" envDefault:"https://ipapi.co"`

	// Outbound HTTP
	HTTPClientTimeout   time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"5s"`
	HTTPClientRetries   int           `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`
	BreakerTimeout      time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"CIRCUIT_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"CIRCUIT_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Edge
	RateLimitRPS       float64  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"20"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from a .env file, when present, and the environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.CartTTL < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL)
	}
	if c.SearchBackend != SearchBackendAPI && c.SearchBackend != SearchBackendElasticsearch {
		return fmt.Errorf("SEARCH_BACKEND must be %q or %q, got %q", SearchBackendAPI, SearchBackendElasticsearch, c.SearchBackend)
	}
	for name, raw := range map[string]string{
		"SEARCH_API_URL":    c.SearchAPIURL,
		"COUPON_API_URL":    c.CouponAPIURL,
		"GEO_API_URL":       c.GeoAPIURL,
		"ELASTICSEARCH_URL": c.ElasticsearchURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.SearchDebounceMS < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE_MS must not be negative, got %d", c.SearchDebounceMS)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got rps=%v burst=%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}
	if c.MaxLinesPerCart < 1 || c.MaxQuantityPerLine < 1 {
		return fmt.Errorf("cart limits must be positive")
	}
	return nil
}

// CartTTLDuration is the persisted cart lifetime.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// SearchDebounce is the quiet period before a typed query is searched.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPass
	rc.DB = c.RedisDB
	return rc
}

// HTTPClient returns the outbound HTTP client configuration.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.HTTPClientTimeout
	hc.MaxRetries = c.HTTPClientRetries
	return hc
}

// CircuitBreaker returns the breaker configuration for the named collaborator.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(name)
	cb.Timeout = c.BreakerTimeout
	cb.FailureRatio = c.BreakerFailureRatio
	cb.MinRequests = c.BreakerMinRequests
	return cb
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing(serviceName string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.Environment = c.Environment
	tc.Enabled = c.OTELEnabled
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	return tc
}
