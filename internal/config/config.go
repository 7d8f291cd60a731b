package config

import "time"

// Default values applied to missing configuration fields.
const (
	DefaultServerAddress     = ":8080"
	DefaultMetricsAddress    = ":9090"
	DefaultMetricsPath       = "/metrics"
	DefaultServiceName       = "imagegw"
	DefaultUserAgent         = "avaimg"
	DefaultWorkers           = 4
	DefaultBreakerThreshold  = 5
	DefaultRateLimitBackend  = RateLimitBackendMemory
	DefaultRedisKeyPrefix    = "imagegw:ratelimit:"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultBreakerTimeout    = 30 * time.Second
	DefaultRateLimitWindow   = time.Second
)

// Rate limit backends.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server" json:"server"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing" json:"tracing"`
	Fetch     FetchConfig      `yaml:"fetch" json:"fetch"`
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Routes    []Route          `yaml:"routes" json:"routes"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Address           string   `yaml:"address" json:"address"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	WriteTimeout      Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	Insecure     bool    `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// FetchConfig configures the upstream fetch queue.
type FetchConfig struct {
	Workers               int                   `yaml:"workers" json:"workers"`
	UserAgent             string                `yaml:"userAgent" json:"userAgent"`
	MaxIdleConnsPerHost   int                   `yaml:"maxIdleConnsPerHost,omitempty" json:"maxIdleConnsPerHost,omitempty"`
	ResponseHeaderTimeout Duration              `yaml:"responseHeaderTimeout,omitempty" json:"responseHeaderTimeout,omitempty"`
	CircuitBreaker        *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the per-host upstream breaker.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig configures inbound rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend" json:"backend"`
	// Requests allowed per Window and client.
	Requests int      `yaml:"requests" json:"requests"`
	Window   Duration `yaml:"window" json:"window"`
	// Burst applies to the memory backend only.
	Burst int          `yaml:"burst,omitempty" json:"burst,omitempty"`
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the redis rate limit backend.
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// Route declares one image route.
type Route struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	// Source is the upstream URL template with :param placeholders.
	Source string `yaml:"source" json:"source"`
	// CacheExpiration in seconds. Unset disables cache headers.
	CacheExpiration *int     `yaml:"cacheExpiration,omitempty" json:"cacheExpiration,omitempty"`
	SocketTimeout   Duration `yaml:"socketTimeout,omitempty" json:"socketTimeout,omitempty"`
	GIFFirstFrame   bool     `yaml:"gifFirstFrame,omitempty" json:"gifFirstFrame,omitempty"`
	Stream          bool     `yaml:"stream,omitempty" json:"stream,omitempty"`
	MaxSourceBytes  int64    `yaml:"maxSourceBytes,omitempty" json:"maxSourceBytes,omitempty"`
	// MaxPixels bounds width x height x frames of decoded and resized
	// images. MaxDimension bounds each resize or crop side taken from the
	// steps. Zero keeps the built-in limits.
	MaxPixels    int64  `yaml:"maxPixels,omitempty" json:"maxPixels,omitempty"`
	MaxDimension int    `yaml:"maxDimension,omitempty" json:"maxDimension,omitempty"`
	Steps        []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// Step is one declarative image operation. Width, Height and Value may
// contain :param placeholders. When is an optional CEL expression over
// the request params.
type Step struct {
	Op     string `yaml:"op" json:"op"`
	Width  string `yaml:"width,omitempty" json:"width,omitempty"`
	Height string `yaml:"height,omitempty" json:"height,omitempty"`
	Value  string `yaml:"value,omitempty" json:"value,omitempty"`
	When   string `yaml:"when,omitempty" json:"when,omitempty"`
}

// DisplayName returns Name, or Pattern when Name is empty.
func (r *Route) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Pattern
}

// DefaultConfig returns a configuration with defaults and no routes.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	s := &c.Server
	setDefault(&s.Address, DefaultServerAddress)
	setDefault(&s.ReadHeaderTimeout, Duration(DefaultReadHeaderTimeout))
	setDefault(&s.WriteTimeout, Duration(DefaultWriteTimeout))
	setDefault(&s.IdleTimeout, Duration(DefaultIdleTimeout))
	setDefault(&s.ShutdownTimeout, Duration(DefaultShutdownTimeout))

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "json")
	setDefault(&c.Logging.Output, "stdout")

	setDefault(&c.Metrics.Address, DefaultMetricsAddress)
	setDefault(&c.Metrics.Path, DefaultMetricsPath)

	setDefault(&c.Tracing.ServiceName, DefaultServiceName)
	setDefault(&c.Tracing.SamplingRate, 1.0)

	setDefault(&c.Fetch.Workers, DefaultWorkers)
	setDefault(&c.Fetch.UserAgent, DefaultUserAgent)
	if cb := c.Fetch.CircuitBreaker; cb != nil {
		setDefault(&cb.Threshold, DefaultBreakerThreshold)
		setDefault(&cb.Timeout, Duration(DefaultBreakerTimeout))
	}

	if rl := c.RateLimit; rl != nil {
		setDefault(&rl.Backend, DefaultRateLimitBackend)
		setDefault(&rl.Window, Duration(DefaultRateLimitWindow))
		setDefault(&rl.Burst, rl.Requests)
		if rl.Redis != nil {
			setDefault(&rl.Redis.KeyPrefix, DefaultRedisKeyPrefix)
		}
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
