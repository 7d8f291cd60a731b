package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avaimg/internal/util"
)

// Step operations understood by the pipeline compiler.
const (
	OpResize  = "resize"
	OpCrop    = "crop"
	OpGravity = "gravity"
	OpQuality = "quality"
	OpFormat  = "format"
)

var validOps = map[string]bool{
	OpResize:  true,
	OpCrop:    true,
	OpGravity: true,
	OpQuality: true,
	OpFormat:  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Is reports ErrConfigInvalid for any non-empty collection.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid && len(e) > 0
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig validates cfg.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns every problem found.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateLogging(&cfg.Logging)
	v.validateMetrics(&cfg.Metrics, cfg.Server.Address)
	v.validateTracing(&cfg.Tracing)
	v.validateFetch(&cfg.Fetch)
	v.validateRateLimit(cfg.RateLimit)
	v.validateRoutes(cfg.Routes)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.Address == "" {
		v.addError("server.address", "is required")
	}
	timeouts := []struct {
		path  string
		value Duration
	}{
		{"server.readHeaderTimeout", s.ReadHeaderTimeout},
		{"server.writeTimeout", s.WriteTimeout},
		{"server.idleTimeout", s.IdleTimeout},
		{"server.shutdownTimeout", s.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			v.addError(t.path, "must not be negative")
		}
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	if !validLogLevels[strings.ToLower(l.Level)] {
		v.addError("logging.level", fmt.Sprintf("unknown level %q", l.Level))
	}
	if l.Format != "json" && l.Format != "console" {
		v.addError("logging.format", fmt.Sprintf("must be json or console, got %q", l.Format))
	}
}

func (v *Validator) validateMetrics(m *MetricsConfig, serverAddress string) {
	if !m.Enabled {
		return
	}
	if m.Address == "" {
		v.addError("metrics.address", "is required when metrics are enabled")
	} else if m.Address == serverAddress {
		v.addError("metrics.address", "must differ from server.address")
	}
	if !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "must start with /")
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if err := util.ValidateRatio(t.SamplingRate); err != nil {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
	if t.Enabled && t.OTLPEndpoint == "" {
		v.addError("tracing.otlpEndpoint", "is required when tracing is enabled")
	}
}

func (v *Validator) validateFetch(f *FetchConfig) {
	if f.Workers < 1 {
		v.addError("fetch.workers", "must be at least 1")
	}
	if f.MaxIdleConnsPerHost < 0 {
		v.addError("fetch.maxIdleConnsPerHost", "must not be negative")
	}
	if f.ResponseHeaderTimeout < 0 {
		v.addError("fetch.responseHeaderTimeout", "must not be negative")
	}
	if cb := f.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold < 1 {
			v.addError("fetch.circuitBreaker.threshold", "must be at least 1")
		}
		if cb.Timeout <= 0 {
			v.addError("fetch.circuitBreaker.timeout", "must be positive")
		}
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if rl == nil || !rl.Enabled {
		return
	}
	if rl.Requests < 1 {
		v.addError("rateLimit.requests", "must be at least 1")
	}
	if rl.Window <= 0 {
		v.addError("rateLimit.window", "must be positive")
	}
	switch rl.Backend {
	case RateLimitBackendMemory:
		if rl.Burst < 1 {
			v.addError("rateLimit.burst", "must be at least 1")
		}
	case RateLimitBackendRedis:
		if rl.Redis == nil || rl.Redis.Address == "" {
			v.addError("rateLimit.redis.address", "is required for the redis backend")
		}
	default:
		v.addError("rateLimit.backend", fmt.Sprintf("must be memory or redis, got %q", rl.Backend))
	}
}

func (v *Validator) validateRoutes(routes []Route) {
	names := make(map[string]int, len(routes))
	for i := range routes {
		r := &routes[i]
		path := fmt.Sprintf("routes[%d]", i)

		if r.Name != "" {
			if prev, dup := names[r.Name]; dup {
				v.addError(path+".name", fmt.Sprintf("duplicate of routes[%d]", prev))
			}
			names[r.Name] = i
		}
		if r.Pattern == "" {
			v.addError(path+".pattern", "is required")
		} else if !strings.HasPrefix(r.Pattern, "/") {
			v.addError(path+".pattern", "must start with /")
		}
		if r.Source == "" {
			v.addError(path+".source", "is required")
		} else if err := util.ValidateUpstreamURL(r.Source); err != nil {
			// Scheme and host must be literal; placeholders belong in the
			// path or query.
			v.addError(path+".source", err.Error())
		}
		if r.CacheExpiration != nil && *r.CacheExpiration < 0 {
			v.addError(path+".cacheExpiration", "must not be negative")
		}
		if r.SocketTimeout < 0 {
			v.addError(path+".socketTimeout", "must not be negative")
		}
		if r.MaxSourceBytes < 0 {
			v.addError(path+".maxSourceBytes", "must not be negative")
		}
		if r.MaxPixels < 0 {
			v.addError(path+".maxPixels", "must not be negative")
		}
		if r.MaxDimension < 0 {
			v.addError(path+".maxDimension", "must not be negative")
		}
		for j := range r.Steps {
			v.validateStep(fmt.Sprintf("%s.steps[%d]", path, j), &r.Steps[j])
		}
	}
}

func (v *Validator) validateStep(path string, s *Step) {
	if !validOps[s.Op] {
		v.addError(path+".op", fmt.Sprintf("unknown operation %q", s.Op))
		return
	}
	switch s.Op {
	case OpResize, OpCrop:
		if s.Width == "" && s.Height == "" {
			v.addError(path, s.Op+" needs width or height")
		}
	default:
		if s.Value == "" {
			v.addError(path+".value", "is required for "+s.Op)
		}
	}
}
