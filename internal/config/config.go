// Package config defines the typed configuration tree for sparql-agent-go,
// in the teacher's pattern: a struct tree with `default:"..."` yaml tags,
// an environment-variable override pass (loader.go), and a Validate()
// method returning a ValidationResult rather than a bare error.
package config

import (
	"fmt"
	"time"
)

// AppConfig is the root configuration, mapping 1:1 onto the recognized
// options in spec §6.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server" validate:"required"`
	Endpoints  []EndpointConfig `yaml:"endpoints"`
	Discovery  DiscoveryConfig  `yaml:"discovery" validate:"required"`
	Retry      RetryConfig      `yaml:"retry" validate:"required"`
	Validation ValidationConfig `yaml:"validation" validate:"required"`
	Inference  InferenceConfig  `yaml:"inference" validate:"required"`
	LLM        LLMConfig        `yaml:"llm" validate:"required"`
}

// ServerConfig configures the HTTP front-end (cmd/sparql-agent-server).
type ServerConfig struct {
	Port            string        `yaml:"port" default:"8080"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	MaxRequestSize  int64         `yaml:"max_request_size" default:"1048576"`
}

// EndpointConfig is the on-disk form of a types.Endpoint.
type EndpointConfig struct {
	URL            string        `yaml:"url" validate:"required"`
	DisplayName    string        `yaml:"display_name,omitempty"`
	Timeout        time.Duration `yaml:"timeout" default:"30s"`
	AuthKind       string        `yaml:"auth_kind,omitempty"` // none|basic|bearer
	AuthUsername   string        `yaml:"auth_username,omitempty"`
	AuthPassword   string        `yaml:"auth_password,omitempty"`
	AuthToken      string        `yaml:"auth_token,omitempty"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" default:"5"`
	RateLimitBurst int           `yaml:"rate_limit_burst" default:"10"`
}

// DiscoveryConfig controls C1-C4 (spec §6 "discovery.*").
type DiscoveryConfig struct {
	DefaultTimeoutSecs  int  `yaml:"default_timeout_secs" default:"30"`
	MaxRetries          int  `yaml:"max_retries" default:"3"`
	PoolSize            int  `yaml:"pool_size" default:"10"`
	FastMode            bool `yaml:"fast_mode" default:"false"`
	ProgressiveTimeout  bool `yaml:"progressive_timeout" default:"true"`
	MaxSamples          int  `yaml:"max_samples" default:"100"`
	HistoryCap          int  `yaml:"history_cap" default:"100"`
	BackoffBaseMs       int  `yaml:"backoff_base_ms" default:"200"`
	BackoffFactor       float64 `yaml:"backoff_factor" default:"2.0"`
}

// RetryConfig controls C7 (spec §6 "retry.*").
type RetryConfig struct {
	MaxValidationRetries int `yaml:"max_validation_retries" default:"3"`
	MaxExecutionRetries  int `yaml:"max_execution_retries" default:"3"`
}

// ValidationConfig controls C6 (spec §6 "validation.*").
type ValidationConfig struct {
	Strict bool `yaml:"strict" default:"false"`
}

// InferenceConfig controls C5 thresholds (spec §6 "inference.*" and §4.5).
type InferenceConfig struct {
	CardinalityThreshold float64 `yaml:"cardinality_threshold" default:"0.9"`
	OptionalThreshold    float64 `yaml:"optional_threshold" default:"0.85"`
	MinConfidence        string  `yaml:"min_confidence" default:"low"`
	BoundSampleMin       int     `yaml:"bound_sample_min" default:"5"`
	ClassLimit           int     `yaml:"class_limit" default:"100"`
	PropertyLimit        int     `yaml:"property_limit" default:"100"`
}

// LLMConfig is passed through to the LLM client (spec §6 "llm.*").
type LLMConfig struct {
	Provider    string        `yaml:"provider" default:"claude"`
	Endpoint    string        `yaml:"endpoint,omitempty"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model" default:"claude-3-5-sonnet-20241022"`
	Temperature float64       `yaml:"temperature" default:"0.1"`
	MaxTokens   int           `yaml:"max_tokens" default:"2000"`
	Timeout     time.Duration `yaml:"timeout" default:"60s"`
}

// ValidationResult is the outcome of validating a config section; errors
// accumulate rather than short-circuiting, so a caller sees every problem
// in one pass.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r *ValidationResult) merge(other ValidationResult) {
	if !other.Valid {
		r.Valid = false
		r.Errors = append(r.Errors, other.Errors...)
	}
}

func (r *ValidationResult) fail(msg string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(msg, args...))
}

// Validate checks structural invariants including the three-level timeout
// hierarchy mandated by spec §5 ("per-operation <= per-phase <= total
// request deadline... violating this is a configuration error detected at
// startup").
func (c *AppConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	result.merge(c.Server.Validate())
	result.merge(c.Discovery.Validate())
	result.merge(c.Retry.Validate())
	result.merge(c.Inference.Validate())
	result.merge(c.LLM.Validate())

	for i, ep := range c.Endpoints {
		if ep.URL == "" {
			result.fail("endpoints[%d]: url is required", i)
		}
		if ep.Timeout > time.Duration(c.Discovery.DefaultTimeoutSecs)*time.Second*4 {
			// probe_timeout <= request_timeout <= total_deadline; an endpoint
			// timeout wildly above the discovery default signals a likely
			// misconfiguration rather than a deliberate override.
			result.fail("endpoints[%d]: timeout %v is inconsistent with discovery.default_timeout_secs=%ds", i, ep.Timeout, c.Discovery.DefaultTimeoutSecs)
		}
	}
	return result
}

func (c *ServerConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	if c.Port == "" {
		result.fail("server.port is required")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		result.fail("server.read_timeout and server.write_timeout must be positive")
	}
	return result
}

func (c *DiscoveryConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	if c.DefaultTimeoutSecs <= 0 {
		result.fail("discovery.default_timeout_secs must be positive")
	}
	if c.PoolSize <= 0 {
		result.fail("discovery.pool_size must be positive")
	}
	if c.MaxSamples <= 0 {
		result.fail("discovery.max_samples must be positive")
	}
	return result
}

func (c *RetryConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	if c.MaxValidationRetries < 0 || c.MaxExecutionRetries < 0 {
		result.fail("retry budgets must be non-negative")
	}
	return result
}

func (c *InferenceConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	if c.CardinalityThreshold <= 0 || c.CardinalityThreshold > 1 {
		result.fail("inference.cardinality_threshold must be in (0, 1]")
	}
	if c.OptionalThreshold <= 0 || c.OptionalThreshold > 1 {
		result.fail("inference.optional_threshold must be in (0, 1]")
	}
	return result
}

func (c *LLMConfig) Validate() ValidationResult {
	result := ValidationResult{Valid: true}
	if c.Model == "" {
		result.fail("llm.model is required")
	}
	if c.MaxTokens <= 0 {
		result.fail("llm.max_tokens must be positive")
	}
	return result
}

// GetDefaultConfig returns an AppConfig populated with every `default:"..."`
// value, used as the base the Loader overlays YAML and env vars onto.
func GetDefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port: "8080", Host: "0.0.0.0",
			ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second,
			IdleTimeout: 60 * time.Second, ShutdownTimeout: 10 * time.Second,
			MaxRequestSize: 1048576,
		},
		Discovery: DiscoveryConfig{
			DefaultTimeoutSecs: 30, MaxRetries: 3, PoolSize: 10,
			FastMode: false, ProgressiveTimeout: true, MaxSamples: 100,
			HistoryCap: 100, BackoffBaseMs: 200, BackoffFactor: 2.0,
		},
		Retry: RetryConfig{MaxValidationRetries: 3, MaxExecutionRetries: 3},
		Validation: ValidationConfig{Strict: false},
		Inference: InferenceConfig{
			CardinalityThreshold: 0.9, OptionalThreshold: 0.85,
			MinConfidence: "low", BoundSampleMin: 5,
			ClassLimit: 100, PropertyLimit: 100,
		},
		LLM: LLMConfig{
			Provider: "claude", Model: "claude-3-5-sonnet-20241022",
			Temperature: 0.1, MaxTokens: 2000, Timeout: 60 * time.Second,
		},
	}
}
