package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from a YAML file and environment
// variable overrides, in the teacher's internal/config/loader.go pattern.
type Loader struct {
	configDir string
}

// NewLoader creates a new configuration loader rooted at configDir.
func NewLoader(configDir string) *Loader {
	return &Loader{configDir: configDir}
}

// LoadConfig loads config.yaml (if present) over GetDefaultConfig(), applies
// environment overrides, then validates the result.
func (l *Loader) LoadConfig() (*AppConfig, error) {
	config := GetDefaultConfig()

	if err := l.loadFile(config); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	l.applyEnvironmentOverrides(config)

	if result := config.Validate(); !result.Valid {
		return nil, fmt.Errorf("configuration validation failed: %v", result.Errors)
	}

	return config, nil
}

func (l *Loader) loadFile(config *AppConfig) error {
	path := filepath.Join(l.configDir, "config.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides lets operators override the recognized options
// (spec §6) without editing the file, mirroring the teacher's env-var
// override convention.
func (l *Loader) applyEnvironmentOverrides(config *AppConfig) {
	if v := os.Getenv("SPARQL_AGENT_SERVER_PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("SPARQL_AGENT_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("SPARQL_AGENT_LLM_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("SPARQL_AGENT_LLM_MODEL"); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv("SPARQL_AGENT_LLM_ENDPOINT"); v != "" {
		config.LLM.Endpoint = v
	}
	if v := os.Getenv("SPARQL_AGENT_DISCOVERY_FAST_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Discovery.FastMode = b
		}
	}
	if v := os.Getenv("SPARQL_AGENT_VALIDATION_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Validation.Strict = b
		}
	}
	if v := os.Getenv("SPARQL_AGENT_RETRY_MAX_VALIDATION_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Retry.MaxValidationRetries = n
		}
	}
	if v := os.Getenv("SPARQL_AGENT_RETRY_MAX_EXECUTION_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Retry.MaxExecutionRetries = n
		}
	}
	if v := os.Getenv("SPARQL_AGENT_DISCOVERY_DEFAULT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Discovery.DefaultTimeoutSecs = n
		}
	}
	if v := os.Getenv("SPARQL_AGENT_SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.ShutdownTimeout = d
		}
	}
}
