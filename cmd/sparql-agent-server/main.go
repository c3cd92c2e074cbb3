// Command sparql-agent-server runs the HTTP front-end over the Execution
// Orchestrator (C9): it wires C1-C8 from configuration, then exposes the
// pipeline behind a small chi router, in the teacher's graceful-shutdown
// bootstrap shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sparql-agent-go/internal/config"
	"sparql-agent-go/internal/discovery"
	"sparql-agent-go/internal/execution"
	"sparql-agent-go/internal/llmclient"
	"sparql-agent-go/internal/orchestrator"
	"sparql-agent-go/internal/retry"
	"sparql-agent-go/internal/telemetry"
	"sparql-agent-go/internal/validator"
	"sparql-agent-go/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	appConfig, err := loadConfiguration()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logConfigurationStatus(logger, appConfig)

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	app := buildApplication(appConfig, metrics, logger)

	mux := setupRoutes(app, reg)
	handler := corsMiddleware(loggingMiddleware(logger, mux))

	server := &http.Server{
		Addr:         appConfig.Server.Host + ":" + appConfig.Server.Port,
		Handler:      handler,
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		IdleTimeout:  appConfig.Server.IdleTimeout,
	}

	go func() {
		logger.Info("sparql agent server listening",
			zap.String("addr", server.Addr),
			zap.Int("endpoints", len(appConfig.Endpoints)))
		logger.Info("routes: POST /query, GET /endpoints, GET /health, GET /metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// application bundles the constructed C1-C9 components the handlers need.
type application struct {
	orchestrator *orchestrator.Orchestrator
	endpoints    []types.Endpoint
	pinger       *discovery.Pinger
	detector     *capabilityDetectorAdapter
	caps         *discovery.Cache
	config       *config.AppConfig
	metrics      *telemetry.Metrics
	logger       *zap.Logger
}

// capabilityDetectorAdapter narrows discovery.CapabilityDetector's
// DetectOptions-based Detect to the single-onProgress-callback shape
// interfaces.CapabilityDetector (and thus the Orchestrator) expects.
type capabilityDetectorAdapter struct {
	inner    *discovery.CapabilityDetector
	fastMode bool
}

func (a *capabilityDetectorAdapter) Detect(ctx context.Context, endpoint types.Endpoint, onProgress func(step, total int, message string)) (*types.Capabilities, error) {
	return a.inner.Detect(ctx, endpoint, discovery.DetectOptions{FastMode: a.fastMode, OnProgress: onProgress})
}

// buildApplication wires every component per spec §6's recognized options,
// following the teacher's initializeProcessor pattern of one constructor
// call per collaborator. None of these constructors returns an error.
func buildApplication(appConfig *config.AppConfig, metrics *telemetry.Metrics, logger *zap.Logger) *application {
	endpoints := make([]types.Endpoint, 0, len(appConfig.Endpoints))
	for _, e := range appConfig.Endpoints {
		endpoints = append(endpoints, toEndpoint(e))
	}

	prober := discovery.NewProber(true, logger)
	pinger := discovery.NewPinger(prober, discovery.PingerConfig{
		PoolSize:      appConfig.Discovery.PoolSize,
		MaxAttempts:   appConfig.Discovery.MaxRetries,
		HistoryCap:    appConfig.Discovery.HistoryCap,
		BackoffBase:   time.Duration(appConfig.Discovery.BackoffBaseMs) * time.Millisecond,
		BackoffFactor: appConfig.Discovery.BackoffFactor,
	}, logger)
	detector := &capabilityDetectorAdapter{inner: discovery.NewCapabilityDetector(appConfig.Discovery.MaxSamples, logger), fastMode: appConfig.Discovery.FastMode}
	caps := discovery.NewCache(5 * time.Minute)

	llm := llmclient.NewClaudeClient(appConfig.LLM.APIKey, appConfig.LLM.Endpoint, appConfig.LLM.Model, appConfig.LLM.Timeout)

	val := validator.NewEngine(logger)

	execClient := &http.Client{}
	executor := execution.NewExecutor(execClient, "sparql-agent-go/1.0", logger)

	retryCfg := retry.Config{
		MaxValidationRetries: appConfig.Retry.MaxValidationRetries,
		MaxExecutionRetries:  appConfig.Retry.MaxExecutionRetries,
		BackoffBase:          500 * time.Millisecond,
	}
	retryEngine := retry.New(retryCfg, val, llm, executor, appConfig.Validation.Strict, logger)

	orch := orchestrator.New(llm, val, retryEngine, executor, caps, detector, orchestrator.Options{
		Strict:              appConfig.Validation.Strict,
		RefreshCapabilities: false,
		ExplainTopK:         5,
	}, logger)

	return &application{
		orchestrator: orch,
		endpoints:    endpoints,
		pinger:       pinger,
		detector:     detector,
		caps:         caps,
		config:       appConfig,
		metrics:      metrics,
		logger:       logger,
	}
}

func toEndpoint(e config.EndpointConfig) types.Endpoint {
	ep := types.Endpoint{
		URL:         e.URL,
		DisplayName: e.DisplayName,
		Timeout:     e.Timeout,
		UserAgent:   "sparql-agent-go/1.0",
	}
	if e.AuthKind != "" && e.AuthKind != "none" {
		ep.Auth = &types.Auth{
			Kind:     types.AuthKind(e.AuthKind),
			Username: e.AuthUsername,
			Password: e.AuthPassword,
			Token:    e.AuthToken,
		}
	}
	if e.RateLimitRPS > 0 {
		ep.RateLimit = &types.RateLimit{RequestsPerSec: e.RateLimitRPS, Burst: e.RateLimitBurst}
	}
	return ep
}

// loadConfiguration resolves CONFIG_DIR (or falls back to a sibling
// "configs" directory) and loads+validates the config tree.
func loadConfiguration() (*config.AppConfig, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		exe, err := os.Executable()
		if err == nil {
			configDir = filepath.Join(filepath.Dir(exe), "configs")
		} else {
			configDir = "configs"
		}
	}
	loader := config.NewLoader(configDir)
	return loader.LoadConfig()
}

func logConfigurationStatus(logger *zap.Logger, appConfig *config.AppConfig) {
	logger.Info("server config",
		zap.String("host", appConfig.Server.Host),
		zap.String("port", appConfig.Server.Port),
		zap.Duration("read_timeout", appConfig.Server.ReadTimeout),
		zap.Duration("write_timeout", appConfig.Server.WriteTimeout))
	logger.Info("discovery config",
		zap.Int("pool_size", appConfig.Discovery.PoolSize),
		zap.Bool("fast_mode", appConfig.Discovery.FastMode),
		zap.Bool("progressive_timeout", appConfig.Discovery.ProgressiveTimeout))
	logger.Info("retry config",
		zap.Int("max_validation_retries", appConfig.Retry.MaxValidationRetries),
		zap.Int("max_execution_retries", appConfig.Retry.MaxExecutionRetries))
	logger.Info("validation config", zap.Bool("strict", appConfig.Validation.Strict))
	logger.Info("inference config",
		zap.Float64("cardinality_threshold", appConfig.Inference.CardinalityThreshold),
		zap.Float64("optional_threshold", appConfig.Inference.OptionalThreshold))
	logger.Info("llm config", zap.String("provider", appConfig.LLM.Provider), zap.String("model", appConfig.LLM.Model))
	logger.Info("endpoints configured", zap.Int("count", len(appConfig.Endpoints)))
}
