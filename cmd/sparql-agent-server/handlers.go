package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sparql-agent-go/pkg/types"
)

// queryRequest is the POST /query request body (spec §6 "Programmatic
// API"): a natural-language question plus which configured endpoint to
// target.
type queryRequest struct {
	Question string `json:"question"`
	Endpoint string `json:"endpoint,omitempty"`
	Strict   bool   `json:"strict,omitempty"`
}

// queryHandler handles POST /query: runs the full orchestrator pipeline
// (C1-C9) for one natural-language question and returns the resulting
// OrchestratorOutcome.
func queryHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Content-Type", "application/json")

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid request", "failed to parse JSON request body")
			return
		}

		if err := validateQueryRequest(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}

		endpoint, err := app.resolveEndpoint(req.Endpoint)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "unknown endpoint", err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), endpoint.Timeout+30*time.Second)
		defer cancel()

		outcome := app.orchestrator.Run(ctx, req.Question, endpoint)
		app.recordOutcomeMetrics(endpoint, outcome)

		app.logger.Info("query processed",
			zap.String("request_id", outcome.RequestID),
			zap.String("question", req.Question),
			zap.Bool("gave_up", outcome.GaveUp),
			zap.Duration("elapsed", time.Since(start)))

		status := http.StatusOK
		if outcome.GaveUp {
			status = http.StatusUnprocessableEntity
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(outcome)
	}
}

// recordOutcomeMetrics feeds the orchestrator's own timing/classification
// bookkeeping into the prometheus registry (spec §10 ambient observability).
func (app *application) recordOutcomeMetrics(endpoint types.Endpoint, outcome *types.OrchestratorOutcome) {
	if app.metrics == nil {
		return
	}
	outcomeLabel := "success"
	if outcome.GaveUp {
		outcomeLabel = "gave_up"
	}
	app.metrics.OrchestratorRuns.WithLabelValues(outcomeLabel).Inc()

	if secs, ok := outcome.Metadata.Timings["execution"]; ok {
		status := "success"
		if outcome.Result != nil {
			status = string(outcome.Result.Status)
		}
		app.metrics.ExecutionLatency.WithLabelValues(endpoint.URL, status).Observe(secs)
	}
}

func validateQueryRequest(req *queryRequest) error {
	if req.Question == "" {
		return fmt.Errorf("question is required and cannot be empty")
	}
	if len(req.Question) > 2000 {
		return fmt.Errorf("question too long, maximum 2000 characters allowed")
	}
	return nil
}

// resolveEndpoint picks the named endpoint, or the sole configured one if
// name is empty and exactly one is configured.
func (app *application) resolveEndpoint(name string) (types.Endpoint, error) {
	if name == "" {
		if len(app.endpoints) == 1 {
			return app.endpoints[0], nil
		}
		if len(app.endpoints) == 0 {
			return types.Endpoint{}, fmt.Errorf("no endpoints configured")
		}
		return types.Endpoint{}, fmt.Errorf("endpoint name required: multiple endpoints configured")
	}
	for _, e := range app.endpoints {
		if e.DisplayName == name || e.URL == name {
			return e, nil
		}
	}
	return types.Endpoint{}, fmt.Errorf("no endpoint named %q", name)
}

// endpointsHandler handles GET /endpoints: lists configured endpoints with
// their last-known health snapshot from the Concurrent Pinger (C2), if any.
func endpointsHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		type endpointStatus struct {
			URL             string  `json:"url"`
			DisplayName     string  `json:"display_name,omitempty"`
			UptimeFraction  float64 `json:"uptime_fraction"`
			AvgResponseMs   float64 `json:"avg_response_time_ms"`
		}

		out := make([]endpointStatus, 0, len(app.endpoints))
		for _, e := range app.endpoints {
			out = append(out, endpointStatus{
				URL:            e.URL,
				DisplayName:    e.DisplayName,
				UptimeFraction: app.pinger.UptimeFraction(e.URL),
				AvgResponseMs:  app.pinger.AvgResponseTime(e.URL),
			})
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"endpoints": out})
	}
}

// healthHandler handles GET /health: probes every configured endpoint
// concurrently via the Concurrent Pinger (C2) and reports the worst
// observed status, per spec §8 scenario 5 ("healthy/degraded classification").
func healthHandler(app *application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		results := app.pinger.PingMany(ctx, app.endpoints, false)
		overall := types.Healthy
		details := make([]*types.EndpointHealth, 0, len(results))
		for _, h := range results {
			details = append(details, h)
			if h.Status == types.Unhealthy {
				overall = types.Unhealthy
			} else if h.Status == types.Degraded && overall == types.Healthy {
				overall = types.Degraded
			}
		}
		if len(app.endpoints) == 0 {
			overall = types.Unknown
		}

		status := http.StatusOK
		if overall == types.Unhealthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    overall,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "sparql-agent-go",
			"endpoints": details,
		})
	}
}

// writeErrorResponse writes a standardized error response, in the teacher's
// {error: {type, message, code}, timestamp} shape.
func writeErrorResponse(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errorType,
			"message": message,
			"code":    statusCode,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// setupRoutes configures the HTTP routes for the server: POST /query,
// GET /health, GET /endpoints, GET /metrics.
func setupRoutes(app *application, reg prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Post("/query", queryHandler(app))
	r.Get("/health", healthHandler(app))
	r.Get("/endpoints", endpointsHandler(app))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

// loggingMiddleware adds structured request logging to all handlers.
func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// corsMiddleware adds permissive CORS headers, matching the teacher's
// demo-friendly default.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
