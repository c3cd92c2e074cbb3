package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sparql-agent-go/internal/discovery"
	"sparql-agent-go/internal/orchestrator"
	"sparql-agent-go/pkg/types"
)

type stubLLM struct{ content string }

func (s *stubLLM) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	return &types.GenerateResponse{Content: s.content}, nil
}

type stubValidator struct{}

func (stubValidator) Validate(q *types.Query, strict bool) *types.ValidationReport {
	return &types.ValidationReport{IsValid: true}
}

type stubRetry struct{ outcome *types.RetryOutcome }

func (s *stubRetry) RunPreExecution(ctx context.Context, q, query string, hints *types.QueryShapeHint) *types.RetryOutcome {
	return s.outcome
}
func (s *stubRetry) RunPostExecution(ctx context.Context, query string, endpoint types.Endpoint, firstErr *types.ErrorContext) *types.RetryOutcome {
	return &types.RetryOutcome{GaveUp: true, FinalError: firstErr}
}

type stubExecutor struct{ result *types.QueryResult }

func (s *stubExecutor) Execute(ctx context.Context, q *types.Query, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext) {
	return s.result, nil
}

func newTestApp() *application {
	result := &types.QueryResult{Status: types.StatusSuccess, Variables: []string{"s"}, RowCount: 1}
	orch := orchestrator.New(
		&stubLLM{content: "SELECT ?s WHERE { ?s ?p ?o }"},
		stubValidator{},
		&stubRetry{outcome: &types.RetryOutcome{FinalQuery: "SELECT ?s WHERE { ?s ?p ?o }", GaveUp: false, AttemptsMade: 1}},
		&stubExecutor{result: result},
		nil, nil,
		orchestrator.DefaultOptions(), nil,
	)
	prober := discovery.NewProber(false, nil)
	pinger := discovery.NewPinger(prober, discovery.PingerConfig{PoolSize: 2, HistoryCap: 10}, nil)
	return &application{
		orchestrator: orch,
		endpoints:    []types.Endpoint{{URL: "https://example.org/sparql", DisplayName: "example"}},
		pinger:       pinger,
		logger:       zap.NewNop(),
	}
}

func TestQueryHandler_HappyPath(t *testing.T) {
	app := newTestApp()
	body := `{"question":"how many triples are there?"}`
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	rr := httptest.NewRecorder()

	queryHandler(app).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var outcome types.OrchestratorOutcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	assert.False(t, outcome.GaveUp)
}

func TestQueryHandler_RejectsEmptyQuestion(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question":""}`))
	rr := httptest.NewRecorder()

	queryHandler(app).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueryHandler_RejectsInvalidJSON(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	queryHandler(app).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthHandler_ReportsStatus(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	healthHandler(app).ServeHTTP(rr, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp, "status")
}

func TestEndpointsHandler_ListsConfiguredEndpoints(t *testing.T) {
	app := newTestApp()
	req := httptest.NewRequest(http.MethodGet, "/endpoints", nil)
	rr := httptest.NewRecorder()

	endpointsHandler(app).ServeHTTP(rr, req)

	var resp map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp["endpoints"], 1)
	assert.Equal(t, "example", resp["endpoints"][0]["display_name"])
}

func TestValidateQueryRequest(t *testing.T) {
	assert.NoError(t, validateQueryRequest(&queryRequest{Question: "how many?"}))
	assert.Error(t, validateQueryRequest(&queryRequest{Question: ""}))
	assert.Error(t, validateQueryRequest(&queryRequest{Question: strings.Repeat("a", 2001)}))
}

func TestSetupRoutes_ExposesMetrics(t *testing.T) {
	app := newTestApp()
	reg := prometheus.NewRegistry()
	handler := setupRoutes(app, reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
