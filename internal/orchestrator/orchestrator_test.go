package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

type stubLLM struct {
	responses []string
	calls     int
}

func (s *stubLLM) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	r := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return &types.GenerateResponse{Content: r}, nil
}

type stubValidator struct{}

func (stubValidator) Validate(q *types.Query, strict bool) *types.ValidationReport {
	return &types.ValidationReport{IsValid: true}
}

type stubRetry struct {
	pre  *types.RetryOutcome
	post *types.RetryOutcome
}

func (s *stubRetry) RunPreExecution(ctx context.Context, q, query string, hints *types.QueryShapeHint) *types.RetryOutcome {
	return s.pre
}
func (s *stubRetry) RunPostExecution(ctx context.Context, query string, endpoint types.Endpoint, firstErr *types.ErrorContext) *types.RetryOutcome {
	return s.post
}

type stubExecutor struct {
	result *types.QueryResult
	errCtx *types.ErrorContext
}

func (s *stubExecutor) Execute(ctx context.Context, q *types.Query, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext) {
	return s.result, s.errCtx
}

func TestRun_HappyPathReturnsResultAndExplanation(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT ?s WHERE { ?s ?p ?o }", "there are 3 results"}}
	retryEngine := &stubRetry{pre: &types.RetryOutcome{FinalQuery: "SELECT ?s WHERE { ?s ?p ?o }", GaveUp: false, AttemptsMade: 1}}
	result := &types.QueryResult{Status: types.StatusSuccess, Variables: []string{"s"}, Bindings: []types.Binding{
		{"s": types.TypedValue{Kind: types.KindIRI, Value: "http://ex.org/1"}},
	}, RowCount: 1}
	executor := &stubExecutor{result: result}

	o := New(llm, stubValidator{}, retryEngine, executor, nil, nil, DefaultOptions(), nil)
	outcome := o.Run(context.Background(), "how many items?", types.Endpoint{URL: "https://example.org/sparql"})

	require.NotNil(t, outcome)
	assert.False(t, outcome.GaveUp)
	assert.Equal(t, "there are 3 results", outcome.Explanation)
	assert.Equal(t, result, outcome.Result)
}

func TestRun_ValidationGiveUpSurfacesAsGaveUp(t *testing.T) {
	llm := &stubLLM{responses: []string{"not sparql at all"}}
	retryEngine := &stubRetry{pre: &types.RetryOutcome{FinalQuery: "not sparql at all", GaveUp: true, AttemptsMade: 4}}
	o := New(llm, stubValidator{}, retryEngine, &stubExecutor{}, nil, nil, DefaultOptions(), nil)

	outcome := o.Run(context.Background(), "bad question", types.Endpoint{URL: "https://example.org/sparql"})
	assert.True(t, outcome.GaveUp)
	assert.Equal(t, 4, outcome.Metadata.ValidationAttempts)
}

func TestRun_ExecutionFailureDrivesPostExecutionRetry(t *testing.T) {
	llm := &stubLLM{responses: []string{"SELECT ?s WHERE { ?s ?p ?o }"}}
	retryEngine := &stubRetry{
		pre: &types.RetryOutcome{FinalQuery: "SELECT ?s WHERE { ?s ?p ?o }", GaveUp: false, AttemptsMade: 1},
		post: &types.RetryOutcome{
			FinalQuery: "SELECT ?s WHERE { ?s ?p ?o } LIMIT 100", GaveUp: false, AttemptsMade: 2,
			FinalResult: &types.QueryResult{Status: types.StatusSuccess, RowCount: 0},
		},
	}
	executor := &stubExecutor{errCtx: &types.ErrorContext{Category: types.CategoryTimeout}}

	o := New(llm, stubValidator{}, retryEngine, executor, nil, nil, DefaultOptions(), nil)
	outcome := o.Run(context.Background(), "how many?", types.Endpoint{URL: "https://example.org/sparql"})

	assert.False(t, outcome.GaveUp)
	assert.Equal(t, "SELECT ?s WHERE { ?s ?p ?o } LIMIT 100", outcome.FinalQuery)
	assert.Contains(t, outcome.Metadata.Classifications, types.CategoryTimeout)
}

func TestClassifyIntent_DetectsExistenceQuestion(t *testing.T) {
	hint := classifyIntent("is there a protein named insulin?")
	assert.Equal(t, types.QueryAsk, hint.LikelyType)
	assert.True(t, hint.IsExistence)
}

func TestClassifyIntent_DetectsAggregationQuestion(t *testing.T) {
	hint := classifyIntent("how many proteins are there per organism?")
	assert.True(t, hint.NeedsGroupBy)
}
