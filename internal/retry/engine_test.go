package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

type stubValidator struct {
	reports []*types.ValidationReport
	calls   int
}

func (s *stubValidator) Validate(q *types.Query, strict bool) *types.ValidationReport {
	r := s.reports[s.calls]
	if s.calls < len(s.reports)-1 {
		s.calls++
	}
	return r
}

type stubLLM struct {
	responses []string
	calls     int
	err       error
}

func (s *stubLLM) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return &types.GenerateResponse{Content: r}, nil
}

type stubExecutor struct {
	results []*types.QueryResult
	errs    []*types.ErrorContext
	calls   int
}

func (s *stubExecutor) Execute(ctx context.Context, q *types.Query, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	res, errCtx := s.results[i], s.errs[i]
	s.calls++
	return res, errCtx
}

func validReport() *types.ValidationReport {
	return &types.ValidationReport{IsValid: true}
}

func invalidReport(ruleID string) *types.ValidationReport {
	return types.NewValidationReport([]types.ValidationIssue{{Severity: types.SeverityError, RuleID: ruleID, Message: "bad"}})
}

func TestRunPreExecution_SucceedsWithoutRetryWhenValid(t *testing.T) {
	v := &stubValidator{reports: []*types.ValidationReport{validReport()}}
	e := New(DefaultConfig(), v, &stubLLM{}, &stubExecutor{}, false, nil)

	outcome := e.RunPreExecution(context.Background(), "how many proteins?", "SELECT * WHERE { ?s ?p ?o }", nil)
	assert.False(t, outcome.GaveUp)
	assert.Equal(t, 1, outcome.AttemptsMade)
}

func TestRunPreExecution_FixesThenSucceeds(t *testing.T) {
	v := &stubValidator{reports: []*types.ValidationReport{invalidReport("unbalanced-braces"), validReport()}}
	llm := &stubLLM{responses: []string{"```sparql\nSELECT ?s WHERE { ?s ?p ?o }\n```"}}
	e := New(DefaultConfig(), v, llm, &stubExecutor{}, false, nil)

	outcome := e.RunPreExecution(context.Background(), "q", "SELECT ?s WHERE { ?s ?p ?o", nil)
	assert.False(t, outcome.GaveUp)
	assert.Equal(t, "SELECT ?s WHERE { ?s ?p ?o }", outcome.FinalQuery)
}

func TestRunPreExecution_GivesUpAtBudget(t *testing.T) {
	always := invalidReport("unbalanced-braces")
	v := &stubValidator{reports: []*types.ValidationReport{always}}
	llm := &stubLLM{responses: []string{"SELECT ?s WHERE { ?s ?p ?o }"}}
	cfg := Config{MaxValidationRetries: 2, MaxExecutionRetries: 2, BackoffBase: 0}
	e := New(cfg, v, llm, &stubExecutor{}, false, nil)

	outcome := e.RunPreExecution(context.Background(), "q", "bad", nil)
	assert.True(t, outcome.GaveUp)
	assert.Equal(t, 3, outcome.AttemptsMade)
}

func TestRunPostExecution_NoErrorReturnsImmediately(t *testing.T) {
	e := New(DefaultConfig(), &stubValidator{}, &stubLLM{}, &stubExecutor{}, false, nil)
	outcome := e.RunPostExecution(context.Background(), "SELECT * WHERE { ?s ?p ?o }", types.Endpoint{URL: "https://example.org"}, nil)
	assert.False(t, outcome.GaveUp)
}

func TestRunPostExecution_AuthenticationNeverRetries(t *testing.T) {
	e := New(DefaultConfig(), &stubValidator{}, &stubLLM{}, &stubExecutor{}, false, nil)
	errCtx := &types.ErrorContext{Category: types.CategoryAuthentication, RetryStrategy: types.RetryNone, Recoverable: false}
	outcome := e.RunPostExecution(context.Background(), "SELECT * WHERE { ?s ?p ?o }", types.Endpoint{URL: "https://example.org"}, errCtx)
	assert.True(t, outcome.GaveUp)
	require.Equal(t, 1, outcome.AttemptsMade)
}

func TestRunPostExecution_TimeoutInjectsLimitAndSucceeds(t *testing.T) {
	cfg := Config{MaxValidationRetries: 3, MaxExecutionRetries: 2, BackoffBase: 0}
	exec := &stubExecutor{
		results: []*types.QueryResult{nil, {Status: types.StatusSuccess}},
		errs:    []*types.ErrorContext{nil, nil},
	}
	e := New(cfg, &stubValidator{}, &stubLLM{}, exec, false, nil)
	firstErr := &types.ErrorContext{Category: types.CategoryTimeout, RetryStrategy: types.RetryExponentialBackoff, Recoverable: true}

	outcome := e.RunPostExecution(context.Background(), "SELECT * WHERE { ?s ?p ?o }", types.Endpoint{URL: "https://example.org"}, firstErr)
	assert.False(t, outcome.GaveUp)
	assert.Contains(t, outcome.FinalQuery, "LIMIT")
}

func TestAdjustLimit_HalvesExistingLimit(t *testing.T) {
	out := adjustLimit("SELECT * WHERE { ?s ?p ?o } LIMIT 200", &types.ErrorContext{})
	assert.Contains(t, out, "LIMIT 100")
}

func TestAdjustLimit_InjectsWhenAbsent(t *testing.T) {
	out := adjustLimit("SELECT * WHERE { ?s ?p ?o }", &types.ErrorContext{})
	assert.Contains(t, out, "LIMIT 100")
}
