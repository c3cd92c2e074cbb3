package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func TestExecutionError_ErrorString(t *testing.T) {
	err := NewExecutionError(types.CategoryTimeout, "query exceeded deadline", ComponentExecutor)
	assert.Equal(t, "[query_executor] timeout: query exceeded deadline", err.Error())
}

func TestExecutionError_Builders(t *testing.T) {
	err := NewExecutionError(types.CategoryTimeout, "timed out", ComponentExecutor).
		WithSeverity(6).
		WithRecoverable(true).
		WithRetryStrategy(types.RetryExponentialBackoff).
		WithSuggestions(SuggestionsForTimeout...).
		WithMetadata("suggested_limit", 500)

	require.True(t, err.Context.Recoverable)
	assert.Equal(t, 6, err.Context.Severity)
	assert.Equal(t, types.RetryExponentialBackoff, err.Context.RetryStrategy)
	assert.Contains(t, err.Context.Suggestions, "reduce the query's LIMIT")
	assert.Equal(t, 500, err.Context.Metadata["suggested_limit"])
}

func TestValidationFailure(t *testing.T) {
	report := types.NewValidationReport([]types.ValidationIssue{
		{Severity: types.SeverityError, RuleID: "unbalanced-braces", Message: "unbalanced braces"},
	})
	require.False(t, report.IsValid)

	vf := NewValidationFailure(report, ComponentValidator)
	assert.Equal(t, "[query_validator] validation failed: query failed static validation", vf.Error())
	assert.Same(t, report, vf.Report)
}

func TestDiscoveryError(t *testing.T) {
	err := NewDiscoveryError("connection refused", ComponentProber, "https://example.org/sparql")
	assert.Equal(t, "[connectivity_prober] discovery error for https://example.org/sparql: connection refused", err.Error())
}
