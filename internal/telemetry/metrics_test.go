package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func TestRecordValidation_IncrementsPerIssue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	report := types.NewValidationReport([]types.ValidationIssue{
		{Severity: types.SeverityError, RuleID: "unbalanced-braces"},
		{Severity: types.SeverityWarning, RuleID: "unused-prefix"},
	})
	m.RecordValidation(report)

	mf, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range mf {
		if family.GetName() == "sparql_agent_validator_issues_total" {
			for _, metric := range family.Metric {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), total)
}
