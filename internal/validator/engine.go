// Package validator implements the Query Validator (C6): static SPARQL
// syntax/semantic/style checks producing severity-graded ValidationIssues,
// grounded in the teacher's rule-registry RuleEngine but narrowed to the
// checks spec §4.6 names.
package validator

import (
	"sort"

	"go.uber.org/zap"

	"sparql-agent-go/internal/validator/rules"
	"sparql-agent-go/pkg/types"
)

// Rule is one static check a Validator runs against a Query.
type Rule interface {
	Name() string
	Check(q *types.Query, strict bool) []types.ValidationIssue
}

// Engine implements interfaces.Validator by running a fixed, ordered set
// of Rules and folding their issues into one ValidationReport.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine builds a Validator with the default rule set (spec §4.6).
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger: logger,
		rules: []Rule{
			rules.BalancedDelimiters{},
			rules.PrefixDeclarations{},
			rules.ProjectedVariables{},
			rules.URIWellFormedness{},
			rules.StyleWarnings{},
		},
	}
}

// Validate runs every registered rule and assembles the final report. Strict
// mode raises some warnings to errors (spec §4.6).
func (e *Engine) Validate(q *types.Query, strict bool) *types.ValidationReport {
	var issues []types.ValidationIssue
	for _, r := range e.rules {
		found := r.Check(q, strict)
		issues = append(issues, found...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank(issues[i].Severity) < severityRank(issues[j].Severity)
	})

	return types.NewValidationReport(issues)
}

func severityRank(s types.Severity) int {
	switch s {
	case types.SeverityError:
		return 0
	case types.SeverityWarning:
		return 1
	default:
		return 2
	}
}
