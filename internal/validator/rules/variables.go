package rules

import (
	"regexp"
	"strings"

	"sparql-agent-go/pkg/types"
)

var (
	selectClausePattern = regexp.MustCompile(`(?is)SELECT\s+(DISTINCT\s+|REDUCED\s+)?(.*?)\s+WHERE`)
	wherePattern         = regexp.MustCompile(`(?is)WHERE\s*\{(.*)\}\s*(ORDER BY|GROUP BY|LIMIT|OFFSET|HAVING|VALUES|$)`)
	variablePattern      = regexp.MustCompile(`[?$][a-zA-Z_][a-zA-Z0-9_]*`)
)

// ProjectedVariables checks that every SELECT-projected variable appears
// somewhere in the WHERE pattern, and warns about SELECT * / single-use
// variables (spec §4.6).
type ProjectedVariables struct{}

func (ProjectedVariables) Name() string { return "projected-variables" }

func (ProjectedVariables) Check(q *types.Query, strict bool) []types.ValidationIssue {
	if q.Type != types.QuerySelect {
		return nil
	}

	selectMatch := selectClausePattern.FindStringSubmatch(q.Text)
	if selectMatch == nil {
		return nil
	}
	projection := strings.TrimSpace(selectMatch[2])

	var issues []types.ValidationIssue

	if projection == "*" {
		sev := types.SeverityWarning
		if strict {
			sev = types.SeverityError
		}
		issues = append(issues, types.ValidationIssue{
			Severity: sev, RuleID: "select-star",
			Message: "SELECT * projects every bound variable; prefer an explicit projection list",
		})
		return issues
	}

	projectedVars := dedupe(variablePattern.FindAllString(projection, -1))

	whereMatch := wherePattern.FindStringSubmatch(q.Text)
	whereBody := ""
	if whereMatch != nil {
		whereBody = whereMatch[1]
	}

	for _, v := range projectedVars {
		if !strings.Contains(whereBody, v) {
			issues = append(issues, types.ValidationIssue{
				Severity: types.SeverityError, RuleID: "projected-var-not-in-where",
				Message: "projected variable " + v + " does not appear in the WHERE pattern",
			})
		}
	}

	if strict {
		counts := make(map[string]int)
		for _, v := range variablePattern.FindAllString(q.Text, -1) {
			counts[v]++
		}
		for v, c := range counts {
			if c == 1 {
				issues = append(issues, types.ValidationIssue{
					Severity: types.SeverityWarning, RuleID: "single-use-variable",
					Message: "variable " + v + " is used only once",
				})
			}
		}
	}

	return issues
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
