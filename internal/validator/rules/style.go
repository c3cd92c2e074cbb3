package rules

import (
	"regexp"
	"strconv"
	"strings"

	"sparql-agent-go/pkg/types"
)

var (
	orderByPattern      = regexp.MustCompile(`(?i)ORDER\s+BY`)
	limitPattern        = regexp.MustCompile(`(?i)LIMIT\s+\d+`)
	bindPattern         = regexp.MustCompile(`(?i)BIND\s*\([^)]*\bAS\s+([?$][a-zA-Z_][a-zA-Z0-9_]*)\s*\)`)
	optionalPattern     = regexp.MustCompile(`(?i)\bOPTIONAL\s*\{`)
	selectDistinctStar  = regexp.MustCompile(`(?i)SELECT\s+DISTINCT\s+\*`)
	regexFilterPattern  = regexp.MustCompile(`(?i)FILTER\s*\(\s*regex\s*\(\s*(?:str\s*\(\s*\?[a-zA-Z_][a-zA-Z0-9_]*\s*\)|\?[a-zA-Z_][a-zA-Z0-9_]*)\s*,\s*"([^"]*)"`)
)

// excessiveOptionalThreshold mirrors the original handler's query-optimization
// analysis (error_handler_examples.py suggest_optimizations): five or more
// OPTIONAL blocks is flagged as a likely join-explosion risk.
const excessiveOptionalThreshold = 5

// StyleWarnings covers the advisory checks spec §4.6 names (ORDER BY
// without LIMIT, unused BIND variables) plus the supplemented query
// optimization suggestions from spec §12 (OPTIONAL-block counting,
// SELECT DISTINCT * with multiple OPTIONALs, unanchored FILTER regex()).
type StyleWarnings struct{}

func (StyleWarnings) Name() string { return "style-warnings" }

func (StyleWarnings) Check(q *types.Query, strict bool) []types.ValidationIssue {
	var issues []types.ValidationIssue

	if orderByPattern.MatchString(q.Text) && !limitPattern.MatchString(q.Text) {
		issues = append(issues, types.ValidationIssue{
			Severity: types.SeverityInfo, RuleID: "order-by-without-limit",
			Message: "ORDER BY without LIMIT may force the endpoint to sort the entire result set",
		})
	}

	for _, m := range bindPattern.FindAllStringSubmatch(q.Text, -1) {
		bound := m[1]
		occurrences := strings.Count(q.Text, bound)
		if occurrences <= 1 {
			issues = append(issues, types.ValidationIssue{
				Severity: types.SeverityWarning, RuleID: "unused-variable",
				Message: "variable " + bound + " is bound via BIND but never used",
			})
		}
	}

	optionalCount := len(optionalPattern.FindAllString(q.Text, -1))
	if optionalCount >= excessiveOptionalThreshold {
		issues = append(issues, types.ValidationIssue{
			Severity:   types.SeverityWarning,
			RuleID:     "excessive-optional-blocks",
			Message:    "query has " + strconv.Itoa(optionalCount) + " OPTIONAL blocks, which can cause a join explosion",
			Suggestion: "combine or drop OPTIONAL blocks that aren't needed, or split into separate queries",
		})
	}

	if selectDistinctStar.MatchString(q.Text) && optionalCount >= 2 {
		issues = append(issues, types.ValidationIssue{
			Severity:   types.SeverityWarning,
			RuleID:     "distinct-star-with-optionals",
			Message:    "SELECT DISTINCT * combined with multiple OPTIONAL blocks forces the endpoint to deduplicate a wide, sparse result set",
			Suggestion: "project only the variables you need instead of *",
		})
	}

	for _, m := range regexFilterPattern.FindAllStringSubmatch(q.Text, -1) {
		pattern := m[1]
		if !strings.HasPrefix(pattern, "^") {
			issues = append(issues, types.ValidationIssue{
				Severity:   types.SeverityInfo,
				RuleID:     "unanchored-regex-filter",
				Message:    "FILTER regex(...) pattern \"" + pattern + "\" is not anchored with ^, so the endpoint cannot use an index for it",
				Suggestion: "anchor the pattern with ^ if you only need a prefix match",
			})
		}
	}

	return issues
}
