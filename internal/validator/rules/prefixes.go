package rules

import (
	"regexp"

	"sparql-agent-go/pkg/types"
)

var (
	usedPrefixPattern     = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_.-]*)?:[a-zA-Z_][a-zA-Z0-9_-]*`)
	declaredPrefixPattern = regexp.MustCompile(`(?i)PREFIX\s+([a-zA-Z_][a-zA-Z0-9_.-]*)?:\s*<[^>]*>`)
)

// wellKnownPrefixes are accepted implicitly even without a PREFIX line
// (spec §4.6 "or is a well-known default prefix the implementation
// chooses to accept implicitly").
var wellKnownPrefixes = map[string]bool{
	"rdf":  true,
	"rdfs": true,
	"xsd":  true,
	"owl":  true,
}

// PrefixDeclarations checks that every prefix used in the query is declared
// (or well-known), and warns about declared-but-unused prefixes.
type PrefixDeclarations struct{}

func (PrefixDeclarations) Name() string { return "prefix-declarations" }

func (PrefixDeclarations) Check(q *types.Query, strict bool) []types.ValidationIssue {
	declared := make(map[string]bool)
	for _, m := range declaredPrefixPattern.FindAllStringSubmatch(q.Text, -1) {
		declared[m[1]] = true
	}

	used := make(map[string]bool)
	for _, m := range usedPrefixPattern.FindAllStringSubmatch(q.Text, -1) {
		used[m[1]] = true
	}

	var issues []types.ValidationIssue
	for p := range used {
		if p == "" {
			continue
		}
		if declared[p] || wellKnownPrefixes[p] {
			continue
		}
		issues = append(issues, types.ValidationIssue{
			Severity: types.SeverityError, RuleID: "undeclared-prefix",
			Message:    "prefix '" + p + "' is used but not declared",
			Suggestion: "add a PREFIX " + p + ": <...> declaration",
		})
	}

	for p := range declared {
		if !used[p] {
			issues = append(issues, types.ValidationIssue{
				Severity: types.SeverityWarning, RuleID: "unused-prefix",
				Message: "prefix '" + p + "' is declared but never used",
			})
		}
	}

	return issues
}
