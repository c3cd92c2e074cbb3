// Package retry implements the Retry Engine (C7): the pre-execution
// validation-repair loop and the post-execution error-classified repair
// loop, sharing one data-driven error taxonomy (spec §4.7, §9).
package retry

import (
	"regexp"
	"strconv"
	"strings"

	"sparql-agent-go/pkg/errors"
	"sparql-agent-go/pkg/types"
)

// classificationRule is one row of the substring pattern table spec §4.7
// calls for ("classification uses substring pattern tables applied to the
// error message and, when available, HTTP status").
type classificationRule struct {
	category     types.ErrorCategory
	statusCodes  []int // matches if the HTTP status is one of these; empty = any
	substrings   []string
	severity     int
	recoverable  bool
	retryStrat   types.RetryStrategy
	suggestions  []string
}

var limitPattern = regexp.MustCompile(`(?i)current limit\s+(\d+)`)

// classificationTable is the ordered, data-driven rule set. Order matters:
// the first matching rule wins.
var classificationTable = []classificationRule{
	{
		category: types.CategoryRateLimit, statusCodes: []int{429},
		substrings: []string{"rate limit", "too many requests"},
		severity: 4, recoverable: true, retryStrat: types.RetryLinearBackoff,
		suggestions: errors.SuggestionsForRateLimit,
	},
	{
		category: types.CategoryAuthentication, statusCodes: []int{401},
		substrings: []string{"unauthorized", "invalid credentials", "authentication failed"},
		severity: 8, recoverable: false, retryStrat: types.RetryNone,
		suggestions: errors.SuggestionsForAuthentication,
	},
	{
		category: types.CategoryAccessDenied, statusCodes: []int{403},
		substrings: []string{"forbidden", "access denied", "permission denied"},
		severity: 8, recoverable: false, retryStrat: types.RetryNone,
	},
	{
		category: types.CategoryTimeout,
		substrings: []string{"timeout", "timed out", "deadline exceeded", "context deadline exceeded"},
		severity: 5, recoverable: true, retryStrat: types.RetryExponentialBackoff,
		suggestions: errors.SuggestionsForTimeout,
	},
	{
		category: types.CategoryMemory,
		substrings: []string{"result too large", "memory limit", "out of memory", "too many results"},
		severity: 6, recoverable: true, retryStrat: types.RetryImmediate,
	},
	{
		category: types.CategoryUnknownTerm,
		substrings: []string{"unknown predicate", "unknown property", "undefined prefix", "unresolved prefix"},
		severity: 3, recoverable: true, retryStrat: types.RetryImmediate,
		suggestions: errors.SuggestionsForUnknownTerm,
	},
	{
		category: types.CategorySyntax, statusCodes: []int{400},
		substrings: []string{"parse error", "syntax error", "malformed query", "encountered \""},
		severity: 4, recoverable: true, retryStrat: types.RetryImmediate,
	},
	{
		category: types.CategoryQueryTooComplex,
		substrings: []string{"query too complex", "too many joins", "estimated cost"},
		severity: 6, recoverable: true, retryStrat: types.RetryImmediate,
	},
	{
		category: types.CategoryEndpointUnavailable, statusCodes: []int{502, 503, 504},
		substrings: []string{"service unavailable", "bad gateway", "gateway timeout"},
		severity: 7, recoverable: true, retryStrat: types.RetryExponentialBackoff,
		suggestions: errors.SuggestionsForNetwork,
	},
	{
		category: types.CategoryNetwork,
		substrings: []string{"connection refused", "no such host", "network is unreachable", "connection reset"},
		severity: 6, recoverable: true, retryStrat: types.RetryExponentialBackoff,
		suggestions: errors.SuggestionsForNetwork,
	},
}

// Classify maps a raw error message (and optional HTTP status, 0 if
// unknown) to an ErrorContext using the ordered substring table. Unmatched
// messages fall through to Unknown (spec §4.7).
func Classify(message string, status int) *types.ErrorContext {
	lower := strings.ToLower(message)

	for _, rule := range classificationTable {
		if !statusMatches(rule.statusCodes, status) {
			continue
		}
		if !anySubstring(lower, rule.substrings) {
			continue
		}
		return buildContext(rule, message)
	}

	return &types.ErrorContext{
		Category: types.CategoryUnknown, Severity: 5, Recoverable: true,
		RetryStrategy: types.RetryImmediate, Message: message,
	}
}

func statusMatches(codes []int, status int) bool {
	if len(codes) == 0 {
		return true
	}
	if status == 0 {
		return false
	}
	for _, c := range codes {
		if c == status {
			return true
		}
	}
	return false
}

func anySubstring(haystack string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func buildContext(rule classificationRule, message string) *types.ErrorContext {
	ctx := &types.ErrorContext{
		Category: rule.category, Severity: rule.severity, Recoverable: rule.recoverable,
		RetryStrategy: rule.retryStrat, Message: message, Suggestions: rule.suggestions,
	}
	if m := limitPattern.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ctx.Metadata = map[string]interface{}{"suggested_limit": n / 2}
		}
	}
	return ctx
}
