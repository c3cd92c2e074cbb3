package rules

import (
	"net/url"
	"regexp"
	"strings"

	"sparql-agent-go/pkg/types"
)

var iriLiteralPattern = regexp.MustCompile(`<([^<>]*)>`)

// curieTrailPattern matches a prefixed name (CURIE) immediately followed by
// one of the illegal characters and the run of word characters after it,
// e.g. "dbr:Santa_Cruz,_California" captures ",_California" as group 2 — a
// comma pasted into what was meant to be one local name (spec §8 scenario 1
// "Comma-in-IRI repair").
var curieTrailPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_.-]*)?:[a-zA-Z_][a-zA-Z0-9_-]*([,{}][a-zA-Z0-9_-]*)`)

// illegalURIChars are characters spec §4.6 explicitly calls out: comma,
// space, and brace characters are never legal inside an IRIREF.
const illegalURIChars = ", {}"

// URIWellFormedness checks that every <...> IRI reference has a valid
// scheme + authority and no embedded whitespace or illegal characters, and
// that every prefixed name (CURIE) has no illegal trailing characters.
type URIWellFormedness struct{}

func (URIWellFormedness) Name() string { return "uri-well-formedness" }

func (URIWellFormedness) Check(q *types.Query, strict bool) []types.ValidationIssue {
	var issues []types.ValidationIssue

	for _, m := range iriLiteralPattern.FindAllStringSubmatch(q.Text, -1) {
		raw := m[1]
		if strings.ContainsAny(raw, illegalURIChars) {
			issues = append(issues, types.ValidationIssue{
				Severity: types.SeverityError, RuleID: "malformed-iri",
				Message:  "IRI <" + raw + "> contains an illegal character",
				Fragment: raw,
			})
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			issues = append(issues, types.ValidationIssue{
				Severity: types.SeverityError, RuleID: "malformed-iri",
				Message:  "IRI <" + raw + "> is not well-formed (missing scheme or authority)",
				Fragment: raw,
			})
		}
	}

	for _, m := range curieTrailPattern.FindAllString(q.Text, -1) {
		issues = append(issues, types.ValidationIssue{
			Severity: types.SeverityError, RuleID: "malformed-curie",
			Message:  "prefixed name '" + m + "' contains an illegal character",
			Fragment: m,
		})
	}

	return issues
}
