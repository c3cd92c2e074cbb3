package orchestrator

import (
	"regexp"
	"strings"
	"sync"
)

// placeholderPattern matches {name} tokens inside a prompt template,
// adapted from the teacher's TemplateParser.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// templateSegment is one parsed chunk of a template: either literal text or
// a placeholder name to substitute.
type templateSegment struct {
	isPlaceholder bool
	content       string
}

// parsedTemplate is a template split into segments once so that rendering
// with different values is just a concatenation pass, not a repeated regex
// scan (the teacher's TemplateParser caches for the same reason).
type parsedTemplate struct {
	segments []templateSegment
}

// PromptBuilder parses and caches orchestrator prompt templates, rendering
// them against per-request values (spec §4.9 step 2's "prompt includes
// question, schema hints, a small set of canonical prefixes").
type PromptBuilder struct {
	mu    sync.Mutex
	cache map[string]*parsedTemplate
}

// NewPromptBuilder builds an empty PromptBuilder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{cache: make(map[string]*parsedTemplate)}
}

func (b *PromptBuilder) parse(template string) *parsedTemplate {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cached, ok := b.cache[template]; ok {
		return cached
	}

	var segments []templateSegment
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		if loc[0] > last {
			segments = append(segments, templateSegment{content: template[last:loc[0]]})
		}
		segments = append(segments, templateSegment{isPlaceholder: true, content: template[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(template) {
		segments = append(segments, templateSegment{content: template[last:]})
	}

	parsed := &parsedTemplate{segments: segments}
	b.cache[template] = parsed
	return parsed
}

// Render parses (or reuses a cached parse of) template and substitutes each
// {name} placeholder from values. Unknown placeholders render as empty.
func (b *PromptBuilder) Render(template string, values map[string]string) string {
	parsed := b.parse(template)
	var out strings.Builder
	for _, seg := range parsed.segments {
		if !seg.isPlaceholder {
			out.WriteString(seg.content)
			continue
		}
		out.WriteString(values[seg.content])
	}
	return out.String()
}

// generationTemplate is the initial-draft prompt template (spec §4.9 step 2).
const generationTemplate = `Translate the following question into a single SPARQL query.

Question: {question}

Canonical prefixes:
{prefixes}

Schema hints:
{schema_hints}

Return only the SPARQL query, no commentary.`

// explanationTemplate is the post-success summary prompt (spec §4.9 step 6).
const explanationTemplate = `Summarize the following SPARQL query result bindings in plain language for
a non-technical reader. Mention the count of rows shown.

Question: {question}
Query: {query}
Bindings (first rows): {bindings}`

const canonicalPrefixes = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>`

// BuildGenerationPrompt renders the initial query-generation prompt.
func (b *PromptBuilder) BuildGenerationPrompt(question, schemaHints string) string {
	return b.Render(generationTemplate, map[string]string{
		"question":     question,
		"prefixes":     canonicalPrefixes,
		"schema_hints": schemaHints,
	})
}

// BuildExplanationPrompt renders the post-success summary prompt.
func (b *PromptBuilder) BuildExplanationPrompt(question, query, bindings string) string {
	return b.Render(explanationTemplate, map[string]string{
		"question": question,
		"query":    query,
		"bindings": bindings,
	})
}
