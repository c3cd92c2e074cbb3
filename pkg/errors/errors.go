// Package errors defines the typed error hierarchy this module raises.
// Every error embeds a types.ErrorContext so category, severity, and
// remediation suggestions travel with the error value itself rather than
// being reconstructed from an error string at the call site.
package errors

import (
	"fmt"
	"time"

	"sparql-agent-go/pkg/types"
)

// ExecutionError is the base error: it carries an ErrorContext plus the
// component that raised it. Component-specific errors embed it the way the
// teacher's ProviderError/ParsingError embed ProcessingError.
type ExecutionError struct {
	Context   types.ErrorContext `json:"context"`
	Component string             `json:"component"`
	Timestamp time.Time          `json:"timestamp"`
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Component, e.Context.Category, e.Context.Message)
}

// ErrorContext returns a pointer to the embedded ErrorContext so callers
// holding an ExecutionError can read or amend its category and metadata.
func (e *ExecutionError) ErrorContext() *types.ErrorContext { return &e.Context }

// NewExecutionError builds an ExecutionError from a category, message, and
// the component raising it. Severity/recoverable/retry strategy are filled
// in by the caller via the builder methods below, or by a classification
// table (internal/retry/classify.go) when the error originates at the
// network boundary.
func NewExecutionError(category types.ErrorCategory, message, component string) *ExecutionError {
	return &ExecutionError{
		Context: types.ErrorContext{
			Category: category,
			Message:  message,
			Metadata: make(map[string]interface{}),
		},
		Component: component,
		Timestamp: time.Now(),
	}
}

// WithSeverity sets severity (1-10).
func (e *ExecutionError) WithSeverity(s int) *ExecutionError {
	e.Context.Severity = s
	return e
}

// WithRecoverable sets whether retrying is worthwhile at all.
func (e *ExecutionError) WithRecoverable(r bool) *ExecutionError {
	e.Context.Recoverable = r
	return e
}

// WithRetryStrategy attaches the remediation policy for this category.
func (e *ExecutionError) WithRetryStrategy(s types.RetryStrategy) *ExecutionError {
	e.Context.RetryStrategy = s
	return e
}

// WithSuggestion appends one actionable suggestion.
func (e *ExecutionError) WithSuggestion(s string) *ExecutionError {
	e.Context.Suggestions = append(e.Context.Suggestions, s)
	return e
}

// WithSuggestions appends multiple suggestions at once.
func (e *ExecutionError) WithSuggestions(s ...string) *ExecutionError {
	e.Context.Suggestions = append(e.Context.Suggestions, s...)
	return e
}

// WithTechnicalDetails attaches the raw server/transport message.
func (e *ExecutionError) WithTechnicalDetails(d string) *ExecutionError {
	e.Context.TechnicalDetails = d
	return e
}

// WithMetadata sets one metadata key (e.g. "suggested_limit").
func (e *ExecutionError) WithMetadata(key string, value interface{}) *ExecutionError {
	if e.Context.Metadata == nil {
		e.Context.Metadata = make(map[string]interface{})
	}
	e.Context.Metadata[key] = value
	return e
}

// ValidationFailure represents a ValidationReport that blocked execution;
// it is raised only when an orchestrator-level caller treats "invalid" as
// fatal (the normal path threads the report through as data, never as an
// error -- spec §7 "Validator errors are structured data, never exceptions").
type ValidationFailure struct {
	ExecutionError
	Report *types.ValidationReport `json:"report"`
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("[%s] validation failed: %s", e.Component, e.Context.Message)
}

// NewValidationFailure wraps a failing ValidationReport as an error.
func NewValidationFailure(report *types.ValidationReport, component string) *ValidationFailure {
	return &ValidationFailure{
		ExecutionError: *NewExecutionError(types.CategorySyntax, "query failed static validation", component),
		Report:         report,
	}
}

// DiscoveryError represents a failure in the discovery subsystem (C1-C4)
// that is severe enough to abort a caller-initiated probe run rather than
// being recorded as a field in the EndpointHealth/Capabilities record.
type DiscoveryError struct {
	ExecutionError
	Endpoint string `json:"endpoint"`
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("[%s] discovery error for %s: %s", e.Component, e.Endpoint, e.Context.Message)
}

// NewDiscoveryError builds a DiscoveryError.
func NewDiscoveryError(message, component, endpoint string) *DiscoveryError {
	return &DiscoveryError{
		ExecutionError: *NewExecutionError(types.CategoryNetwork, message, component),
		Endpoint:       endpoint,
	}
}

// Common component identifiers, for consistency across packages.
const (
	ComponentProber       = "connectivity_prober"
	ComponentPinger       = "concurrent_pinger"
	ComponentCapability   = "capability_detector"
	ComponentStatistics   = "statistics_collector"
	ComponentInference    = "schema_inferencer"
	ComponentValidator    = "query_validator"
	ComponentRetryEngine  = "retry_engine"
	ComponentExecutor     = "query_executor"
	ComponentOrchestrator = "execution_orchestrator"
	ComponentLLMClient    = "llm_client"
)

// Suggestion lists reused by the classification table (internal/retry) so
// every ErrorContext of a given category gets the same baseline advice
// before any query-specific suggestion (e.g. a computed LIMIT) is appended.
var (
	SuggestionsForTimeout = []string{
		"reduce the query's LIMIT",
		"simplify FILTER expressions",
		"avoid unbounded property paths",
	}
	SuggestionsForRateLimit = []string{
		"retry after the server-supplied Retry-After interval",
		"reduce request concurrency to this endpoint",
	}
	SuggestionsForUnknownTerm = []string{
		"check the IRI for typos",
		"consult the endpoint's discovered namespaces for the correct term",
	}
	SuggestionsForAuthentication = []string{
		"verify the configured credentials for this endpoint",
		"confirm the endpoint still requires the configured auth scheme",
	}
	SuggestionsForNetwork = []string{
		"verify the endpoint URL is reachable",
		"check for an intervening proxy or firewall",
	}
)
