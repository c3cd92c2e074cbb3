package types

// ErrorCategory is the fixed taxonomy of kinds an ErrorContext can carry
// (spec §7). It intentionally has no "HTTP status" member: status codes are
// an input to classification, not a category of their own.
type ErrorCategory string

const (
	CategorySyntax              ErrorCategory = "syntax"
	CategoryParse               ErrorCategory = "parse"
	CategoryTimeout             ErrorCategory = "timeout"
	CategoryNetwork             ErrorCategory = "network"
	CategoryRateLimit           ErrorCategory = "rate_limit"
	CategoryAuthentication      ErrorCategory = "authentication"
	CategoryAccessDenied        ErrorCategory = "access_denied"
	CategoryEndpointUnavailable ErrorCategory = "endpoint_unavailable"
	CategoryUnknownTerm         ErrorCategory = "unknown_term"
	CategoryMemory              ErrorCategory = "memory" // a.k.a. ResultTooLarge
	CategoryQueryTooComplex     ErrorCategory = "query_too_complex"
	CategoryUnknown             ErrorCategory = "unknown"
)

// RetryStrategy is the remediation policy attached to an ErrorCategory by
// the classification table (spec §4.7, §9 "keep the classifier data-driven").
type RetryStrategy string

const (
	RetryNone              RetryStrategy = "none"
	RetryImmediate         RetryStrategy = "immediate"
	RetryLinearBackoff     RetryStrategy = "linear_backoff"
	RetryExponentialBackoff RetryStrategy = "exponential_backoff"
)

// ErrorContext is the structured error record that flows from the Executor
// (C8) through the Retry Engine (C7) to the Orchestrator (C9). It is a
// plain data record, not a raised exception, carrying enough to both decide
// a remediation policy and render a user-visible message.
type ErrorContext struct {
	Category         ErrorCategory          `json:"category"`
	Severity         int                    `json:"severity"` // 1-10
	Recoverable      bool                   `json:"recoverable"`
	RetryStrategy    RetryStrategy          `json:"retry_strategy"`
	Message          string                 `json:"message"`
	Suggestions      []string               `json:"suggestions,omitempty"`
	TechnicalDetails string                 `json:"technical_details,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}
