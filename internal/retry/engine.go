package retry

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"sparql-agent-go/pkg/interfaces"
	"sparql-agent-go/pkg/types"
)

// Config carries the two independent retry budgets spec §6 names.
type Config struct {
	MaxValidationRetries int
	MaxExecutionRetries  int
	BackoffBase          time.Duration
}

// DefaultConfig matches spec §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{MaxValidationRetries: 3, MaxExecutionRetries: 3, BackoffBase: 500 * time.Millisecond}
}

// Engine implements interfaces.RetryEngine: the pre-execution validation
// loop and the post-execution error-classified loop, sharing the data-driven
// taxonomy in classify.go. A gobreaker.CircuitBreaker guards the
// post-execution loop's endpoint calls the way the teacher's hand-rolled
// breaker guarded LLM calls, adapted to trip on endpoint failures instead.
type Engine struct {
	cfg       Config
	validator interfaces.Validator
	llm       interfaces.LLMClient
	executor  interfaces.Executor
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
	strict    bool
}

// New builds a Retry Engine wired to its collaborators.
func New(cfg Config, validator interfaces.Validator, llm interfaces.LLMClient, executor interfaces.Executor, strict bool, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "retry-engine-executor",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Engine{cfg: cfg, validator: validator, llm: llm, executor: executor, breaker: breaker, strict: strict, logger: logger}
}

var bareQueryPattern = regexp.MustCompile("(?s)```(?:sparql)?\\s*(.*?)```")

// extractQuery pulls a bare SPARQL query out of an LLM response, stripping
// a fenced code block if present. Grounded in the teacher's extractor
// pattern of tolerating conversational wrapper text around the payload.
func extractQuery(content string) (string, bool) {
	if m := bareQueryPattern.FindStringSubmatch(content); m != nil {
		q := strings.TrimSpace(m[1])
		if q != "" {
			return q, true
		}
	}
	trimmed := strings.TrimSpace(content)
	upper := strings.ToUpper(trimmed)
	for _, kw := range []string{"SELECT", "ASK", "CONSTRUCT", "DESCRIBE", "PREFIX"} {
		if strings.HasPrefix(upper, kw) {
			return trimmed, true
		}
	}
	return "", false
}

func detectQueryType(q string) types.QueryType {
	upper := strings.ToUpper(strings.TrimSpace(q))
	switch {
	case strings.Contains(upper, "ASK"):
		return types.QueryAsk
	case strings.Contains(upper, "CONSTRUCT"):
		return types.QueryConstruct
	case strings.Contains(upper, "DESCRIBE"):
		return types.QueryDescribe
	default:
		return types.QuerySelect
	}
}

func issueLines(issues []types.ValidationIssue) string {
	var b strings.Builder
	for _, iss := range issues {
		if iss.Severity != types.SeverityError {
			continue
		}
		b.WriteString("- ")
		b.WriteString(iss.RuleID)
		b.WriteString(": ")
		b.WriteString(iss.Message)
		if iss.Line != nil {
			b.WriteString(" (line ")
			b.WriteString(strconv.Itoa(*iss.Line))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RunPreExecution implements spec §4.7's pre-execution loop: validate,
// and on Error-level findings ask the LLM to fix the query, up to the
// validation budget.
func (e *Engine) RunPreExecution(ctx context.Context, originalQuestion, initialQuery string, hints *types.QueryShapeHint) *types.RetryOutcome {
	current := initialQuery
	budget := e.cfg.MaxValidationRetries
	var history []types.RetryAttempt

	for {
		q := &types.Query{Text: current, Type: detectQueryType(current)}
		report := e.validator.Validate(q, e.strict)
		history = append(history, types.RetryAttempt{ValidationReport: report})

		if report.IsValid {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: false, FinalQuery: current, History: history}
		}
		if budget <= 0 {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: true, FinalQuery: current, History: history}
		}

		prompt := buildFixPrompt(originalQuestion, current, report.Issues, hints)
		resp, err := e.llm.Generate(ctx, types.GenerateRequest{Prompt: prompt})
		budget--
		if err != nil {
			history[len(history)-1].LLMFixText = "error: " + err.Error()
			continue
		}
		history[len(history)-1].LLMFixText = resp.Content

		fixed, ok := extractQuery(resp.Content)
		if !ok {
			continue
		}
		current = fixed
	}
}

// buildFixPrompt is the structured prompt spec §4.7 names: original
// question, candidate query, Error-level issues with line/column, and any
// schema hints available from C3/C5.
func buildFixPrompt(question, query string, issues []types.ValidationIssue, hints *types.QueryShapeHint) string {
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(question)
	b.WriteString("\n\nCandidate SPARQL query:\n")
	b.WriteString(query)
	b.WriteString("\n\nValidation errors to fix:\n")
	b.WriteString(issueLines(issues))
	if hints != nil {
		b.WriteString("\nSchema hint: likely query type ")
		b.WriteString(string(hints.LikelyType))
		if hints.NeedsGroupBy {
			b.WriteString(", needs GROUP BY")
		}
		if hints.IsExistence {
			b.WriteString(", is an existence check")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReturn only the corrected SPARQL query.")
	return b.String()
}

// RunPostExecution implements spec §4.7's post-execution loop: driven by
// the ErrorContext the Executor (C8) produces, waiting per the retry
// strategy that classify.go assigns to its category and applying the
// per-category remediation in remediate(), re-entering the pre-execution
// loop on server-reported syntax errors.
func (e *Engine) RunPostExecution(ctx context.Context, query string, endpoint types.Endpoint, firstErr *types.ErrorContext) *types.RetryOutcome {
	current := query
	budget := e.cfg.MaxExecutionRetries
	errCtx := firstErr
	var history []types.RetryAttempt
	attempt := 0

	for {
		history = append(history, types.RetryAttempt{ErrorContext: errCtx})

		if errCtx == nil {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: false, FinalQuery: current, History: history}
		}
		if errCtx.RetryStrategy == types.RetryNone {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: true, FinalQuery: current, FinalError: errCtx, History: history}
		}
		if budget <= 0 {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: true, FinalQuery: current, FinalError: errCtx, History: history}
		}

		if err := e.wait(ctx, errCtx, attempt); err != nil {
			return &types.RetryOutcome{AttemptsMade: len(history), GaveUp: true, FinalQuery: current, FinalError: errCtx, History: history}
		}

		remediated, fixText := e.remediate(ctx, current, errCtx)
		history[len(history)-1].LLMFixText = fixText
		current = remediated
		budget--
		attempt++

		result, nextErr := e.executeWithBreaker(ctx, current, endpoint)
		if nextErr == nil {
			return &types.RetryOutcome{AttemptsMade: len(history) + 1, GaveUp: false, FinalQuery: current, FinalResult: result, History: history}
		}
		errCtx = nextErr
	}
}

func (e *Engine) executeWithBreaker(ctx context.Context, query string, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext) {
	type outcome struct {
		result *types.QueryResult
		errCtx *types.ErrorContext
	}
	raw, breakerErr := e.breaker.Execute(func() (interface{}, error) {
		q := &types.Query{Text: query, Type: detectQueryType(query)}
		result, errCtx := e.executor.Execute(ctx, q, endpoint)
		if errCtx != nil {
			return outcome{result: result, errCtx: errCtx}, errCtxAsError(errCtx)
		}
		return outcome{result: result, errCtx: nil}, nil
	})
	if breakerErr != nil {
		if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
			return nil, &types.ErrorContext{
				Category: types.CategoryEndpointUnavailable, Severity: 7, Recoverable: true,
				RetryStrategy: types.RetryExponentialBackoff, Message: "circuit breaker open: endpoint failing repeatedly",
			}
		}
		o := raw.(outcome)
		return o.result, o.errCtx
	}
	o := raw.(outcome)
	return o.result, o.errCtx
}

type breakerSentinel struct{ msg string }

func (b breakerSentinel) Error() string { return b.msg }

func errCtxAsError(ec *types.ErrorContext) error {
	return breakerSentinel{msg: ec.Message}
}

// remediate applies spec §4.7's per-category action: inject/lower LIMIT,
// prompt the LLM with offending term, or re-run pre-execution validation on
// server-reported syntax errors.
func (e *Engine) remediate(ctx context.Context, query string, errCtx *types.ErrorContext) (string, string) {
	switch errCtx.Category {
	case types.CategoryTimeout, types.CategoryMemory:
		return adjustLimit(query, errCtx), ""
	case types.CategoryQueryTooComplex:
		return adjustLimit(query, errCtx), ""
	case types.CategorySyntax:
		outcome := e.RunPreExecution(ctx, "repair server-reported syntax error", query, nil)
		return outcome.FinalQuery, "re-entered pre-execution validation"
	case types.CategoryUnknownTerm:
		resp, err := e.llm.Generate(ctx, types.GenerateRequest{Prompt: buildUnknownTermPrompt(query, errCtx)})
		if err != nil {
			return query, "error: " + err.Error()
		}
		if fixed, ok := extractQuery(resp.Content); ok {
			return fixed, resp.Content
		}
		return query, resp.Content
	default:
		return query, ""
	}
}

func buildUnknownTermPrompt(query string, errCtx *types.ErrorContext) string {
	var b strings.Builder
	b.WriteString("The following SPARQL query referenced an unresolvable term.\n\nQuery:\n")
	b.WriteString(query)
	b.WriteString("\n\nError: ")
	b.WriteString(errCtx.Message)
	b.WriteString("\n\nReturn a corrected SPARQL query using a term that actually exists in the dataset's schema.")
	return b.String()
}

var limitClausePattern = regexp.MustCompile(`(?i)LIMIT\s+(\d+)`)

// adjustLimit injects LIMIT 100 if absent, or halves the previous LIMIT,
// per spec §4.7's Timeout/Memory remediation row.
func adjustLimit(query string, errCtx *types.ErrorContext) string {
	if errCtx.Metadata != nil {
		if suggested, ok := errCtx.Metadata["suggested_limit"]; ok {
			if n, ok := suggested.(int); ok && n > 0 {
				return replaceOrAppendLimit(query, n)
			}
		}
	}
	if m := limitClausePattern.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return replaceOrAppendLimit(query, n/2)
		}
	}
	return replaceOrAppendLimit(query, 100)
}

func replaceOrAppendLimit(query string, newLimit int) string {
	if newLimit < 1 {
		newLimit = 1
	}
	replacement := "LIMIT " + strconv.Itoa(newLimit)
	if limitClausePattern.MatchString(query) {
		return limitClausePattern.ReplaceAllString(query, replacement)
	}
	return strings.TrimRight(query, " \n\t") + " " + replacement
}

// exponentialDelay computes the attempt'th exponential-backoff delay. A
// fresh ExponentialBackOff is built per call rather than held on Engine
// since wait() may run concurrently across requests sharing one Engine.
func exponentialDelay(base time.Duration, attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(base),
		backoff.WithMultiplier(2.0),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(base*time.Duration(1<<8)),
	)
	var delay time.Duration
	for i := 0; i <= attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

func (e *Engine) wait(ctx context.Context, errCtx *types.ErrorContext, attempt int) error {
	var delay time.Duration
	switch errCtx.RetryStrategy {
	case types.RetryImmediate, types.RetryNone:
		return nil
	case types.RetryLinearBackoff:
		delay = e.cfg.BackoffBase * time.Duration(attempt+1)
		if retryAfter, ok := errCtx.Metadata["retry_after"]; ok {
			if secs, ok := retryAfter.(int); ok {
				delay = time.Duration(secs) * time.Second
			}
		}
	case types.RetryExponentialBackoff:
		delay = exponentialDelay(e.cfg.BackoffBase, attempt)
	default:
		delay = e.cfg.BackoffBase
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
