// Package orchestrator implements the Execution Orchestrator (C9): the
// end-to-end generate -> validate -> execute -> explain pipeline wiring
// C3/C5 grounding, C6 validation, C7 retries, and C8 execution, adapted
// from the teacher's GenAIProcessor pipeline shape.
package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sparql-agent-go/pkg/interfaces"
	"sparql-agent-go/pkg/types"
)

// Options controls one Run call.
type Options struct {
	Strict           bool
	RefreshCapabilities bool
	ExplainTopK      int
}

// DefaultOptions matches a sensible baseline.
func DefaultOptions() Options {
	return Options{Strict: false, RefreshCapabilities: false, ExplainTopK: 5}
}

// Orchestrator implements interfaces.Orchestrator.
type Orchestrator struct {
	llm       interfaces.LLMClient
	validator interfaces.Validator
	retry     interfaces.RetryEngine
	executor  interfaces.Executor
	caps      interfaces.CapabilityCache
	detector  interfaces.CapabilityDetector
	prompts   *PromptBuilder
	logger    *zap.Logger
	opts      Options
}

// New builds an Orchestrator. caps/detector may be nil, in which case
// capability grounding (spec §4.9 step 1) is skipped.
func New(
	llm interfaces.LLMClient,
	validator interfaces.Validator,
	retry interfaces.RetryEngine,
	executor interfaces.Executor,
	caps interfaces.CapabilityCache,
	detector interfaces.CapabilityDetector,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		llm: llm, validator: validator, retry: retry, executor: executor,
		caps: caps, detector: detector, prompts: NewPromptBuilder(), opts: opts, logger: logger,
	}
}

// Run implements spec §4.9's full pipeline. It never panics or returns an
// error: every failure is represented in the returned OrchestratorOutcome.
func (o *Orchestrator) Run(ctx context.Context, question string, endpoint types.Endpoint) *types.OrchestratorOutcome {
	requestID := uuid.New().String()
	timings := make(map[string]float64)
	var classifications []types.ErrorCategory

	schemaHints := o.groundSchemaHints(ctx, endpoint, timings)

	genStart := time.Now()
	draft, err := o.llm.Generate(ctx, types.GenerateRequest{Prompt: o.prompts.BuildGenerationPrompt(question, schemaHints)})
	timings["generation"] = time.Since(genStart).Seconds()
	if err != nil {
		o.logger.Warn("initial generation failed", zap.String("request_id", requestID), zap.Error(err))
		return &types.OrchestratorOutcome{
			RequestID:     requestID,
			OriginalQuery: "", FinalQuery: "", GaveUp: true,
			Result:   &types.QueryResult{Status: types.StatusFailed, Error: &types.ErrorContext{Category: types.CategoryUnknown, Message: err.Error()}},
			Metadata: types.OrchestratorMetadata{Timings: timings},
		}
	}
	originalQuery := draft.Content

	valStart := time.Now()
	hint := classifyIntent(question)
	preOutcome := o.retry.RunPreExecution(ctx, question, originalQuery, hint)
	timings["validation"] = time.Since(valStart).Seconds()

	if preOutcome.GaveUp {
		return &types.OrchestratorOutcome{
			RequestID:     requestID,
			OriginalQuery: originalQuery, FinalQuery: preOutcome.FinalQuery, GaveUp: true,
			Result: &types.QueryResult{Status: types.StatusFailed, Error: &types.ErrorContext{
				Category: types.CategorySyntax, Message: "exhausted validation retry budget",
			}},
			Metadata: types.OrchestratorMetadata{ValidationAttempts: preOutcome.AttemptsMade, Timings: timings},
		}
	}

	execStart := time.Now()
	query := &types.Query{Text: preOutcome.FinalQuery, Type: detectQueryType(preOutcome.FinalQuery)}
	result, errCtx := o.executor.Execute(ctx, query, endpoint)
	timings["execution"] = time.Since(execStart).Seconds()

	executionAttempts := 1
	finalQuery := preOutcome.FinalQuery

	if errCtx != nil {
		classifications = append(classifications, errCtx.Category)
		postOutcome := o.retry.RunPostExecution(ctx, preOutcome.FinalQuery, endpoint, errCtx)
		executionAttempts = postOutcome.AttemptsMade
		finalQuery = postOutcome.FinalQuery
		for _, attempt := range postOutcome.History {
			if attempt.ErrorContext != nil {
				classifications = append(classifications, attempt.ErrorContext.Category)
			}
		}

		if postOutcome.GaveUp {
			return &types.OrchestratorOutcome{
				RequestID:     requestID,
				OriginalQuery: originalQuery, FinalQuery: finalQuery, GaveUp: true,
				Result: &types.QueryResult{Status: types.StatusFailed, Error: postOutcome.FinalError},
				Metadata: types.OrchestratorMetadata{
					ValidationAttempts: preOutcome.AttemptsMade, ExecutionAttempts: executionAttempts,
					Timings: timings, Classifications: classifications,
				},
			}
		}
		result = postOutcome.FinalResult
	}

	explanation := o.explain(ctx, question, finalQuery, result)

	return &types.OrchestratorOutcome{
		RequestID:     requestID,
		OriginalQuery: originalQuery, FinalQuery: finalQuery, Result: result,
		Explanation: explanation, GaveUp: false,
		Metadata: types.OrchestratorMetadata{
			ValidationAttempts: preOutcome.AttemptsMade, ExecutionAttempts: executionAttempts,
			Timings: timings, Classifications: classifications,
		},
	}
}

// groundSchemaHints fetches cached capabilities if available (spec §4.9
// step 1); best-effort only, never blocks the pipeline on failure.
func (o *Orchestrator) groundSchemaHints(ctx context.Context, endpoint types.Endpoint, timings map[string]float64) string {
	if o.caps == nil || o.detector == nil {
		return "none available"
	}
	start := time.Now()
	caps, err := o.caps.GetOrRefresh(ctx, endpoint, func(ctx context.Context) (*types.Capabilities, error) {
		return o.detector.Detect(ctx, endpoint, nil)
	})
	timings["capability_lookup"] = time.Since(start).Seconds()
	if err != nil || caps == nil {
		return "none available"
	}

	var b strings.Builder
	b.WriteString("SPARQL version ")
	b.WriteString(caps.SPARQLVersion)
	if len(caps.Namespaces) > 0 {
		b.WriteString("; known namespaces: ")
		first := true
		for prefix, iri := range caps.Namespaces {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(prefix)
			b.WriteString(": ")
			b.WriteString(iri)
			first = false
		}
	}
	return b.String()
}

// explain implements spec §4.9 step 6: on success, ask the LLM once more
// for a plain-language summary of the first K bindings. Never blocks the
// outcome on failure — an empty explanation is acceptable.
func (o *Orchestrator) explain(ctx context.Context, question, query string, result *types.QueryResult) string {
	if result == nil || result.Status != types.StatusSuccess {
		return ""
	}
	topK := o.opts.ExplainTopK
	if topK <= 0 {
		topK = 5
	}
	bindings := summarizeBindings(result, topK)
	resp, err := o.llm.Generate(ctx, types.GenerateRequest{Prompt: o.prompts.BuildExplanationPrompt(question, query, bindings)})
	if err != nil {
		return ""
	}
	return resp.Content
}

func summarizeBindings(result *types.QueryResult, topK int) string {
	var b strings.Builder
	n := len(result.Bindings)
	if n > topK {
		n = topK
	}
	for i := 0; i < n; i++ {
		row := result.Bindings[i]
		b.WriteString("{")
		first := true
		for _, v := range result.Variables {
			val, ok := row[v]
			if !ok {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(v)
			b.WriteString("=")
			b.WriteString(val.Value)
			first = false
		}
		b.WriteString("} ")
	}
	b.WriteString("(")
	b.WriteString(strconv.Itoa(result.RowCount))
	b.WriteString(" rows total)")
	return b.String()
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

// classifyIntent is a supplemented feature (SPEC_FULL §12): a cheap,
// best-effort guess at the question's SPARQL shape, purely advisory and
// never gating validation.
func classifyIntent(question string) *types.QueryShapeHint {
	lower := strings.ToLower(question)
	hint := &types.QueryShapeHint{LikelyType: types.QuerySelect}

	switch {
	case strings.HasPrefix(lower, "is ") || strings.HasPrefix(lower, "does ") || strings.HasPrefix(lower, "are ") || strings.Contains(lower, "is there"):
		hint.LikelyType = types.QueryAsk
		hint.IsExistence = true
	case strings.HasPrefix(lower, "describe") || strings.HasPrefix(lower, "show me everything about"):
		hint.LikelyType = types.QueryDescribe
	}

	for _, kw := range []string{"how many", "count of", "number of", "average", "total", "group by", "per "} {
		if strings.Contains(lower, kw) {
			hint.NeedsGroupBy = true
			break
		}
	}

	return hint
}
