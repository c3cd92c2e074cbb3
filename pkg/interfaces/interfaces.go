// Package interfaces defines the narrow ports between components, mirroring
// the teacher's pkg/interfaces (provider.go's ProviderFactory-style single-
// purpose interfaces) generalized to this module's nine components.
package interfaces

import (
	"context"

	"sparql-agent-go/pkg/types"
)

// LLMClient is the opaque LLM collaborator (spec §1 Out of scope, §6
// Programmatic API). The orchestrator is constructed with one concrete
// implementation injected; nothing in this module reaches for a global.
type LLMClient interface {
	Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error)
}

// Prober is C1: a single-endpoint health check.
type Prober interface {
	Probe(ctx context.Context, endpoint types.Endpoint, checkQuery bool) *types.EndpointHealth
}

// Pinger is C2: fan-out of C1 across endpoints with rate limiting, pooling,
// and retry backoff.
type Pinger interface {
	PingOne(ctx context.Context, endpoint types.Endpoint, checkQuery bool) *types.EndpointHealth
	PingMany(ctx context.Context, endpoints []types.Endpoint, checkQuery bool) []*types.EndpointHealth
	UptimeFraction(endpoint string) float64
	AvgResponseTime(endpoint string) float64
}

// CapabilityDetector is C3.
type CapabilityDetector interface {
	Detect(ctx context.Context, endpoint types.Endpoint, onProgress func(step, total int, message string)) (*types.Capabilities, error)
}

// StatisticsCollector is C4.
type StatisticsCollector interface {
	Collect(ctx context.Context, endpoint types.Endpoint) (*types.DatasetStatistics, error)
}

// CapabilityCache is the narrow, per-key-locked cache port the spec's
// Design Notes call for ("the interface exposes only get_or_refresh").
type CapabilityCache interface {
	GetOrRefresh(ctx context.Context, endpoint types.Endpoint, refresh func(ctx context.Context) (*types.Capabilities, error)) (*types.Capabilities, error)
}

// SchemaInferencer is C5.
type SchemaInferencer interface {
	Infer(triples []types.ObservedTriple) *types.InferredSchema
}

// Validator is C6.
type Validator interface {
	Validate(query *types.Query, strict bool) *types.ValidationReport
}

// RetryEngine is C7: both retry state machines.
type RetryEngine interface {
	RunPreExecution(ctx context.Context, originalQuestion, initialQuery string, hints *types.QueryShapeHint) *types.RetryOutcome
	RunPostExecution(ctx context.Context, query string, endpoint types.Endpoint, firstErr *types.ErrorContext) *types.RetryOutcome
}

// Executor is C8.
type Executor interface {
	Execute(ctx context.Context, query *types.Query, endpoint types.Endpoint) (*types.QueryResult, *types.ErrorContext)
}

// Orchestrator is C9.
type Orchestrator interface {
	Run(ctx context.Context, question string, endpoint types.Endpoint) *types.OrchestratorOutcome
}
