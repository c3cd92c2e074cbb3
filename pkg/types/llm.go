package types

// TokenUsage reports prompt/completion token counts from an LLM call.
// Adapted from the teacher's pkg/types/models.go TokenUsage, unchanged in
// shape since it already matches the spec §6 programmatic-API contract.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateRequest is what the orchestrator sends to the opaque LLM
// collaborator (spec §6 "Programmatic API consumed from LLM collaborator").
type GenerateRequest struct {
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Temperature  float64                `json:"temperature,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	ToolSchemas  []map[string]interface{} `json:"tool_schemas,omitempty"`
}

// GenerateResponse is what the LLM collaborator returns.
type GenerateResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// QueryShapeHint seeds prompt construction with a best-effort guess at the
// question's SPARQL shape (spec §9 supplemented "intent parsing hints").
// Never gates validation; purely advisory.
type QueryShapeHint struct {
	LikelyType    QueryType `json:"likely_type"`
	NeedsGroupBy  bool      `json:"needs_group_by"`
	IsExistence   bool      `json:"is_existence"`
}

// OrchestratorMetadata accompanies every OrchestratorOutcome.
type OrchestratorMetadata struct {
	ValidationAttempts int                       `json:"validation_attempts"`
	ExecutionAttempts  int                       `json:"execution_attempts"`
	Timings            map[string]float64        `json:"timings,omitempty"` // seconds, keyed by phase
	Classifications    []ErrorCategory           `json:"classifications,omitempty"`
}

// OrchestratorOutcome is the terminal value of C9's run(); the orchestrator
// never panics/raises for ordinary failures, it reports them here.
type OrchestratorOutcome struct {
	RequestID     string                `json:"request_id"`
	OriginalQuery string                `json:"original_query"`
	FinalQuery    string                `json:"final_query"`
	Result        *QueryResult          `json:"result"`
	Explanation   string                `json:"explanation,omitempty"`
	GaveUp        bool                  `json:"gave_up"`
	Metadata      OrchestratorMetadata  `json:"metadata"`
}
