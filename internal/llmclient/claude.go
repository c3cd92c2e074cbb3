// Package llmclient provides a concrete interfaces.LLMClient implementation
// against Anthropic's Messages API, adapted from the teacher's ClaudeProvider
// (raw net/http rather than an SDK: SPEC_FULL §11 notes the wire surface is
// small enough that the teacher's hand-rolled client is preferred over
// pulling in a full SDK dependency).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sparql-agent-go/pkg/types"
)

// ClaudeClient implements interfaces.LLMClient against the Anthropic
// Messages API.
type ClaudeClient struct {
	APIKey   string
	Endpoint string
	Model    string
	client   *http.Client
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
	System      string          `json:"system,omitempty"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model        string `json:"model"`
	StopReason   string `json:"stop_reason"`
	StopSequence string `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type claudeErrorEnvelope struct {
	Error claudeError `json:"error"`
}

// NewClaudeClient builds a ClaudeClient. endpoint defaults to the public
// Anthropic Messages API URL if empty.
func NewClaudeClient(apiKey, endpoint, model string, timeout time.Duration) *ClaudeClient {
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1/messages"
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClaudeClient{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Generate implements interfaces.LLMClient.
func (c *ClaudeClient) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("claude API key is required")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	body := claudeRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.SystemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read claude response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope claudeErrorEnvelope
		if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("claude API error (%d): %s - %s", resp.StatusCode, envelope.Error.Type, envelope.Error.Message)
		}
		return nil, fmt.Errorf("claude API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse claude response: %w", err)
	}

	var content string
	if len(parsed.Content) > 0 {
		content = parsed.Content[0].Text
	}

	return &types.GenerateResponse{
		Content:      content,
		FinishReason: parsed.StopReason,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}
