package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func TestGenerate_ParsesContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant",
			"content":[{"type":"text","text":"SELECT * WHERE { ?s ?p ?o }"}],
			"model":"claude-3-5-sonnet-20241022","stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":5}
		}`))
	}))
	defer srv.Close()

	client := NewClaudeClient("test-key", srv.URL, "", time.Second)
	resp, err := client.Generate(context.Background(), types.GenerateRequest{Prompt: "how many triples?"})

	require.NoError(t, err)
	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o }", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestGenerate_MissingAPIKeyErrors(t *testing.T) {
	client := NewClaudeClient("", "", "", time.Second)
	_, err := client.Generate(context.Background(), types.GenerateRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestGenerate_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"too many requests"}}`))
	}))
	defer srv.Close()

	client := NewClaudeClient("test-key", srv.URL, "", time.Second)
	_, err := client.Generate(context.Background(), types.GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many requests")
}
