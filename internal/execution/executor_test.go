package execution

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

func TestExecute_SelectDecodesBindingsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"head":{"vars":["s","name"]},"results":{"bindings":[
			{"s":{"type":"uri","value":"http://ex.org/1"},"name":{"type":"literal","value":"Alice"}}
		]}}`))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), "test-agent", nil)
	q := &types.Query{Text: "SELECT ?s ?name WHERE { ?s ex:name ?name }", Type: types.QuerySelect}
	result, errCtx := exec.Execute(context.Background(), q, types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second})

	require.Nil(t, errCtx)
	require.NotNil(t, result)
	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.Equal(t, []string{"s", "name"}, result.Variables)
	require.Len(t, result.Bindings, 1)
	assert.Equal(t, types.KindIRI, result.Bindings[0]["s"].Kind)
	assert.Equal(t, "Alice", result.Bindings[0]["name"].Value)
}

func TestExecute_AskDecodesBoolean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"head":{},"boolean":true}`))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), "test-agent", nil)
	q := &types.Query{Text: "ASK { ?s ?p ?o }", Type: types.QueryAsk}
	result, errCtx := exec.Execute(context.Background(), q, types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second})

	require.Nil(t, errCtx)
	assert.Equal(t, "true", result.Bindings[0]["boolean"].Value)
}

func TestExecute_ConstructReturnsOpaqueGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "rdf+xml")
		w.Header().Set("Content-Type", "application/rdf+xml")
		w.Write([]byte(`<rdf:RDF></rdf:RDF>`))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), "test-agent", nil)
	q := &types.Query{Text: "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", Type: types.QueryConstruct}
	result, errCtx := exec.Execute(context.Background(), q, types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second})

	require.Nil(t, errCtx)
	assert.Equal(t, 1, result.RowCount)
}

func TestExecute_ServerErrorProducesClassifiedErrorContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("service unavailable"))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), "test-agent", nil)
	q := &types.Query{Text: "SELECT * WHERE { ?s ?p ?o }", Type: types.QuerySelect}
	result, errCtx := exec.Execute(context.Background(), q, types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second})

	assert.Nil(t, result)
	require.NotNil(t, errCtx)
	assert.Equal(t, types.CategoryEndpointUnavailable, errCtx.Category)
}

func TestExecute_FallsBackToGetOn405(t *testing.T) {
	var gotGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gotGet = true
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`))
	}))
	defer srv.Close()

	exec := NewExecutor(srv.Client(), "test-agent", nil)
	q := &types.Query{Text: "SELECT * WHERE { ?s ?p ?o }", Type: types.QuerySelect}
	_, errCtx := exec.Execute(context.Background(), q, types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second})

	assert.Nil(t, errCtx)
	assert.True(t, gotGet)
}
