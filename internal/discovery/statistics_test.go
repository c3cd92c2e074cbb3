package discovery

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func TestCollect_ParsesCountsAndTopLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		switch {
		case bodyContains(r, "COUNT(*) AS ?c) WHERE { ?s ?p ?o }") && !bodyContains(r, "GROUP BY"):
			w.Write([]byte(`{"head":{"vars":["c"]},"results":{"bindings":[{"c":{"value":"42"}}]}}`))
		case bodyContains(r, "?c (COUNT(?s)"):
			w.Write([]byte(`{"head":{"vars":["c","n"]},"results":{"bindings":[{"c":{"value":"http://ex.org/Protein"},"n":{"value":"10"}}]}}`))
		case bodyContains(r, "?p (COUNT(*)"):
			w.Write([]byte(`{"head":{"vars":["p","n"]},"results":{"bindings":[{"p":{"value":"http://ex.org/name"},"n":{"value":"5"}}]}}`))
		case bodyContains(r, "ASK"):
			w.Write([]byte(`{"head":{},"boolean":true}`))
		default:
			w.Write([]byte(`{"head":{"vars":["c"]},"results":{"bindings":[{"c":{"value":"1"}}]}}`))
		}
	}))
	defer srv.Close()

	sc := NewStatisticsCollector(10, 10, nil)
	endpoint := types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second}
	stats, err := sc.Collect(context.Background(), endpoint)

	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.NotEmpty(t, stats.TopProperties)
}

func bodyContains(r *http.Request, substr string) bool {
	data, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(data))
	return strings.Contains(string(data), substr)
}
