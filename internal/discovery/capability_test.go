package discovery

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

func TestDetect_NeverFailsOnIndividualProbeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewCapabilityDetector(100, nil)
	endpoint := types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second}
	caps, err := d.Detect(context.Background(), endpoint, DetectOptions{OverallTimeout: 2 * time.Second})

	require.NoError(t, err)
	require.NotNil(t, caps)
	assert.NotEmpty(t, caps.FailedQueries)
}

func TestDetect_FastModeSkipsFunctionProbes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`))
	}))
	defer srv.Close()

	d := NewCapabilityDetector(100, nil)
	endpoint := types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second}
	caps, err := d.Detect(context.Background(), endpoint, DetectOptions{OverallTimeout: 2 * time.Second, FastMode: true})

	require.NoError(t, err)
	assert.Empty(t, caps.SupportedFunctions)
}

func TestDeriveNamespaces_LastHashOrSlash(t *testing.T) {
	ns := deriveNamespaces([]string{
		"http://example.org/ns#name",
		"http://example.org/ns#age",
		"http://example.org/other/prop",
	})
	found := false
	for _, v := range ns {
		if v == "http://example.org/ns#" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestProgressiveTimeout_NeverExceedsRemainingBudget(t *testing.T) {
	pt := newProgressiveTimeout(1*time.Second, 4)
	total := time.Duration(0)
	for i := 0; i < 4; i++ {
		to, ok := pt.next()
		if !ok {
			break
		}
		total += to
		pt.record(to)
	}
	assert.LessOrEqual(t, total, 1*time.Second+50*time.Millisecond)
}

func TestDetect_ReportsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"head":{"vars":[]},"results":{"bindings":[]}}`))
	}))
	defer srv.Close()

	d := NewCapabilityDetector(100, nil)
	endpoint := types.Endpoint{URL: srv.URL, Timeout: 2 * time.Second}

	var steps int
	_, err := d.Detect(context.Background(), endpoint, DetectOptions{
		OverallTimeout: 2 * time.Second,
		OnProgress:     func(step, total int, message string) { steps++ },
	})
	require.NoError(t, err)
	assert.Greater(t, steps, 0)
}
