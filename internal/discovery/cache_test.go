package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func TestGetOrRefresh_CachesWithinTTL(t *testing.T) {
	c := NewCache(time.Hour)
	endpoint := types.Endpoint{URL: "https://example.org/sparql"}

	var calls int32
	refresh := func(ctx context.Context) (*types.Capabilities, error) {
		atomic.AddInt32(&calls, 1)
		return &types.Capabilities{Endpoint: endpoint.URL}, nil
	}

	_, err := c.GetOrRefresh(context.Background(), endpoint, refresh)
	require.NoError(t, err)
	_, err = c.GetOrRefresh(context.Background(), endpoint, refresh)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetOrRefresh_StaleEntryTriggersRefresh(t *testing.T) {
	c := NewCache(time.Millisecond)
	endpoint := types.Endpoint{URL: "https://example.org/sparql"}

	var calls int32
	refresh := func(ctx context.Context) (*types.Capabilities, error) {
		atomic.AddInt32(&calls, 1)
		return &types.Capabilities{Endpoint: endpoint.URL}, nil
	}

	_, err := c.GetOrRefresh(context.Background(), endpoint, refresh)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.GetOrRefresh(context.Background(), endpoint, refresh)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetOrRefresh_ConcurrentRefreshesAreSerializedPerKey(t *testing.T) {
	c := NewCache(time.Hour)
	endpoint := types.Endpoint{URL: "https://example.org/sparql"}

	var calls int32
	refresh := func(ctx context.Context) (*types.Capabilities, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return &types.Capabilities{Endpoint: endpoint.URL}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrRefresh(context.Background(), endpoint, refresh)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
