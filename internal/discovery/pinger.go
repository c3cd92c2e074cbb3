package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"sparql-agent-go/pkg/types"
)

// ring is a fixed-capacity ring buffer of EndpointHealth, guarded by its own
// mutex (spec §3 Ownership: "History buffers are owned by the Pinger (C2)
// and protected by a mutex").
type ring struct {
	mu    sync.Mutex
	cap   int
	items []*types.EndpointHealth
}

func newRing(cap int) *ring {
	if cap <= 0 {
		cap = 100
	}
	return &ring{cap: cap}
}

func (r *ring) push(h *types.EndpointHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, h)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

func (r *ring) snapshot() []*types.EndpointHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.EndpointHealth, len(r.items))
	copy(out, r.items)
	return out
}

// Pinger is C2: fan-out of Prober (C1) across endpoints, bounded by a
// semaphore-backed pool, gated by a per-endpoint token-bucket rate limiter,
// and retried with exponential backoff on transport-level failures only.
type Pinger struct {
	prober *Prober
	logger *zap.Logger

	poolSem *semaphore.Weighted

	backoffBase   time.Duration
	backoffFactor float64
	maxAttempts   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	history  map[string]*ring
	histCap  int
}

// PingerConfig configures pool size, backoff, and history retention.
type PingerConfig struct {
	PoolSize      int
	BackoffBase   time.Duration
	BackoffFactor float64
	MaxAttempts   int
	HistoryCap    int
}

// NewPinger builds a Pinger backed by prober.
func NewPinger(prober *Prober, cfg PingerConfig, logger *zap.Logger) *Pinger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 100
	}
	return &Pinger{
		prober:        prober,
		logger:        logger,
		poolSem:       semaphore.NewWeighted(int64(cfg.PoolSize)),
		backoffBase:   cfg.BackoffBase,
		backoffFactor: cfg.BackoffFactor,
		maxAttempts:   cfg.MaxAttempts,
		limiters:      make(map[string]*rate.Limiter),
		history:       make(map[string]*ring),
		histCap:       cfg.HistoryCap,
	}
}

func (p *Pinger) limiterFor(endpoint types.Endpoint) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[endpoint.URL]
	if !ok {
		rps := rate.Inf
		burst := 1
		if endpoint.RateLimit != nil && endpoint.RateLimit.RequestsPerSec > 0 {
			rps = rate.Limit(endpoint.RateLimit.RequestsPerSec)
			burst = endpoint.RateLimit.Burst
			if burst <= 0 {
				burst = 1
			}
		}
		l = rate.NewLimiter(rps, burst)
		p.limiters[endpoint.URL] = l
	}
	return l
}

func (p *Pinger) ringFor(endpointURL string) *ring {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.history[endpointURL]
	if !ok {
		r = newRing(p.histCap)
		p.history[endpointURL] = r
	}
	return r
}

// newBackoff builds a fresh exponential-backoff sequence per retry run
// (spec §4.2 "exponential backoff between attempts"), one instance per
// PingOne call since ExponentialBackOff is stateful and PingOne runs
// concurrently across endpoints.
func (p *Pinger) newBackoff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.backoffBase),
		backoff.WithMultiplier(p.backoffFactor),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(p.backoffBase*time.Duration(1<<uint(p.maxAttempts))),
	)
}

// PingOne acquires a rate-limit token (suspending if necessary), then probes
// with retry on transport-level failures only (spec §4.2). Deadline
// expiration mid-retry abandons the in-flight attempt and returns
// status=Unknown if no attempt completed.
func (p *Pinger) PingOne(ctx context.Context, endpoint types.Endpoint, checkQuery bool) *types.EndpointHealth {
	limiter := p.limiterFor(endpoint)
	if err := limiter.Wait(ctx); err != nil {
		h := &types.EndpointHealth{Endpoint: endpoint.URL, Status: types.Unknown, Timestamp: time.Now(), ErrorMessage: "deadline elapsed acquiring rate limit token"}
		p.ringFor(endpoint.URL).push(h)
		return h
	}

	bo := p.newBackoff()

	var last *types.EndpointHealth
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		h := p.prober.Probe(ctx, endpoint, checkQuery)
		last = h

		if h.Status != types.Unhealthy || !isTransientError(h.ErrorMessage) {
			break
		}
		if attempt == p.maxAttempts-1 {
			break
		}
		delay := bo.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if last == nil {
				last = &types.EndpointHealth{Endpoint: endpoint.URL, Status: types.Unknown, Timestamp: time.Now(), ErrorMessage: "deadline elapsed during retry backoff"}
			}
			p.ringFor(endpoint.URL).push(last)
			return last
		case <-timer.C:
		}
	}

	if last == nil {
		last = &types.EndpointHealth{Endpoint: endpoint.URL, Status: types.Unknown, Timestamp: time.Now()}
	}
	p.ringFor(endpoint.URL).push(last)
	return last
}

// PingMany fans out PingOne across endpoints bounded by the pool semaphore.
func (p *Pinger) PingMany(ctx context.Context, endpoints []types.Endpoint, checkQuery bool) []*types.EndpointHealth {
	results := make([]*types.EndpointHealth, len(endpoints))
	var wg sync.WaitGroup

	for i, ep := range endpoints {
		i, ep := i, ep
		if err := p.poolSem.Acquire(ctx, 1); err != nil {
			results[i] = &types.EndpointHealth{Endpoint: ep.URL, Status: types.Unknown, Timestamp: time.Now(), ErrorMessage: "deadline elapsed waiting for pool slot"}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.poolSem.Release(1)
			results[i] = p.PingOne(ctx, ep, checkQuery)
		}()
	}
	wg.Wait()
	return results
}

// UptimeFraction is Healthy-count / total-count over recorded history.
func (p *Pinger) UptimeFraction(endpoint string) float64 {
	items := p.ringFor(endpoint).snapshot()
	if len(items) == 0 {
		return 0
	}
	healthy := 0
	for _, h := range items {
		if h.Status == types.Healthy {
			healthy++
		}
	}
	return float64(healthy) / float64(len(items))
}

// AvgResponseTime averages ResponseTimeMs over history entries that have one.
func (p *Pinger) AvgResponseTime(endpoint string) float64 {
	items := p.ringFor(endpoint).snapshot()
	var sum float64
	var n int
	for _, h := range items {
		if h.ResponseTimeMs != nil {
			sum += *h.ResponseTimeMs
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// isTransientError reports whether a probe's error message describes a
// transport-level failure eligible for retry (connection refused, timeout,
// DNS) as opposed to an HTTP status >= 400, which is never retried (spec
// §4.2). Grounded in the teacher's processor.go isTransientError pattern.
func isTransientError(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, s := range []string{"timeout", "connection refused", "no such host", "network is unreachable", "dns"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
