// Package discovery implements endpoint connectivity and capability
// discovery: the Connectivity Prober (C1), Concurrent Pinger (C2),
// Capability Detector (C3), and Statistics Collector (C4).
package discovery

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sparql-agent-go/pkg/types"
)

// Prober implements a single-endpoint health check (C1, spec §4.1). It owns
// its own HTTP client, per spec §3 Ownership ("Discovery (C1-C5) owns its
// own HTTP client and cache").
type Prober struct {
	client *http.Client
	logger *zap.Logger
}

// NewProber builds a Prober with TLS verification toggle applied to its
// transport, grounded in the teacher's claude.go client construction.
func NewProber(verifyTLS bool, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifyTLS},
	}
	return &Prober{
		client: &http.Client{Transport: transport},
		logger: logger,
	}
}

// Probe issues the §4.1 protocol against endpoint and returns an
// EndpointHealth. It never raises: transport errors are captured in
// ErrorMessage.
func (p *Prober) Probe(ctx context.Context, endpoint types.Endpoint, checkQuery bool) *types.EndpointHealth {
	health := &types.EndpointHealth{
		Endpoint:  endpoint.URL,
		Status:    types.Unknown,
		Timestamp: time.Now(),
	}

	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	statusCode, tlsOK, tlsExpiry, banner, err := p.headOrGet(reqCtx, endpoint)
	elapsed := time.Since(start)
	ms := float64(elapsed.Milliseconds())

	if err != nil {
		health.Status = types.Unhealthy
		if reqCtx.Err() == context.DeadlineExceeded {
			health.ErrorMessage = "timeout: " + err.Error()
		} else {
			health.ErrorMessage = err.Error()
		}
		return health
	}

	health.StatusCode = statusCode
	health.TLSValid = tlsOK
	health.TLSExpiry = tlsExpiry
	health.ServerBanner = banner
	health.ResponseTimeMs = &ms

	switch {
	case statusCode >= 500 || statusCode == 0:
		health.Status = types.Unhealthy
	case statusCode >= 300:
		health.Status = types.Unhealthy
	default:
		health.Status = types.Degraded // upgraded to Healthy below if ASK succeeds
	}

	if checkQuery && statusCode < 300 {
		askTimeout := timeout / 2
		if askTimeout < 2*time.Second {
			askTimeout = 2 * time.Second
		}
		askCtx, askCancel := context.WithTimeout(ctx, askTimeout)
		ok := p.askProbe(askCtx, endpoint)
		askCancel()
		if ok {
			health.Status = types.Healthy
		} else {
			health.Status = types.Degraded
			if health.ErrorMessage == "" {
				health.ErrorMessage = "ASK probe did not return a boolean result"
			}
		}
	} else if statusCode < 300 {
		health.Status = types.Healthy
	}

	return health
}

func (p *Prober) headOrGet(ctx context.Context, endpoint types.Endpoint) (statusCode int, tlsValid bool, tlsExpiry *time.Time, banner string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint.URL, nil)
	if err != nil {
		return 0, false, nil, "", err
	}
	applyAuth(req, endpoint)
	if endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", endpoint.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil || (resp != nil && resp.StatusCode == http.StatusMethodNotAllowed) {
		if resp != nil {
			resp.Body.Close()
		}
		req, gerr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL, nil)
		if gerr != nil {
			return 0, false, nil, "", gerr
		}
		applyAuth(req, endpoint)
		resp, err = p.client.Do(req)
		if err != nil {
			return 0, false, nil, "", err
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		cert := resp.TLS.PeerCertificates[0]
		expiry := cert.NotAfter
		tlsExpiry = &expiry
		tlsValid = time.Now().Before(cert.NotAfter) && !resp.TLS.PeerCertificates[0].NotBefore.After(time.Now())
	}
	return resp.StatusCode, tlsValid, tlsExpiry, resp.Header.Get("Server"), nil
}

func (p *Prober) askProbe(ctx context.Context, endpoint types.Endpoint) bool {
	query := "ASK { ?s ?p ?o }"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewBufferString(query))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	applyAuth(req, endpoint)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false
	}

	var body struct {
		Boolean *bool `json:"boolean"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Boolean != nil
}

func applyAuth(req *http.Request, endpoint types.Endpoint) {
	if endpoint.Auth == nil {
		return
	}
	switch endpoint.Auth.Kind {
	case types.AuthBasic:
		req.SetBasicAuth(endpoint.Auth.Username, endpoint.Auth.Password)
	case types.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+endpoint.Auth.Token)
	}
}
