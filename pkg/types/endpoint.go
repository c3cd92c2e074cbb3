// Package types defines the data model shared across discovery, inference,
// validation, retry, and execution: endpoints, health snapshots, capability
// records, schema/statistics, queries, and results.
package types

import "time"

// AuthKind identifies how requests to an Endpoint are authenticated.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBasic  AuthKind = "basic"
	AuthBearer AuthKind = "bearer"
)

// Auth carries per-endpoint authentication material.
type Auth struct {
	Kind     AuthKind `json:"kind"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	Token    string   `json:"token,omitempty"`
}

// RateLimit configures the token-bucket applied to an Endpoint by the
// Concurrent Pinger.
type RateLimit struct {
	RequestsPerSec float64 `json:"requests_per_sec"`
	Burst          int     `json:"burst"`
}

// Endpoint identifies a SPARQL endpoint and the parameters used to reach it.
// Endpoints are configured at startup and are immutable during a request.
type Endpoint struct {
	URL         string     `json:"url"`
	DisplayName string     `json:"display_name,omitempty"`
	Auth        *Auth      `json:"auth,omitempty"`
	Timeout     time.Duration `json:"timeout"`
	RateLimit   *RateLimit `json:"rate_limit,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}

// HealthStatus is the classification produced by a connectivity probe.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
	Unknown   HealthStatus = "unknown"
)

// EndpointHealth is a single probe snapshot. C1/C2 create one per probe and
// append it to a bounded per-endpoint ring buffer (history cap ~100).
type EndpointHealth struct {
	Endpoint            string        `json:"endpoint"`
	Status              HealthStatus  `json:"status"`
	StatusCode          int           `json:"status_code,omitempty"`
	ResponseTimeMs      *float64      `json:"response_time_ms,omitempty"`
	TLSValid            bool          `json:"tls_valid"`
	TLSExpiry           *time.Time    `json:"tls_expiry,omitempty"`
	ServerBanner        string        `json:"server_banner,omitempty"`
	DetectedCapabilities []string     `json:"detected_capabilities,omitempty"`
	ErrorMessage        string        `json:"error_message,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
}
