package types

import "time"

// Feature is a SPARQL clause or protocol extension an endpoint may support.
type Feature string

const (
	FeatureOptional     Feature = "OPTIONAL"
	FeatureUnion        Feature = "UNION"
	FeatureFilter       Feature = "FILTER"
	FeatureBind         Feature = "BIND"
	FeatureGroupBy      Feature = "GROUP_BY"
	FeatureSubquery     Feature = "SUBQUERY"
	FeaturePropertyPath Feature = "PROPERTY_PATH"
	FeatureFullText     Feature = "FULL_TEXT_SEARCH"
	FeatureService      Feature = "SERVICE_FEDERATION"
)

// Capabilities is the aggregate record built by the Capability Detector (C3)
// for a single, already-reachable endpoint. It is cacheable.
type Capabilities struct {
	Endpoint          string              `json:"endpoint"`
	SPARQLVersion     string              `json:"sparql_version"`
	SupportedFeatures map[Feature]bool    `json:"supported_features"`
	ResultFormats     []string            `json:"result_formats"`
	NamedGraphs       []string            `json:"named_graphs"`
	Namespaces        map[string]string   `json:"namespaces"` // prefix -> IRI
	SupportedFunctions map[string]bool    `json:"supported_functions"`
	Statistics        *DatasetStatistics  `json:"statistics,omitempty"`
	TimedOutQueries   []string            `json:"timed_out_queries,omitempty"`
	FailedQueries     []string            `json:"failed_queries,omitempty"`
	DetectedAt        time.Time           `json:"detected_at"`
}

// CacheEntry wraps a Capabilities record with TTL bookkeeping for the
// capability cache (spec §6 "Persisted state", §5 ordering guarantees).
type CacheEntry struct {
	Capabilities *Capabilities
	GeneratedAt  time.Time
	TTL          time.Duration
}

// Stale reports whether the entry must be re-probed before use.
func (c *CacheEntry) Stale(now time.Time) bool {
	if c == nil {
		return true
	}
	return now.Sub(c.GeneratedAt) >= c.TTL
}
