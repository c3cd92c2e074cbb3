package discovery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"sparql-agent-go/pkg/types"
)

// StatisticsCollector implements C4 (spec §4.4): builds DatasetStatistics
// via parameterized COUNT/GROUP BY queries, with query-result caching
// (no TTL, scoped to one collection run) and linear-backoff retry.
type StatisticsCollector struct {
	client        *http.Client
	logger        *zap.Logger
	classLimit    int
	propertyLimit int
}

// NewStatisticsCollector builds a collector.
func NewStatisticsCollector(classLimit, propertyLimit int, logger *zap.Logger) *StatisticsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if classLimit <= 0 {
		classLimit = 100
	}
	if propertyLimit <= 0 {
		propertyLimit = 100
	}
	return &StatisticsCollector{client: &http.Client{}, logger: logger, classLimit: classLimit, propertyLimit: propertyLimit}
}

// boolProbe is one pattern-detection query (spec §4.4 "a small set of
// boolean probes").
type boolProbe struct {
	name  string
	query string
}

var patternProbes = []boolProbe{
	{"has_owl_ontology", "ASK { ?s a <http://www.w3.org/2002/07/owl#Ontology> }"},
	{"has_labels", "ASK { ?s <http://www.w3.org/2000/01/rdf-schema#label> ?o }"},
	{"has_sameas", "ASK { ?s <http://www.w3.org/2002/07/owl#sameAs> ?o }"},
}

// Collect runs the full statistics-gathering query set against endpoint.
func (s *StatisticsCollector) Collect(ctx context.Context, endpoint types.Endpoint) (*types.DatasetStatistics, error) {
	start := time.Now()
	cache := make(map[string][]byte) // cache key -> raw response body, scoped to this run

	stats := &types.DatasetStatistics{
		Endpoint:             endpoint.URL,
		DatatypeDistribution: make(map[string]int64),
		LanguageDistribution: make(map[string]int64),
		NamespaceUsage:       make(map[string]int64),
		DetectedPatterns:     make(map[string]bool),
	}

	counters := []struct {
		query string
		dest  *int64
	}{
		{"SELECT (COUNT(*) AS ?c) WHERE { ?s ?p ?o }", &stats.TotalTriples},
		{"SELECT (COUNT(DISTINCT ?s) AS ?c) WHERE { ?s ?p ?o }", &stats.DistinctSubjects},
		{"SELECT (COUNT(DISTINCT ?p) AS ?c) WHERE { ?s ?p ?o }", &stats.DistinctPredicates},
		{"SELECT (COUNT(DISTINCT ?o) AS ?c) WHERE { ?s ?p ?o }", &stats.DistinctObjects},
		{"SELECT (COUNT(DISTINCT ?c) AS ?n) WHERE { ?s a ?c }", &stats.DistinctClasses},
	}
	for _, c := range counters {
		n, err := s.countQuery(ctx, endpoint, c.query, cache)
		if err != nil {
			stats.Warnings = append(stats.Warnings, "count query failed: "+err.Error())
			continue
		}
		*c.dest = n
	}

	topClasses, err := s.topQuery(ctx, endpoint,
		"SELECT ?c (COUNT(?s) AS ?n) WHERE { ?s a ?c } GROUP BY ?c ORDER BY DESC(?n) LIMIT "+itoa(s.classLimit),
		"c", "n", cache)
	if err != nil {
		stats.Warnings = append(stats.Warnings, "top classes query failed: "+err.Error())
	}
	stats.TopClasses = topClasses

	topProps, err := s.topQuery(ctx, endpoint,
		"SELECT ?p (COUNT(*) AS ?n) WHERE { ?s ?p ?o } GROUP BY ?p ORDER BY DESC(?n) LIMIT "+itoa(s.propertyLimit),
		"p", "n", cache)
	if err != nil {
		stats.Warnings = append(stats.Warnings, "top properties query failed: "+err.Error())
	}
	stats.TopProperties = topProps

	for _, ns := range topProps {
		n := namespaceOf(ns.IRI)
		if n != "" {
			stats.NamespaceUsage[n] += ns.Count
		}
	}

	for _, p := range patternProbes {
		ok, err := s.askWithBackoff(ctx, endpoint, p.query)
		if err != nil {
			stats.Warnings = append(stats.Warnings, p.name+" probe failed: "+err.Error())
			continue
		}
		stats.DetectedPatterns[p.name] = ok
	}

	stats.CollectionDuration = time.Since(start)
	return stats, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func cacheKey(endpoint types.Endpoint, query string) string {
	h := sha256.Sum256([]byte(endpoint.URL + "\x00" + query))
	return hex.EncodeToString(h[:])
}

// countQuery runs a single-row single-column COUNT query with linear
// backoff retry (spec §4.4), deduplicated against the per-run cache.
func (s *StatisticsCollector) countQuery(ctx context.Context, endpoint types.Endpoint, query string, cache map[string][]byte) (int64, error) {
	body, err := s.runWithCacheAndBackoff(ctx, endpoint, query, cache)
	if err != nil {
		return 0, err
	}
	var doc sparqlJSONResults
	if err := decodeInto(body, &doc); err != nil {
		return 0, err
	}
	if len(doc.Results.Bindings) == 0 {
		return 0, nil
	}
	for _, v := range doc.Results.Bindings[0] {
		return parseInt64(v.Value), nil
	}
	return 0, nil
}

func (s *StatisticsCollector) topQuery(ctx context.Context, endpoint types.Endpoint, query, keyVar, countVar string, cache map[string][]byte) ([]types.IRICount, error) {
	body, err := s.runWithCacheAndBackoff(ctx, endpoint, query, cache)
	if err != nil {
		return nil, err
	}
	var doc sparqlJSONResults
	if err := decodeInto(body, &doc); err != nil {
		return nil, err
	}
	out := make([]types.IRICount, 0, len(doc.Results.Bindings))
	for _, b := range doc.Results.Bindings {
		k, ok1 := b[keyVar]
		c, ok2 := b[countVar]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, types.IRICount{IRI: k.Value, Count: parseInt64(c.Value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (s *StatisticsCollector) runWithCacheAndBackoff(ctx context.Context, endpoint types.Endpoint, query string, cache map[string][]byte) ([]byte, error) {
	key := cacheKey(endpoint, query)
	if body, ok := cache[key]; ok {
		return body, nil
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		body, err := s.execRaw(ctx, endpoint, query)
		if err == nil {
			cache[key] = body
			return body, nil
		}
		lastErr = err
		delay := time.Duration(attempt+1) * 250 * time.Millisecond
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (s *StatisticsCollector) execRaw(ctx context.Context, endpoint types.Endpoint, query string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewBufferString(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	applyAuth(req, endpoint)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &httpStatusError{resp.StatusCode}
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *StatisticsCollector) askWithBackoff(ctx context.Context, endpoint types.Endpoint, query string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		body, err := s.execRaw(ctx, endpoint, query)
		if err == nil {
			var doc struct {
				Boolean bool `json:"boolean"`
			}
			if derr := decodeInto(body, &doc); derr == nil {
				return doc.Boolean, nil
			}
			lastErr = err
		} else {
			lastErr = err
		}

		delay := time.Duration(attempt+1) * 250 * time.Millisecond
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, lastErr
}
