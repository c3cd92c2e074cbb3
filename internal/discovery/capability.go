package discovery

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"sparql-agent-go/pkg/types"
)

// probeSpec is one entry in the ordered probe catalog (spec §4.3). later
// probes may consult namespaces/features discovered by earlier ones, so
// order is significant and is never reordered at runtime.
type probeSpec struct {
	name    string
	query   string
	feature types.Feature // empty if this probe isn't a feature probe
}

var featureProbes = []probeSpec{
	{name: "optional", query: "SELECT * WHERE { ?s ?p ?o . OPTIONAL { ?s ?p2 ?o2 } } LIMIT 1", feature: types.FeatureOptional},
	{name: "union", query: "SELECT * WHERE { { ?s ?p ?o } UNION { ?s ?p ?o } } LIMIT 1", feature: types.FeatureUnion},
	{name: "filter", query: "SELECT * WHERE { ?s ?p ?o . FILTER(BOUND(?s)) } LIMIT 1", feature: types.FeatureFilter},
	{name: "bind", query: "SELECT * WHERE { ?s ?p ?o . BIND(?s AS ?x) } LIMIT 1", feature: types.FeatureBind},
	{name: "group_by", query: "SELECT ?p (COUNT(*) AS ?c) WHERE { ?s ?p ?o } GROUP BY ?p HAVING (?c > 0) LIMIT 1", feature: types.FeatureGroupBy},
	{name: "subquery", query: "SELECT * WHERE { { SELECT ?s WHERE { ?s ?p ?o } LIMIT 1 } } LIMIT 1", feature: types.FeatureSubquery},
	{name: "property_path", query: "SELECT * WHERE { ?s a/rdfs:subClassOf* ?c } LIMIT 1", feature: types.FeaturePropertyPath},
	{name: "service", query: "SELECT * WHERE { SERVICE <https://dbpedia.org/sparql> { ?s ?p ?o } } LIMIT 1", feature: types.FeatureService},
}

var functionProbes = map[string]string{
	"STRSTARTS": "SELECT * WHERE { ?s ?p ?o . FILTER(STRSTARTS(STR(?o), \"x\")) } LIMIT 1",
	"REGEX":     "SELECT * WHERE { ?s ?p ?o . FILTER(REGEX(STR(?o), \"x\")) } LIMIT 1",
	"NOW":       "SELECT (NOW() AS ?n) WHERE {} LIMIT 1",
	"CONCAT":    "SELECT (CONCAT(\"a\",\"b\") AS ?c) WHERE {} LIMIT 1",
}

// CapabilityDetector implements C3 (spec §4.3): the progressive-timeout
// probe catalog that discovers a Capabilities record for a reachable
// endpoint.
type CapabilityDetector struct {
	client     *http.Client
	logger     *zap.Logger
	maxSamples int
}

// NewCapabilityDetector builds a detector with its own HTTP client (spec §3
// Ownership).
func NewCapabilityDetector(maxSamples int, logger *zap.Logger) *CapabilityDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSamples <= 0 {
		maxSamples = 100
	}
	return &CapabilityDetector{client: &http.Client{}, logger: logger, maxSamples: maxSamples}
}

// DetectOptions configures a single detect() call.
type DetectOptions struct {
	OverallTimeout time.Duration
	FastMode       bool
	OnProgress     func(step, total int, message string)
}

// progressiveTimeout implements spec §4.3's adaptive-timeout algorithm:
// base = min(5s, overall/N); subsequent probes clamp to
// max(base, 2*median(past elapsed)), never exceeding the remaining budget.
type progressiveTimeout struct {
	base      time.Duration
	overall   time.Duration
	elapsed   time.Duration
	pastElapsed []time.Duration
}

func newProgressiveTimeout(overall time.Duration, nProbes int) *progressiveTimeout {
	base := 5 * time.Second
	if nProbes > 0 {
		if per := overall / time.Duration(nProbes); per < base {
			base = per
		}
	}
	if base <= 0 {
		base = time.Second
	}
	return &progressiveTimeout{base: base, overall: overall}
}

func median(durs []time.Duration) time.Duration {
	if len(durs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), durs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// next returns the timeout for the upcoming probe, or (0, false) if the
// overall budget has already been exhausted (remaining probes are skipped).
func (p *progressiveTimeout) next() (time.Duration, bool) {
	remaining := p.overall - p.elapsed
	if remaining <= 0 {
		return 0, false
	}
	want := p.base
	if m := median(p.pastElapsed); 2*m > want {
		want = 2 * m
	}
	if want < p.base {
		want = p.base
	}
	if want > remaining {
		want = remaining
	}
	return want, true
}

func (p *progressiveTimeout) record(elapsed time.Duration) {
	p.elapsed += elapsed
	p.pastElapsed = append(p.pastElapsed, elapsed)
}

// Detect runs the §4.3 probe catalog in order and builds a Capabilities
// record. Aggregate detection never fails (reachability is signaled by C1
// first); individual probe timeouts/errors are recorded as metadata.
func (d *CapabilityDetector) Detect(ctx context.Context, endpoint types.Endpoint, opts DetectOptions) (*types.Capabilities, error) {
	overall := opts.OverallTimeout
	if overall <= 0 {
		overall = 30 * time.Second
	}
	if opts.FastMode {
		overall /= 2
	}

	nProbes := 2 + len(featureProbes) + 2 // version + feature probes + named graphs + namespaces
	if !opts.FastMode {
		nProbes += 1 + len(functionProbes) // statistics + function probes
	}
	pt := newProgressiveTimeout(overall, nProbes)

	cap := &types.Capabilities{
		Endpoint:           endpoint.URL,
		SupportedFeatures:  make(map[types.Feature]bool),
		ResultFormats:      []string{"application/sparql-results+json", "application/rdf+xml", "text/turtle"},
		Namespaces:         make(map[string]string),
		SupportedFunctions: make(map[string]bool),
		DetectedAt:         time.Now(),
	}

	total := nProbes
	step := 0
	progress := func(msg string) {
		step++
		if opts.OnProgress != nil {
			opts.OnProgress(step, total, msg)
		}
	}

	// 1. SPARQL version probe.
	if to, ok := pt.next(); ok {
		elapsed, _, err := d.runProbe(ctx, endpoint, "SELECT (1 AS ?v) WHERE {}", to)
		pt.record(elapsed)
		cap.SPARQLVersion = "1.0"
		if err == nil {
			if elapsed2, _, err2 := d.runProbe(ctx, endpoint, "SELECT * WHERE { BIND(1 AS ?v) } LIMIT 1", to); err2 == nil {
				cap.SPARQLVersion = "1.1"
				pt.record(elapsed2)
			} else {
				cap.TimedOutQueries = append(cap.TimedOutQueries, "sparql-1.1-probe")
			}
		} else {
			cap.TimedOutQueries = append(cap.TimedOutQueries, "sparql-version-probe")
		}
	}
	progress("sparql version detected")

	// 2. Feature probes.
	for _, fp := range featureProbes {
		to, ok := pt.next()
		if !ok {
			cap.TimedOutQueries = append(cap.TimedOutQueries, fp.name)
			continue
		}
		elapsed, ok2, err := d.runProbe(ctx, endpoint, fp.query, to)
		pt.record(elapsed)
		if err != nil {
			cap.FailedQueries = append(cap.FailedQueries, fp.name)
		}
		cap.SupportedFeatures[fp.feature] = ok2 && err == nil
		progress("feature probe: " + fp.name)
	}

	// 3. Named-graph enumeration.
	if to, ok := pt.next(); ok {
		elapsed, _, graphs := d.runGraphProbe(ctx, endpoint, to)
		pt.record(elapsed)
		cap.NamedGraphs = graphs
	} else {
		cap.TimedOutQueries = append(cap.TimedOutQueries, "named-graphs")
	}
	progress("named graphs enumerated")

	// 4. Namespace discovery by sampling predicates.
	if to, ok := pt.next(); ok {
		elapsed, preds := d.samplePredicates(ctx, endpoint, to)
		pt.record(elapsed)
		cap.Namespaces = deriveNamespaces(preds)
	} else {
		cap.TimedOutQueries = append(cap.TimedOutQueries, "namespace-discovery")
	}
	progress("namespaces discovered")

	if !opts.FastMode {
		// 5. Supported functions.
		for name, q := range functionProbes {
			to, ok := pt.next()
			if !ok {
				cap.TimedOutQueries = append(cap.TimedOutQueries, "function:"+name)
				continue
			}
			elapsed, _, err := d.runProbe(ctx, endpoint, q, to)
			pt.record(elapsed)
			cap.SupportedFunctions[name] = err == nil
			progress("function probe: " + name)
		}
	}

	return cap, nil
}

func (d *CapabilityDetector) runProbe(ctx context.Context, endpoint types.Endpoint, query string, timeout time.Duration) (time.Duration, bool, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewBufferString(query))
	if err != nil {
		return time.Since(start), false, err
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	applyAuth(req, endpoint)

	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return elapsed, false, &httpStatusError{resp.StatusCode}
	}
	return elapsed, true, nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return "unexpected status code" }

func (d *CapabilityDetector) runGraphProbe(ctx context.Context, endpoint types.Endpoint, timeout time.Duration) (time.Duration, bool, []string) {
	query := "SELECT DISTINCT ?g WHERE { GRAPH ?g {} } LIMIT 50"
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewBufferString(query))
	if err != nil {
		return time.Since(start), false, nil
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	applyAuth(req, endpoint)

	resp, err := d.client.Do(req)
	if err != nil {
		return time.Since(start), false, nil
	}
	defer resp.Body.Close()
	graphs := decodeSingleColumn(resp.Body, "g")
	return time.Since(start), true, graphs
}

func (d *CapabilityDetector) samplePredicates(ctx context.Context, endpoint types.Endpoint, timeout time.Duration) (time.Duration, []string) {
	query := "SELECT DISTINCT ?p WHERE { ?s ?p ?o } LIMIT 200"
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewBufferString(query))
	if err != nil {
		return time.Since(start), nil
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	applyAuth(req, endpoint)

	resp, err := d.client.Do(req)
	if err != nil {
		return time.Since(start), nil
	}
	defer resp.Body.Close()
	preds := decodeSingleColumn(resp.Body, "p")
	return time.Since(start), preds
}

// deriveNamespaces implements spec §4.4's namespace extraction rule: for
// each predicate URI the namespace is the substring up to and including the
// last '#' or '/' -- per §9 Open Questions this deliberately misclassifies
// predicates under hash fragments that also contain slashes, matching the
// source's own behavior rather than "fixing" it silently.
func deriveNamespaces(predicates []string) map[string]string {
	counts := make(map[string]int)
	for _, p := range predicates {
		ns := namespaceOf(p)
		if ns != "" {
			counts[ns]++
		}
	}
	type kv struct {
		ns    string
		count int
	}
	ranked := make([]kv, 0, len(counts))
	for ns, c := range counts {
		ranked = append(ranked, kv{ns, c})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })

	out := make(map[string]string, len(ranked))
	for i, r := range ranked {
		out[syntheticPrefix(i)] = r.ns
	}
	return out
}

func namespaceOf(iri string) string {
	hashIdx := strings.LastIndex(iri, "#")
	slashIdx := strings.LastIndex(iri, "/")
	cut := hashIdx
	if slashIdx > cut {
		cut = slashIdx
	}
	if cut < 0 {
		return ""
	}
	return iri[:cut+1]
}

func syntheticPrefix(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "ns" + string(letters[i])
	}
	return "ns" + strings.Repeat("z", 1+i/len(letters))
}
