// Package inference implements the Schema Inferencer (C5): derivation of
// per-class property cardinality, datatypes, and shapes from sampled
// triples, with confidence scoring (spec §4.5).
package inference

import (
	"regexp"
	"sort"
	"strconv"

	"sparql-agent-go/pkg/types"
)

// Config carries the thresholds spec §4.5 / §6 name.
type Config struct {
	CardinalityThreshold float64
	OptionalThreshold    float64
	BoundSampleMin       int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{CardinalityThreshold: 0.9, OptionalThreshold: 0.85, BoundSampleMin: 5}
}

// Inferencer implements interfaces.SchemaInferencer.
type Inferencer struct {
	cfg Config
}

// NewInferencer builds an Inferencer with the given thresholds.
func NewInferencer(cfg Config) *Inferencer {
	if cfg.CardinalityThreshold <= 0 {
		cfg.CardinalityThreshold = 0.9
	}
	if cfg.OptionalThreshold <= 0 {
		cfg.OptionalThreshold = 0.85
	}
	if cfg.BoundSampleMin <= 0 {
		cfg.BoundSampleMin = 5
	}
	return &Inferencer{cfg: cfg}
}

type classAccum struct {
	classIRI      string
	instances     map[string]struct{}
	propAccum     map[string]*propAccum
}

type propAccum struct {
	predicate        string
	subjectsWithProp map[string]int // subject -> value count for this subject
	datatypeCounts   map[string]int64
	nodeKinds        map[types.NodeKind]int
	numericValues    []float64
	stringValues     []string
}

// Infer consumes a stream of observed triples and derives an InferredSchema.
// Deterministic given identical input (spec §8 round-trip property).
func (inf *Inferencer) Infer(triples []types.ObservedTriple) *types.InferredSchema {
	classes := make(map[string]*classAccum)

	getClass := func(iri string) *classAccum {
		c, ok := classes[iri]
		if !ok {
			c = &classAccum{classIRI: iri, instances: make(map[string]struct{}), propAccum: make(map[string]*propAccum)}
			classes[iri] = c
		}
		return c
	}

	var totalInstances int64
	seenInstances := make(map[string]struct{})

	for _, t := range triples {
		if t.SubjectType == "" {
			continue
		}
		c := getClass(t.SubjectType)
		c.instances[t.Subject] = struct{}{}
		if _, ok := seenInstances[t.Subject]; !ok {
			seenInstances[t.Subject] = struct{}{}
			totalInstances++
		}

		pa, ok := c.propAccum[t.Predicate]
		if !ok {
			pa = &propAccum{predicate: t.Predicate, subjectsWithProp: make(map[string]int), datatypeCounts: make(map[string]int64), nodeKinds: make(map[types.NodeKind]int)}
			c.propAccum[t.Predicate] = pa
		}
		pa.subjectsWithProp[t.Subject]++
		pa.nodeKinds[t.ObjectKind]++
		if t.Datatype != "" {
			pa.datatypeCounts[t.Datatype]++
		}
		if f, err := strconv.ParseFloat(t.Object, 64); err == nil && t.ObjectKind == types.NodeKindLiteral {
			pa.numericValues = append(pa.numericValues, f)
		}
		if t.ObjectKind == types.NodeKindLiteral {
			pa.stringValues = append(pa.stringValues, t.Object)
		}
	}

	classIRIs := make([]string, 0, len(classes))
	for iri := range classes {
		classIRIs = append(classIRIs, iri)
	}
	sort.Strings(classIRIs)

	shapes := make([]types.ClassShape, 0, len(classIRIs))
	var confidenceSum float64
	var confidenceCount int

	for _, iri := range classIRIs {
		c := classes[iri]
		n := int64(len(c.instances))

		predIRIs := make([]string, 0, len(c.propAccum))
		for p := range c.propAccum {
			predIRIs = append(predIRIs, p)
		}
		sort.Strings(predIRIs)

		props := make([]types.PropertyShape, 0, len(predIRIs))
		for _, p := range predIRIs {
			pa := c.propAccum[p]
			shape, conf := inf.inferProperty(n, pa)
			props = append(props, shape)
			confidenceSum += confidenceScore(conf)
			confidenceCount++
		}

		shapes = append(shapes, types.ClassShape{ClassIRI: iri, Properties: props})
	}

	quality := types.QualityMetrics{TotalInstances: totalInstances}
	if confidenceCount > 0 {
		quality.ConstraintConfidence = confidenceSum / float64(confidenceCount)
	}
	quality.Coverage = quality.ConstraintConfidence
	quality.Completeness = quality.ConstraintConfidence
	quality.Consistency = quality.ConstraintConfidence

	return &types.InferredSchema{Classes: shapes, Quality: quality}
}

func confidenceScore(c types.Confidence) float64 {
	switch c {
	case types.ConfidenceHigh:
		return 1.0
	case types.ConfidenceMedium:
		return 0.6
	default:
		return 0.3
	}
}

// inferProperty implements the §4.5 cardinality/datatype/node-kind/numeric-
// bounds/string-pattern/confidence rules for one (class, predicate) pair.
func (inf *Inferencer) inferProperty(n int64, pa *propAccum) (types.PropertyShape, types.Confidence) {
	k := int64(len(pa.subjectsWithProp))
	var mMax int
	for _, count := range pa.subjectsWithProp {
		if count > mMax {
			mMax = count
		}
	}

	coverage := 0.0
	if n > 0 {
		coverage = float64(k) / float64(n)
	}

	var card types.Cardinality
	switch {
	case coverage >= inf.cfg.CardinalityThreshold && mMax == 1:
		card = types.ExactlyOne
	case coverage >= inf.cfg.CardinalityThreshold && mMax > 1:
		card = types.OneOrMore
	case coverage < inf.cfg.OptionalThreshold && mMax == 1:
		card = types.ZeroOrOne
	default:
		card = types.ZeroOrMore
	}

	datatype := dominantDatatype(pa.datatypeCounts)
	nodeKind := dominantNodeKind(pa.nodeKinds)

	sample := int(k)
	confidence := classifyConfidence(coverage, sample)

	shape := types.PropertyShape{
		Predicate:   pa.predicate,
		Cardinality: card,
		Datatype:    datatype,
		NodeKind:    nodeKind,
		Optional:    card == types.ZeroOrOne || card == types.ZeroOrMore,
	}

	if len(pa.numericValues) >= inf.cfg.BoundSampleMin && allNonNegative(pa.numericValues) {
		shape.Constraints = append(shape.Constraints, types.InferredConstraint{
			Type: types.ConstraintMinInclusive, Value: 0.0, Confidence: types.ConfidenceHigh,
			Explanation: "all observed numeric values are >= 0",
		})
	}

	if pattern, ok := detectStringPattern(pa.stringValues); ok {
		shape.Constraints = append(shape.Constraints, types.InferredConstraint{
			Type: types.ConstraintPattern, Value: pattern, Confidence: types.ConfidenceMedium,
			Explanation: "at least 80% of observed literals match a well-known pattern",
		})
	}

	return shape, confidence
}

func classifyConfidence(coverage float64, sample int) types.Confidence {
	switch {
	case coverage >= 0.95 && sample >= 20:
		return types.ConfidenceHigh
	case coverage >= 0.8 && sample >= 10:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func dominantDatatype(counts map[string]int64) string {
	if len(counts) == 0 {
		return ""
	}
	if len(counts) == 1 {
		for dt := range counts {
			return dt
		}
	}
	// Multiple datatypes observed: generalize along integer -> decimal -> string.
	hasNonNumeric := false
	hasDecimal := false
	for dt := range counts {
		switch dt {
		case "http://www.w3.org/2001/XMLSchema#integer":
		case "http://www.w3.org/2001/XMLSchema#decimal", "http://www.w3.org/2001/XMLSchema#double", "http://www.w3.org/2001/XMLSchema#float":
			hasDecimal = true
		default:
			hasNonNumeric = true
		}
	}
	if hasNonNumeric {
		return "http://www.w3.org/2001/XMLSchema#string"
	}
	if hasDecimal {
		return "http://www.w3.org/2001/XMLSchema#decimal"
	}
	return "http://www.w3.org/2001/XMLSchema#string"
}

func dominantNodeKind(counts map[types.NodeKind]int) types.NodeKind {
	iriCount := counts[types.NodeKindIRI]
	litCount := counts[types.NodeKindLiteral]
	switch {
	case iriCount > 0 && litCount == 0:
		return types.NodeKindIRI
	case litCount > 0 && iriCount == 0:
		return types.NodeKindLiteral
	default:
		return types.NodeKindMixed
	}
}

func allNonNegative(vals []float64) bool {
	for _, v := range vals {
		if v < 0 {
			return false
		}
	}
	return true
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	uuidPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	curiePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*:[a-zA-Z0-9_.-]+$`)
)

// detectStringPattern implements spec §4.5's string-pattern rule: >= 80% of
// sampled literals matching one well-known regex emits that pattern.
func detectStringPattern(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	patterns := []struct {
		name string
		re   *regexp.Regexp
	}{
		{"email", emailPattern},
		{"uuid", uuidPattern},
		{"iso-date", isoDatePattern},
		{"curie", curiePattern},
	}
	for _, p := range patterns {
		matches := 0
		for _, v := range values {
			if p.re.MatchString(v) {
				matches++
			}
		}
		if float64(matches)/float64(len(values)) >= 0.8 {
			return p.name, true
		}
	}
	return "", false
}
