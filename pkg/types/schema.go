package types

// Confidence grades how much evidence backs an InferredConstraint.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Cardinality is the (min, max) shape a predicate's values take for
// instances of a given class.
type Cardinality string

const (
	ExactlyOne Cardinality = "ExactlyOne"
	ZeroOrOne  Cardinality = "ZeroOrOne"
	OneOrMore  Cardinality = "OneOrMore"
	ZeroOrMore Cardinality = "ZeroOrMore"
)

// NodeKind classifies the RDF term shape observed for a predicate's objects.
type NodeKind string

const (
	NodeKindIRI     NodeKind = "iri"
	NodeKindLiteral NodeKind = "literal"
	NodeKindMixed   NodeKind = ""
)

// ConstraintType names the kind of constraint an InferredConstraint carries.
type ConstraintType string

const (
	ConstraintCardinality  ConstraintType = "cardinality"
	ConstraintDatatype     ConstraintType = "datatype"
	ConstraintMinInclusive ConstraintType = "min_inclusive"
	ConstraintMaxInclusive ConstraintType = "max_inclusive"
	ConstraintPattern      ConstraintType = "pattern"
	ConstraintClosed       ConstraintType = "closed"
)

// InferredConstraint is one derived fact about a class+predicate pair.
type InferredConstraint struct {
	Type        ConstraintType `json:"type"`
	Value       interface{}    `json:"value"`
	Confidence  Confidence     `json:"confidence"`
	Explanation string         `json:"explanation"`
}

// PropertyShape is the inferred shape of one predicate within a class.
type PropertyShape struct {
	Predicate   string               `json:"predicate"`
	Cardinality Cardinality          `json:"cardinality"`
	Datatype    string               `json:"datatype,omitempty"`
	NodeKind    NodeKind             `json:"node_kind,omitempty"`
	Constraints []InferredConstraint `json:"constraints,omitempty"`
	Optional    bool                 `json:"optional"`
}

// ClassShape maps a class IRI to the predicates observed on its instances.
type ClassShape struct {
	ClassIRI   string          `json:"class_iri"`
	Properties []PropertyShape `json:"properties"`
}

// QualityMetrics summarizes how well-supported an InferredSchema is.
type QualityMetrics struct {
	TotalInstances       int64   `json:"total_instances"`
	Coverage             float64 `json:"coverage"`
	Completeness         float64 `json:"completeness"`
	ConstraintConfidence float64 `json:"constraint_confidence"`
	Consistency          float64 `json:"consistency"`
}

// InferredSchema is the output of the Schema Inferencer (C5): per-class
// property shapes plus an overall quality assessment. Exportable as a
// ShEx-like shape string via RenderShEx.
type InferredSchema struct {
	Classes []ClassShape   `json:"classes"`
	Quality QualityMetrics `json:"quality"`
}

// PropertyStats accumulates observations for a single predicate during one
// inference run (C5 intermediate state).
type PropertyStats struct {
	Predicate          string           `json:"predicate"`
	UsageCount         int64            `json:"usage_count"`
	DistinctSubjects   map[string]struct{} `json:"-"`
	SampleObjects      []string         `json:"sample_objects,omitempty"`
	DatatypeCounts     map[string]int64 `json:"datatype_counts,omitempty"`
	NumericMin         *float64         `json:"numeric_min,omitempty"`
	NumericMax         *float64         `json:"numeric_max,omitempty"`
	NumericSampleCount int              `json:"numeric_sample_count"`
	MaxValuesPerSubject int             `json:"max_values_per_subject"`
	DetectedPatterns   []string         `json:"detected_patterns,omitempty"`
}

// ClassStats accumulates observations for a single class during one
// inference run.
type ClassStats struct {
	ClassIRI        string                     `json:"class_iri"`
	InstanceCount   int64                      `json:"instance_count"`
	Instances       map[string]struct{}        `json:"-"`
	PropertyUsage   map[string]int64           `json:"property_usage,omitempty"`
	RequiredProps   []string                   `json:"required_props,omitempty"`
	OptionalProps   []string                   `json:"optional_props,omitempty"`
}

// ObservedTriple is one sampled (subject, predicate, object) fact fed to
// the Schema Inferencer, optionally annotated with the subject's rdf:type
// and the object's datatype/language.
type ObservedTriple struct {
	Subject       string
	Predicate     string
	Object        string
	SubjectType   string // class IRI, if known
	ObjectKind    NodeKind
	Datatype      string
	Language      string
}
