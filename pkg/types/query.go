package types

// QueryType is the SPARQL query form.
type QueryType string

const (
	QuerySelect    QueryType = "SELECT"
	QueryAsk       QueryType = "ASK"
	QueryConstruct QueryType = "CONSTRUCT"
	QueryDescribe  QueryType = "DESCRIBE"
)

// Query is a parsed SPARQL query: the raw text plus a few cheaply-derived
// facts the validator and executor both need.
type Query struct {
	Text              string    `json:"text"`
	Type              QueryType `json:"type"`
	DetectedPrefixes  map[string]string `json:"detected_prefixes"` // prefix -> IRI
	DetectedVariables []string  `json:"detected_variables"`
}
