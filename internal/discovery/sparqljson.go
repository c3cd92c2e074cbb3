package discovery

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// sparqlJSONResults is the minimal shape of a SPARQL 1.1 results JSON
// document needed to read a single projected variable's bound values.
type sparqlJSONResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// decodeSingleColumn extracts the bound values of one projected variable
// from a SPARQL JSON results body, used by discovery probes that only need
// one column (named graphs, sampled predicates).
func decodeSingleColumn(r io.Reader, variable string) []string {
	var doc sparqlJSONResults
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil
	}
	out := make([]string, 0, len(doc.Results.Bindings))
	for _, b := range doc.Results.Bindings {
		if v, ok := b[variable]; ok {
			out = append(out, v.Value)
		}
	}
	return out
}

// decodeInto unmarshals a raw SPARQL JSON response body into dest.
func decodeInto(body []byte, dest interface{}) error {
	return json.NewDecoder(bytes.NewReader(body)).Decode(dest)
}

// parseInt64 parses a COUNT(...) lexical value, defaulting to 0 on error.
// A non-integer count is not reported to the caller: it reads as 0 and
// no warning is recorded.
func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
