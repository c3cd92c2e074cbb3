package types

import (
	"strconv"
	"time"
)

// IRICount pairs an IRI with an observation count; used for top-N rankings
// where map ordering would otherwise be lost.
type IRICount struct {
	IRI   string `json:"iri"`
	Count int64  `json:"count"`
}

// DatasetStatistics is the aggregate record built by the Statistics
// Collector (C4).
type DatasetStatistics struct {
	Endpoint            string            `json:"endpoint"`
	TotalTriples        int64             `json:"total_triples"`
	DistinctSubjects    int64             `json:"distinct_subjects"`
	DistinctPredicates  int64             `json:"distinct_predicates"`
	DistinctObjects     int64             `json:"distinct_objects"`
	DistinctClasses     int64             `json:"distinct_classes"`
	TopClasses          []IRICount        `json:"top_classes"`
	TopProperties       []IRICount        `json:"top_properties"`
	DatatypeDistribution map[string]int64 `json:"datatype_distribution"`
	LanguageDistribution map[string]int64 `json:"language_distribution"`
	NamespaceUsage      map[string]int64  `json:"namespace_usage"`
	DetectedPatterns    map[string]bool   `json:"detected_patterns"`
	CollectionDuration  time.Duration     `json:"collection_duration"`
	Warnings            []string          `json:"warnings,omitempty"`
}

// Summary renders a short human-readable description of the statistics
// record, as required by spec §4.4 ("outputs a human-readable summary in
// addition to the structured record").
func (d *DatasetStatistics) Summary() string {
	if d == nil {
		return "no statistics collected"
	}
	s := "dataset: " + strconv.FormatInt(d.TotalTriples, 10) + " triples, " +
		strconv.FormatInt(d.DistinctSubjects, 10) + " subjects, " +
		strconv.FormatInt(d.DistinctPredicates, 10) + " predicates, " +
		strconv.FormatInt(d.DistinctClasses, 10) + " classes"
	if len(d.TopClasses) > 0 {
		s += "; top class " + d.TopClasses[0].IRI
	}
	return s
}
