package inference

import (
	"fmt"
	"strings"

	"sparql-agent-go/pkg/types"
)

// RenderShEx renders an InferredSchema as a ShExC shape expression document,
// one shape per class (SPEC_FULL §12 supplemented feature).
func RenderShEx(schema *types.InferredSchema) string {
	if schema == nil {
		return ""
	}
	var b strings.Builder
	for _, class := range schema.Classes {
		b.WriteString(shapeLabel(class.ClassIRI))
		b.WriteString(" {\n")
		for i, p := range class.Properties {
			b.WriteString("  ")
			b.WriteString(wrapIRI(p.Predicate))
			b.WriteString(" ")
			b.WriteString(valueExpr(p))
			b.WriteString(cardinalityMark(p.Cardinality))
			if i < len(class.Properties)-1 {
				b.WriteString(" ;")
			}
			b.WriteString("\n")
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}

func shapeLabel(classIRI string) string {
	return fmt.Sprintf("<%sShape>", classIRI)
}

func wrapIRI(iri string) string {
	return "<" + iri + ">"
}

func valueExpr(p types.PropertyShape) string {
	switch p.NodeKind {
	case types.NodeKindIRI:
		return "IRI"
	case types.NodeKindLiteral:
		if p.Datatype != "" {
			return wrapIRI(p.Datatype)
		}
		return "LITERAL"
	default:
		return "."
	}
}

func cardinalityMark(c types.Cardinality) string {
	switch c {
	case types.ExactlyOne:
		return ""
	case types.ZeroOrOne:
		return "?"
	case types.OneOrMore:
		return "+"
	case types.ZeroOrMore:
		return "*"
	default:
		return ""
	}
}

// RenderVoID renders a minimal VoID (Vocabulary of Interlinked Datasets)
// description from collected DatasetStatistics (SPEC_FULL §12).
func RenderVoID(endpoint string, stats *types.DatasetStatistics) string {
	if stats == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("@prefix void: <http://rdfs.org/ns/void#> .\n")
	b.WriteString("@prefix dcterms: <http://purl.org/dc/terms/> .\n\n")
	b.WriteString("<" + endpoint + "#dataset> a void:Dataset ;\n")
	fmt.Fprintf(&b, "  void:sparqlEndpoint <%s> ;\n", endpoint)
	fmt.Fprintf(&b, "  void:triples %d ;\n", stats.TotalTriples)
	fmt.Fprintf(&b, "  void:distinctSubjects %d ;\n", stats.DistinctSubjects)
	fmt.Fprintf(&b, "  void:distinctObjects %d ;\n", stats.DistinctObjects)
	fmt.Fprintf(&b, "  void:properties %d ;\n", stats.DistinctPredicates)
	fmt.Fprintf(&b, "  void:classes %d .\n", stats.DistinctClasses)
	return b.String()
}
