package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparql-agent-go/pkg/types"
)

func syntheticProteins(t *testing.T) []types.ObservedTriple {
	t.Helper()
	var triples []types.ObservedTriple
	for i := 0; i < 100; i++ {
		subj := "http://ex.org/protein/" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		triples = append(triples, types.ObservedTriple{
			Subject: subj, Predicate: "http://ex.org/name", Object: "protein name",
			SubjectType: "http://ex.org/Protein", ObjectKind: types.NodeKindLiteral,
			Datatype: "http://www.w3.org/2001/XMLSchema#string",
		})
		if i < 40 {
			triples = append(triples, types.ObservedTriple{
				Subject: subj, Predicate: "http://ex.org/synonym", Object: "syn-a",
				SubjectType: "http://ex.org/Protein", ObjectKind: types.NodeKindLiteral,
				Datatype: "http://www.w3.org/2001/XMLSchema#string",
			})
			triples = append(triples, types.ObservedTriple{
				Subject: subj, Predicate: "http://ex.org/synonym", Object: "syn-b",
				SubjectType: "http://ex.org/Protein", ObjectKind: types.NodeKindLiteral,
				Datatype: "http://www.w3.org/2001/XMLSchema#string",
			})
		}
	}
	return triples
}

func TestInfer_CardinalityEndToEndScenario(t *testing.T) {
	inf := NewInferencer(DefaultConfig())
	schema := inf.Infer(syntheticProteins(t))

	require.Len(t, schema.Classes, 1)
	class := schema.Classes[0]
	assert.Equal(t, "http://ex.org/Protein", class.ClassIRI)

	var name, synonym *types.PropertyShape
	for i := range class.Properties {
		switch class.Properties[i].Predicate {
		case "http://ex.org/name":
			name = &class.Properties[i]
		case "http://ex.org/synonym":
			synonym = &class.Properties[i]
		}
	}
	require.NotNil(t, name)
	require.NotNil(t, synonym)

	assert.Equal(t, types.ExactlyOne, name.Cardinality)
	assert.Equal(t, types.ZeroOrMore, synonym.Cardinality)
}

func TestInfer_DetectsNumericLowerBound(t *testing.T) {
	var triples []types.ObservedTriple
	for i := 0; i < 10; i++ {
		triples = append(triples, types.ObservedTriple{
			Subject: "http://ex.org/item/1", Predicate: "http://ex.org/count", Object: "3",
			SubjectType: "http://ex.org/Item", ObjectKind: types.NodeKindLiteral,
			Datatype: "http://www.w3.org/2001/XMLSchema#integer",
		})
	}
	inf := NewInferencer(DefaultConfig())
	schema := inf.Infer(triples)
	require.Len(t, schema.Classes, 1)
	require.Len(t, schema.Classes[0].Properties, 1)
	constraints := schema.Classes[0].Properties[0].Constraints
	require.NotEmpty(t, constraints)
	assert.Equal(t, types.ConstraintMinInclusive, constraints[0].Type)
}

func TestInfer_DeterministicOrdering(t *testing.T) {
	triples := syntheticProteins(t)
	inf := NewInferencer(DefaultConfig())
	first := inf.Infer(triples)
	second := inf.Infer(triples)
	assert.Equal(t, first.Classes[0].Properties[0].Predicate, second.Classes[0].Properties[0].Predicate)
}

func TestRenderShEx_ProducesOneShapePerClass(t *testing.T) {
	inf := NewInferencer(DefaultConfig())
	schema := inf.Infer(syntheticProteins(t))
	out := RenderShEx(schema)
	assert.Contains(t, out, "ProteinShape")
	assert.Contains(t, out, "<http://ex.org/name>")
}

func TestRenderVoID_IncludesCounts(t *testing.T) {
	stats := &types.DatasetStatistics{TotalTriples: 100, DistinctSubjects: 10}
	out := RenderVoID("https://example.org/sparql", stats)
	assert.Contains(t, out, "void:triples 100")
	assert.Contains(t, out, "void:distinctSubjects 10")
}
