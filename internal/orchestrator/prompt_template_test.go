package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	b := NewPromptBuilder()
	out := b.Render("hello {name}, you are {age}", map[string]string{"name": "Ada", "age": "36"})
	assert.Equal(t, "hello Ada, you are 36", out)
}

func TestRender_UnknownPlaceholderRendersEmpty(t *testing.T) {
	b := NewPromptBuilder()
	out := b.Render("hi {missing}!", map[string]string{})
	assert.Equal(t, "hi !", out)
}

func TestRender_CachesParsedTemplate(t *testing.T) {
	b := NewPromptBuilder()
	tmpl := "x={x}"
	first := b.Render(tmpl, map[string]string{"x": "1"})
	second := b.Render(tmpl, map[string]string{"x": "2"})
	assert.Equal(t, "x=1", first)
	assert.Equal(t, "x=2", second)
	assert.Len(t, b.cache, 1)
}

func TestBuildGenerationPrompt_IncludesQuestionAndPrefixes(t *testing.T) {
	b := NewPromptBuilder()
	out := b.BuildGenerationPrompt("how many proteins are there?", "class :Protein has property :name")
	assert.Contains(t, out, "how many proteins are there?")
	assert.Contains(t, out, "PREFIX rdf:")
	assert.Contains(t, out, ":Protein")
}
