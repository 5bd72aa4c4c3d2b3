package factstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/store"
	"github.com/smallnest/ragduel/structured"
)

// fixedLLM answers every structured call with the same query and every plain
// call with a canned gloss.
type fixedLLM struct {
	query string
}

func (l *fixedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return "Each researcher's publication count follows.", nil
}

func (l *fixedLLM) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return "Each researcher's publication count follows.", nil
}

func (l *fixedLLM) GenerateStructured(ctx context.Context, system, prompt string) (string, error) {
	return l.query, nil
}

func publicationCorpus() []Article {
	byAuthor := map[string][]string{
		"Emily Chen":  {"AI in Healthcare", "Graph Databases at Scale", "Federated Learning Basics"},
		"Raj Patel":   {"Quantum Error Correction", "Distributed Consensus"},
		"Sofia Marin": {"Protein Folding Models", "Climate Simulation at Exascale"},
	}
	var articles []Article
	for author, titles := range byAuthor {
		for _, title := range titles {
			articles = append(articles, Article{
				Title:    title,
				Abstract: "An abstract for " + title + ".",
				Authors:  []string{author},
			})
		}
	}
	return articles
}

func TestStructuredAnswerCountsArticlesPerResearcher(t *testing.T) {
	fs := New(store.NewInMemoryVectorStore(nil), store.NewMemoryGraph())
	require.NoError(t, fs.Load(context.Background(), publicationCorpus()))

	query := "MATCH (r:Researcher)-[:PUBLISHED]->(a:Article) RETURN r.name, count(a)"
	answerer := structured.New(&fixedLLM{query: query}, fs.GraphStore(), fs, ragduel.DefaultConfig())

	answer, err := answerer.Answer(context.Background(), "How many articles has each researcher published?")
	require.NoError(t, err)
	require.True(t, answer.HasText())
	assert.Equal(t, query, answer.Provenance.Query)

	result, err := fs.GraphStore().Execute(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)

	// Every (researcher, count) pair appears verbatim in the answer text, and
	// the counts cover the whole corpus.
	expected := map[string]int64{"Emily Chen": 3, "Raj Patel": 2, "Sofia Marin": 2}
	var total int64
	for _, row := range result.Rows {
		name, count := row[0].(string), row[1].(int64)
		assert.Equal(t, expected[name], count, name)
		total += count
		assert.Contains(t, answer.Text, fmt.Sprintf("r.name: %s\n  - count(a): %d", name, count))
	}
	assert.Equal(t, int64(7), total)

	// Provenance resolved each researcher name back to its graph entity.
	assert.Len(t, answer.Provenance.EntityIDs, 3)
}
