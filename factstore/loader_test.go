package factstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel/store"
)

const articlesCSV = `Title;Abstract;Publication_Date;Authors;Topic
AI in Healthcare;Machine learning for diagnosis.;2024-01-15;Emily Chen, Raj Patel;Artificial Intelligence
Graph Databases at Scale;Partitioning property graphs.;2023-11-02;Emily Chen;Databases
`

func TestParseArticlesCSV(t *testing.T) {
	articles, err := ParseArticlesCSV(strings.NewReader(articlesCSV))
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "AI in Healthcare", articles[0].Title)
	assert.Equal(t, []string{"Emily Chen", "Raj Patel"}, articles[0].Authors)
	assert.Equal(t, "Artificial Intelligence", articles[0].Topic)
	assert.Equal(t, "2024-01-15", articles[0].PublicationDate)
	assert.Equal(t, []string{"Emily Chen"}, articles[1].Authors)
}

func TestParseArticlesCSVHeaderOrderIndependent(t *testing.T) {
	csv := "Topic;Title;Authors;Abstract;Publication_Date\nT;A Title;X;An abstract.;2020-01-01\n"
	articles, err := ParseArticlesCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "A Title", articles[0].Title)
	assert.Equal(t, "T", articles[0].Topic)
}

func TestParseArticlesCSVErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		_, err := ParseArticlesCSV(strings.NewReader("Title;Authors\nX;Y\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "abstract")
	})

	t.Run("empty title", func(t *testing.T) {
		_, err := ParseArticlesCSV(strings.NewReader("Title;Abstract\n;no title\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestLoadCSV(t *testing.T) {
	fs := New(store.NewInMemoryVectorStore(nil), store.NewMemoryGraph())
	n, err := fs.LoadCSV(context.Background(), strings.NewReader(articlesCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	documents, entities, relationships := fs.Counts()
	assert.Equal(t, 2, documents)
	assert.Equal(t, 6, entities)
	assert.Equal(t, 5, relationships)
}
