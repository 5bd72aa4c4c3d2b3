package factstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel/store"
)

func sampleArticles() []Article {
	return []Article{
		{
			Title:           "AI in Healthcare",
			Abstract:        "Machine learning models for clinical diagnosis.",
			PublicationDate: "2024-01-15",
			Authors:         []string{"Emily Chen", "Raj Patel"},
			Topic:           "Artificial Intelligence",
		},
		{
			Title:           "Graph Databases at Scale",
			Abstract:        "Partitioning labeled property graphs.",
			PublicationDate: "2023-11-02",
			Authors:         []string{"Emily Chen"},
			Topic:           "Databases",
		},
	}
}

func loadedStore(t *testing.T, opts ...Option) *FactStore {
	t.Helper()
	fs := New(store.NewInMemoryVectorStore(nil), store.NewMemoryGraph(), opts...)
	require.NoError(t, fs.Load(context.Background(), sampleArticles()))
	return fs
}

func TestLoadBuildsBothRepresentations(t *testing.T) {
	fs := loadedStore(t)

	documents, entities, relationships := fs.Counts()
	assert.Equal(t, 2, documents)
	// 2 articles + 2 researchers (Emily deduplicated) + 2 topics.
	assert.Equal(t, 6, entities)
	// 3 PUBLISHED + 2 IN_TOPIC.
	assert.Equal(t, 5, relationships)
	assert.True(t, fs.Loaded())
}

func TestLoadIsOneShot(t *testing.T) {
	fs := loadedStore(t)
	err := fs.Load(context.Background(), sampleArticles())
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
}

func TestLoadedStoreAnswersQueries(t *testing.T) {
	fs := loadedStore(t)

	result, err := fs.GraphStore().Execute(context.Background(),
		"MATCH (r:Researcher {name: 'Emily Chen'})-[:PUBLISHED]->(a:Article) RETURN a.name ORDER BY a.name")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "AI in Healthcare", result.Rows[0][0])
	assert.Equal(t, "Graph Databases at Scale", result.Rows[1][0])
}

func TestLoadedStoreAnswersKeywordSearch(t *testing.T) {
	fs := loadedStore(t)

	results, err := fs.Documents().KeywordSearch(context.Background(), []string{"clinical"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "AI in Healthcare", results[0].Document.Metadata["title"])
}

func TestSchemaDescribesLoadedGraph(t *testing.T) {
	fs := loadedStore(t)

	schema, err := fs.Schema(context.Background())
	require.NoError(t, err)

	described := schema.Describe()
	assert.Contains(t, described, "(Researcher)-[:PUBLISHED]->(Article)")
	assert.Contains(t, described, "(Article)-[:IN_TOPIC]->(Topic)")
	assert.Contains(t, described, "Sample Data:")
}

func TestResolveEntities(t *testing.T) {
	fs := loadedStore(t)

	resolved, err := fs.ResolveEntities(context.Background(), []string{"emily chen", "Databases", "unknown"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
}

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *countingEmbedder) GetDimension() int { return 2 }

func TestLoadEmbedsWhenConfigured(t *testing.T) {
	embedder := &countingEmbedder{}
	fs := loadedStore(t, WithEmbedder(embedder))

	assert.Equal(t, 1, embedder.calls)
	results, err := fs.Documents().Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

// writableGraph combines a query surface with a write surface, the shape a
// FalkorDB-backed store has.
type writableGraph struct {
	*store.MemoryCypher
	*store.MemoryGraph
}

func TestLoadWritesThroughToGraphStore(t *testing.T) {
	mirror := store.NewMemoryGraph()
	sink := store.NewMemoryGraph()
	fs := New(store.NewInMemoryVectorStore(nil), mirror,
		WithGraphStore(&writableGraph{store.NewMemoryCypher(sink), sink}))
	require.NoError(t, fs.Load(context.Background(), sampleArticles()))

	entities, relationships := sink.Counts()
	assert.Equal(t, 6, entities)
	assert.Equal(t, 5, relationships)

	// The mirror is populated as well.
	entities, relationships = mirror.Counts()
	assert.Equal(t, 6, entities)
	assert.Equal(t, 5, relationships)
}

func TestLoadRejectsEmptyTitle(t *testing.T) {
	fs := New(store.NewInMemoryVectorStore(nil), store.NewMemoryGraph())
	err := fs.Load(context.Background(), []Article{{Abstract: "no title"}})
	assert.Error(t, err)
	assert.False(t, fs.Loaded())
}

func TestDocumentText(t *testing.T) {
	a := sampleArticles()[0]
	text := a.documentText()
	assert.Contains(t, text, "Title: AI in Healthcare")
	assert.Contains(t, text, "Authors: Emily Chen, Raj Patel")
	assert.Contains(t, text, "Abstract: Machine learning")
}
