package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/store"
)

type stubLLM struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
	calls      int
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return s.GenerateWithSystem(ctx, "", prompt)
}

func (s *stubLLM) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	s.calls++
	s.lastSystem, s.lastPrompt = system, prompt
	return s.response, s.err
}

func (s *stubLLM) GenerateStructured(ctx context.Context, system, prompt string) (string, error) {
	return s.GenerateWithSystem(ctx, system, prompt)
}

type stubEmbedder struct {
	vector []float32
	calls  int
}

func (s *stubEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vector, nil
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) GetDimension() int { return len(s.vector) }

func seedDocs(t *testing.T) ragduel.DocumentStore {
	t.Helper()
	docs := store.NewInMemoryVectorStore(nil)
	require.NoError(t, docs.Add(context.Background(), []ragduel.Document{
		{ID: "d1", Content: "Machine learning models for clinical diagnosis.", Embedding: []float32{1, 0}},
		{ID: "d2", Content: "Partitioning labeled property graphs.", Embedding: []float32{0, 1}},
	}))
	return docs
}

func TestAnswerKeywordMode(t *testing.T) {
	llm := &stubLLM{response: "ML is used for diagnosis."}
	a := New(llm, nil, seedDocs(t), ragduel.DefaultConfig())

	answer, err := a.Answer(context.Background(), "How is machine learning used in clinical settings?")
	require.NoError(t, err)

	assert.Equal(t, ragduel.MethodRetrieval, answer.Method)
	assert.True(t, answer.HasText())
	assert.Equal(t, []string{"d1"}, answer.Provenance.DocumentIDs)
	assert.Greater(t, answer.Elapsed, time.Duration(0))

	assert.Contains(t, llm.lastPrompt, "clinical diagnosis")
	assert.Contains(t, llm.lastPrompt, "Question: How is machine learning used in clinical settings?")
	assert.Equal(t, synthesisSystemPrompt, llm.lastSystem)
}

func TestAnswerEmptyRetrievalDegrades(t *testing.T) {
	llm := &stubLLM{response: "should not be called"}
	a := New(llm, nil, seedDocs(t), ragduel.DefaultConfig())

	answer, err := a.Answer(context.Background(), "quantum entanglement thermodynamics")
	require.NoError(t, err)

	assert.True(t, answer.Degraded)
	assert.False(t, answer.HasText())
	assert.Equal(t, ragduel.ErrRetrievalEmpty.Error(), answer.FailureReason)
	assert.Zero(t, llm.calls)
}

func TestAnswerVectorMode(t *testing.T) {
	cfg := ragduel.DefaultConfig()
	cfg.UseVectorSearch = true
	cfg.ScoreThreshold = 0.9

	llm := &stubLLM{response: "about ML"}
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	a := New(llm, embedder, seedDocs(t), cfg)

	answer, err := a.Answer(context.Background(), "machine learning?")
	require.NoError(t, err)

	// d2 is orthogonal to the query and falls under the threshold.
	assert.Equal(t, []string{"d1"}, answer.Provenance.DocumentIDs)
}

func TestQuestionEmbeddingIsCached(t *testing.T) {
	cfg := ragduel.DefaultConfig()
	cfg.UseVectorSearch = true
	cfg.ScoreThreshold = 0

	embedder := &stubEmbedder{vector: []float32{1, 0}}
	a := New(&stubLLM{response: "x"}, embedder, seedDocs(t), cfg)

	ctx := context.Background()
	_, err := a.Answer(ctx, "machine learning?")
	require.NoError(t, err)
	_, err = a.Answer(ctx, "machine learning?")
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
}

func TestAnswerSynthesisErrorPropagates(t *testing.T) {
	llm := &stubLLM{err: errors.New("model overloaded")}
	a := New(llm, nil, seedDocs(t), ragduel.DefaultConfig())

	_, err := a.Answer(context.Background(), "machine learning in clinical care")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synthesis")
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("Who are the collaborators of Emily Chen?")
	assert.Equal(t, []string{"collaborators", "emily", "chen"}, keywords)

	assert.Empty(t, ExtractKeywords("Who is the?"))
	assert.Equal(t, []string{"ai"}, ExtractKeywords("AI, ai, AI!"))
}

func TestSynthesisPromptOrdersByRelevance(t *testing.T) {
	llm := &stubLLM{response: "x"}
	a := New(llm, nil, seedDocs(t), ragduel.DefaultConfig())

	_, err := a.Answer(context.Background(), "machine learning property graphs")
	require.NoError(t, err)

	first := strings.Index(llm.lastPrompt, "Document 1")
	second := strings.Index(llm.lastPrompt, "Document 2")
	assert.Greater(t, second, first)
}
