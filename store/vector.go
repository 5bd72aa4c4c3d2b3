// Package store provides document and graph store implementations: an
// in-memory vector store, a Postgres/pgvector document store, an in-memory
// property graph, and a FalkorDB-backed Cypher graph store.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/smallnest/ragduel"
)

// InMemoryVectorStore is a simple in-memory document store with cosine
// similarity search and keyword search.
type InMemoryVectorStore struct {
	documents  []ragduel.Document
	embeddings [][]float32
	embedder   ragduel.Embedder
}

var _ ragduel.DocumentStore = (*InMemoryVectorStore)(nil)

// NewInMemoryVectorStore creates an empty store. The embedder may be nil if
// all added documents carry precomputed embeddings or only keyword search is
// used.
func NewInMemoryVectorStore(embedder ragduel.Embedder) *InMemoryVectorStore {
	return &InMemoryVectorStore{
		documents:  make([]ragduel.Document, 0),
		embeddings: make([][]float32, 0),
		embedder:   embedder,
	}
}

// Add appends documents, embedding any that lack a precomputed vector.
func (s *InMemoryVectorStore) Add(ctx context.Context, docs []ragduel.Document) error {
	for _, doc := range docs {
		embedding := doc.Embedding
		if len(embedding) == 0 && s.embedder != nil {
			var err error
			embedding, err = s.embedder.EmbedDocument(ctx, doc.Content)
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
		}
		s.documents = append(s.documents, doc)
		s.embeddings = append(s.embeddings, embedding)
	}
	return nil
}

// Len returns the number of stored documents.
func (s *InMemoryVectorStore) Len() int {
	return len(s.documents)
}

// Search ranks documents by cosine similarity to the query embedding. Equal
// scores are broken by document ID so results are deterministic for a fixed
// corpus.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]ragduel.DocumentSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if len(s.documents) == 0 {
		return []ragduel.DocumentSearchResult{}, nil
	}

	results := make([]ragduel.DocumentSearchResult, 0, len(s.documents))
	for i, doc := range s.documents {
		if len(s.embeddings[i]) == 0 {
			continue
		}
		results = append(results, ragduel.DocumentSearchResult{
			Document: doc,
			Score:    cosineSimilarity(queryEmbedding, s.embeddings[i]),
		})
	}

	sortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// KeywordSearch ranks documents by the number of distinct keywords appearing
// in their content, case-insensitively. Documents matching no keyword are
// excluded; ties are broken by document ID.
func (s *InMemoryVectorStore) KeywordSearch(ctx context.Context, keywords []string, k int) ([]ragduel.DocumentSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	results := make([]ragduel.DocumentSearchResult, 0)
	for _, doc := range s.documents {
		content := strings.ToLower(doc.Content)
		hits := 0
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > 0 {
			results = append(results, ragduel.DocumentSearchResult{
				Document: doc,
				Score:    float64(hits),
			})
		}
	}

	sortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// sortResults orders by score descending, then by document ID ascending.
func sortResults(results []ragduel.DocumentSearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
