// Package retrieval implements the retrieval answerer: find relevant
// documents, synthesize an answer over them, and report which documents it
// used.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/log"
)

const synthesisSystemPrompt = "You are a helpful research assistant."

// Answerer retrieves documents by keyword or embedding similarity and
// synthesizes an answer grounded in them. Empty retrieval produces a degraded
// answer, never a pipeline failure.
type Answerer struct {
	llm      ragduel.LLM
	embedder ragduel.Embedder
	docs     ragduel.DocumentStore
	cfg      ragduel.Config

	// embeddings holds question embeddings; batch runs repeat questions.
	embeddings *gocache.Cache
}

var _ ragduel.Answerer = (*Answerer)(nil)

// New creates a retrieval answerer. The embedder is only consulted when
// Config.UseVectorSearch is set.
func New(llm ragduel.LLM, embedder ragduel.Embedder, docs ragduel.DocumentStore, cfg ragduel.Config) *Answerer {
	return &Answerer{
		llm:        llm,
		embedder:   embedder,
		docs:       docs,
		cfg:        cfg,
		embeddings: gocache.New(10*time.Minute, 15*time.Minute),
	}
}

// Answer retrieves context for the question and synthesizes an answer over
// it. When nothing relevant is found the returned answer is marked degraded
// and carries no text.
func (a *Answerer) Answer(ctx context.Context, question string) (*ragduel.Answer, error) {
	start := time.Now()

	results, err := a.retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		log.Debug("retrieval found nothing for %q", question)
		answer := ragduel.NoAnswer(ragduel.MethodRetrieval, ragduel.ErrRetrievalEmpty.Error())
		answer.Elapsed = time.Since(start)
		return answer, nil
	}

	text, err := a.synthesize(ctx, question, results)
	if err != nil {
		return nil, fmt.Errorf("answer synthesis failed: %w", err)
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Document.ID
	}
	return &ragduel.Answer{
		Method:     ragduel.MethodRetrieval,
		Text:       text,
		Provenance: ragduel.Provenance{DocumentIDs: ids},
		Elapsed:    time.Since(start),
	}, nil
}

func (a *Answerer) retrieve(ctx context.Context, question string) ([]ragduel.DocumentSearchResult, error) {
	if !a.cfg.UseVectorSearch {
		keywords := ExtractKeywords(question)
		if len(keywords) == 0 {
			return nil, nil
		}
		return a.docs.KeywordSearch(ctx, keywords, a.cfg.TopK)
	}

	embedding, err := a.questionEmbedding(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := a.docs.Search(ctx, embedding, a.cfg.TopK)
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= a.cfg.ScoreThreshold {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (a *Answerer) questionEmbedding(ctx context.Context, question string) ([]float32, error) {
	if cached, ok := a.embeddings.Get(question); ok {
		return cached.([]float32), nil
	}

	callCtx := ctx
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}
	embedding, err := a.embedder.EmbedDocument(callCtx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	a.embeddings.Set(question, embedding, gocache.DefaultExpiration)
	return embedding, nil
}

func (a *Answerer) synthesize(ctx context.Context, question string, results []ragduel.DocumentSearchResult) (string, error) {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Document %d (score: %.3f):\n%s\n---\n\n", i+1, r.Score, r.Document.Content)
	}

	prompt := fmt.Sprintf(`You are a helpful assistant that answers questions based on the provided context.

Context:
%s
Question: %s

Please provide a comprehensive answer based on the context above. If the context doesn't contain enough information to answer the question, say so.

Answer:`, b.String(), question)

	callCtx := ctx
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}
	return a.llm.GenerateWithSystem(callCtx, synthesisSystemPrompt, prompt)
}

// stopwords excluded from keyword retrieval. Question words dominate
// questions and match nothing useful.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "be": true, "by": true,
	"did": true, "do": true, "does": true, "for": true, "from": true,
	"how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "their": true, "this": true,
	"to": true, "was": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "whom": true, "why": true,
	"with": true,
}

// ExtractKeywords lowercases the question, splits it on non-alphanumeric
// runes, and drops stopwords and single-character tokens.
func ExtractKeywords(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	seen := make(map[string]bool, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}
