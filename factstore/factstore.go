// Package factstore holds one dataset in two representations built from a
// single load: a document collection for retrieval and a labeled property
// graph for structured query. Both answerers read from the same store, so a
// comparison between them is a comparison of method, not of data.
package factstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smallnest/ragduel"
	"github.com/smallnest/ragduel/log"
	"github.com/smallnest/ragduel/store"
)

// ErrAlreadyLoaded is returned when Load is called twice. The store is
// read-only after load; there is no runtime reconciliation between the two
// representations.
var ErrAlreadyLoaded = errors.New("fact store is already loaded")

// FactStore is the dual-representation store. The in-memory graph mirror is
// always populated; it backs schema description and provenance resolution.
// Query execution goes to the configured graph store, which defaults to a
// read-only Cypher interpreter over the mirror.
type FactStore struct {
	docs     ragduel.DocumentStore
	mirror   *store.MemoryGraph
	graph    ragduel.GraphStore
	embedder ragduel.Embedder

	mu       sync.Mutex
	loaded   bool
	docCount int
}

var _ ragduel.EntityResolver = (*FactStore)(nil)

// Option configures a FactStore.
type Option func(*FactStore)

// WithGraphStore routes query execution to an external graph database
// (e.g. FalkorDB) instead of the in-memory interpreter. If the store also
// implements ragduel.GraphWriter, Load writes through to it.
func WithGraphStore(gs ragduel.GraphStore) Option {
	return func(fs *FactStore) { fs.graph = gs }
}

// WithEmbedder embeds document content at load time. Needed for document
// stores that do not embed on Add, such as the pgvector store.
func WithEmbedder(e ragduel.Embedder) Option {
	return func(fs *FactStore) { fs.embedder = e }
}

// New creates an empty fact store over the given document store and graph
// mirror.
func New(docs ragduel.DocumentStore, mirror *store.MemoryGraph, opts ...Option) *FactStore {
	fs := &FactStore{docs: docs, mirror: mirror}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.graph == nil {
		fs.graph = store.NewMemoryCypher(mirror)
	}
	return fs
}

// Load populates both representations from the given articles. It can be
// called once; the store is read-only afterwards.
func (fs *FactStore) Load(ctx context.Context, articles []Article) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.loaded {
		return ErrAlreadyLoaded
	}

	writers := []ragduel.GraphWriter{fs.mirror}
	if w, ok := fs.graph.(ragduel.GraphWriter); ok {
		writers = append(writers, w)
	}
	addEntity := func(e *ragduel.Entity) error {
		for _, w := range writers {
			if err := w.AddEntity(ctx, e); err != nil {
				return fmt.Errorf("failed to add entity %s: %w", e.Name, err)
			}
		}
		return nil
	}
	addRelationship := func(r *ragduel.Relationship) error {
		for _, w := range writers {
			if err := w.AddRelationship(ctx, r); err != nil {
				return fmt.Errorf("failed to add relationship %s: %w", r.Type, err)
			}
		}
		return nil
	}

	// Researchers and topics recur across articles and are deduplicated by
	// case-insensitive name.
	researchers := map[string]string{}
	topics := map[string]string{}
	docs := make([]ragduel.Document, 0, len(articles))

	for _, a := range articles {
		if strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("article with empty title")
		}

		articleID := uuid.NewString()
		props := map[string]any{"abstract": a.Abstract}
		if a.PublicationDate != "" {
			props["published"] = a.PublicationDate
		}
		if err := addEntity(&ragduel.Entity{
			ID: articleID, Type: "Article", Name: a.Title, Properties: props,
		}); err != nil {
			return err
		}

		for _, author := range a.Authors {
			author = strings.TrimSpace(author)
			if author == "" {
				continue
			}
			key := strings.ToLower(author)
			rid, ok := researchers[key]
			if !ok {
				rid = uuid.NewString()
				researchers[key] = rid
				if err := addEntity(&ragduel.Entity{ID: rid, Type: "Researcher", Name: author}); err != nil {
					return err
				}
			}
			if err := addRelationship(&ragduel.Relationship{
				ID: uuid.NewString(), Type: "PUBLISHED", Source: rid, Target: articleID,
			}); err != nil {
				return err
			}
		}

		if topic := strings.TrimSpace(a.Topic); topic != "" {
			key := strings.ToLower(topic)
			tid, ok := topics[key]
			if !ok {
				tid = uuid.NewString()
				topics[key] = tid
				if err := addEntity(&ragduel.Entity{ID: tid, Type: "Topic", Name: topic}); err != nil {
					return err
				}
			}
			if err := addRelationship(&ragduel.Relationship{
				ID: uuid.NewString(), Type: "IN_TOPIC", Source: articleID, Target: tid,
			}); err != nil {
				return err
			}
		}

		docs = append(docs, ragduel.Document{
			ID:      articleID,
			Content: a.documentText(),
			Metadata: map[string]any{
				"title":     a.Title,
				"authors":   strings.Join(a.Authors, ", "),
				"topic":     a.Topic,
				"published": a.PublicationDate,
			},
		})
	}

	if fs.embedder != nil && len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		embeddings, err := fs.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		for i := range docs {
			docs[i].Embedding = embeddings[i]
		}
	}

	if err := fs.docs.Add(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	fs.loaded = true
	fs.docCount = len(docs)
	entities, relationships := fs.mirror.Counts()
	log.Info("fact store loaded: %d documents, %d entities, %d relationships",
		fs.docCount, entities, relationships)
	return nil
}

// Documents returns the document side of the store.
func (fs *FactStore) Documents() ragduel.DocumentStore { return fs.docs }

// GraphStore returns the query side of the store.
func (fs *FactStore) GraphStore() ragduel.GraphStore { return fs.graph }

// Schema returns the graph schema as seen by the query side.
func (fs *FactStore) Schema(ctx context.Context) (*ragduel.GraphSchema, error) {
	return fs.graph.DescribeSchema(ctx)
}

// ResolveEntities maps raw result values back to graph elements by name.
// Resolution always goes through the in-memory mirror regardless of where
// queries execute.
func (fs *FactStore) ResolveEntities(ctx context.Context, values []string) ([]ragduel.Entity, error) {
	return fs.mirror.ResolveEntities(ctx, values)
}

// Counts reports the loaded sizes of both representations.
func (fs *FactStore) Counts() (documents, entities, relationships int) {
	fs.mu.Lock()
	documents = fs.docCount
	fs.mu.Unlock()
	entities, relationships = fs.mirror.Counts()
	return documents, entities, relationships
}

// Loaded reports whether Load has completed.
func (fs *FactStore) Loaded() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.loaded
}

// Close closes the query side.
func (fs *FactStore) Close() error { return fs.graph.Close() }

// documentText renders the article as retrieval content.
func (a Article) documentText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	if len(a.Authors) > 0 {
		authors := append([]string(nil), a.Authors...)
		sort.Strings(authors)
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(authors, ", "))
	}
	if a.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", a.Topic)
	}
	if a.PublicationDate != "" {
		fmt.Fprintf(&b, "Published: %s\n", a.PublicationDate)
	}
	fmt.Fprintf(&b, "Abstract: %s", a.Abstract)
	return b.String()
}
