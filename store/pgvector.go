package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/smallnest/ragduel"
)

// PgVectorConfig configures the Postgres document store.
type PgVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PgVectorStore is a document store on Postgres with the pgvector extension.
// Vector search uses cosine distance over an ivfflat index; keyword search
// counts ILIKE hits.
type PgVectorStore struct {
	pool *pgxpool.Pool
	cfg  PgVectorConfig
}

var _ ragduel.DocumentStore = (*PgVectorStore)(nil)

// NewPgVectorStore connects and ensures the extension, table, and index
// exist.
func NewPgVectorStore(ctx context.Context, cfg PgVectorConfig) (*PgVectorStore, error) {
	if cfg.TableName == "" {
		cfg.TableName = "documents"
	}
	if cfg.VectorDim == 0 {
		cfg.VectorDim = 1536
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PgVectorStore{pool: pool, cfg: cfg}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, s.cfg.TableName, s.cfg.VectorDim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, s.cfg.TableName, s.cfg.TableName)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Add upserts documents in a single transaction.
func (s *PgVectorStore) Add(ctx context.Context, docs []ragduel.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, s.cfg.TableName)

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}
		var embedding any
		if len(doc.Embedding) > 0 {
			embedding = pgvector.NewVector(doc.Embedding)
		}
		if _, err := tx.Exec(ctx, stmt, doc.ID, doc.Content, metadata, embedding); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Search ranks documents by cosine similarity.
func (s *PgVectorStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]ragduel.DocumentSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`, s.cfg.TableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// KeywordSearch ranks documents by the number of keywords appearing in their
// content; ties are broken by document ID.
func (s *PgVectorStore) KeywordSearch(ctx context.Context, keywords []string, k int) ([]ragduel.DocumentSearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	if len(keywords) == 0 {
		return []ragduel.DocumentSearchResult{}, nil
	}

	cases := make([]string, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for i, kw := range keywords {
		cases[i] = fmt.Sprintf("(CASE WHEN content ILIKE $%d THEN 1 ELSE 0 END)", i+1)
		args = append(args, "%"+kw+"%")
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, score FROM (
			SELECT id, content, metadata, (%s)::float8 AS score
			FROM %s
		) hits
		WHERE score > 0
		ORDER BY score DESC, id
		LIMIT $%d`, strings.Join(cases, " + "), s.cfg.TableName, len(keywords)+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// Close releases the connection pool.
func (s *PgVectorStore) Close() {
	s.pool.Close()
}

func scanResults(rows pgx.Rows) ([]ragduel.DocumentSearchResult, error) {
	results := make([]ragduel.DocumentSearchResult, 0)
	for rows.Next() {
		var (
			doc      ragduel.Document
			metadata []byte
			score    float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", doc.ID, err)
			}
		}
		results = append(results, ragduel.DocumentSearchResult{Document: doc, Score: score})
	}
	return results, rows.Err()
}
