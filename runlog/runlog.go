// Package runlog persists batch comparison results to SQLite, so runs can be
// inspected and aggregated after the fact.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/ragduel"
)

// Store is a SQLite-backed log of comparison records. Answers and verdicts
// are stored as JSON columns; the scalar columns cover what queries filter
// on.
type Store struct {
	db        *sql.DB
	tableName string
}

// Options configures the store.
type Options struct {
	// Path is the database file; ":memory:" keeps the log in memory.
	Path string
	// TableName defaults to "comparisons".
	TableName string
}

// NewStore opens (or creates) the log database.
func NewStore(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "comparisons"
	}

	s := &Store{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			question TEXT NOT NULL,
			winner TEXT,
			failed INTEGER NOT NULL,
			failure_reason TEXT,
			retrieval TEXT,
			structured TEXT,
			verdict TEXT,
			elapsed_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores one record under a run ID.
func (s *Store) Save(ctx context.Context, runID string, record *ragduel.ComparisonRecord) error {
	retrievalJSON, err := marshalNullable(record.Retrieval)
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval answer: %w", err)
	}
	structuredJSON, err := marshalNullable(record.Structured)
	if err != nil {
		return fmt.Errorf("failed to marshal structured answer: %w", err)
	}
	verdictJSON, err := marshalNullable(record.Verdict)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	var winner sql.NullString
	if record.Verdict != nil {
		winner = sql.NullString{String: string(record.Verdict.Winner), Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, question, winner, failed, failure_reason,
			retrieval, structured, verdict, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			question = excluded.question,
			winner = excluded.winner,
			failed = excluded.failed,
			failure_reason = excluded.failure_reason,
			retrieval = excluded.retrieval,
			structured = excluded.structured,
			verdict = excluded.verdict,
			elapsed_ms = excluded.elapsed_ms,
			created_at = excluded.created_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		runID,
		record.Question,
		winner,
		record.Failed,
		record.FailureReason,
		retrievalJSON,
		structuredJSON,
		verdictJSON,
		record.Elapsed.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// SaveAll stores a batch of records under one run ID in a transaction.
func (s *Store) SaveAll(ctx context.Context, runID string, records []*ragduel.ComparisonRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if err := s.saveTx(ctx, tx, runID, record); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) saveTx(ctx context.Context, tx *sql.Tx, runID string, record *ragduel.ComparisonRecord) error {
	// Reuse Save's statement through the transaction.
	stmt := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, run_id, question, winner, failed, failure_reason,
			retrieval, structured, verdict, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	retrievalJSON, err := marshalNullable(record.Retrieval)
	if err != nil {
		return err
	}
	structuredJSON, err := marshalNullable(record.Structured)
	if err != nil {
		return err
	}
	verdictJSON, err := marshalNullable(record.Verdict)
	if err != nil {
		return err
	}
	var winner sql.NullString
	if record.Verdict != nil {
		winner = sql.NullString{String: string(record.Verdict.Winner), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, stmt,
		record.ID, runID, record.Question, winner, record.Failed, record.FailureReason,
		retrievalJSON, structuredJSON, verdictJSON,
		record.Elapsed.Milliseconds(), record.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ID, err)
	}
	return nil
}

// List returns the records of a run in insertion order.
func (s *Store) List(ctx context.Context, runID string) ([]*ragduel.ComparisonRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, question, failed, failure_reason, retrieval, structured, verdict, elapsed_ms, created_at
		FROM %s
		WHERE run_id = ?
		ORDER BY created_at, id
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*ragduel.ComparisonRecord
	for rows.Next() {
		var (
			record         ragduel.ComparisonRecord
			retrievalJSON  sql.NullString
			structuredJSON sql.NullString
			verdictJSON    sql.NullString
			elapsedMS      int64
			failed         int
			failureReason  sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.Question, &failed, &failureReason,
			&retrievalJSON, &structuredJSON, &verdictJSON, &elapsedMS, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		record.Failed = failed != 0
		record.FailureReason = failureReason.String
		record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if err := unmarshalNullable(retrievalJSON, &record.Retrieval); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(structuredJSON, &record.Structured); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(verdictJSON, &record.Verdict); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Runs returns the distinct run IDs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT run_id FROM %s GROUP BY run_id ORDER BY MAX(created_at) DESC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run ID: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

func marshalNullable(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case *ragduel.Answer:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *ragduel.Verdict:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable[T any](src sql.NullString, dst **T) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	value := new(T)
	if err := json.Unmarshal([]byte(src.String), value); err != nil {
		return fmt.Errorf("failed to decode stored record field: %w", err)
	}
	*dst = value
	return nil
}
