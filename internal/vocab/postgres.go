package vocab

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/speakmate/speakmate/pkg/provider/embeddings"
)

// ddlVocab returns the vocabulary DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema
// creation time; changing models with a different dimension requires a
// manual schema change and a re-index.
func ddlVocab(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vocab_entries (
    word       TEXT       PRIMARY KEY,
    definition TEXT       NOT NULL,
    example    TEXT       NOT NULL,
    embedding  vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_vocab_entries_embedding
    ON vocab_entries USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// PostgresIndex is an Index and Indexer backed by a pgvector table with an
// HNSW index. Entries are embedded with the configured embeddings provider
// both at load time and at query time, so both sides of the search live in
// the same vector space.
//
// All methods are safe for concurrent use.
type PostgresIndex struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

var (
	_ Index   = (*PostgresIndex)(nil)
	_ Indexer = (*PostgresIndex)(nil)
)

// NewPostgresIndex connects to the database at dsn, registers pgvector
// types on every connection and runs the idempotent schema migration using
// the embedder's output dimension.
func NewPostgresIndex(ctx context.Context, dsn string, embedder embeddings.Provider) (*PostgresIndex, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vocab postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vocab postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vocab postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlVocab(embedder.Dimensions())); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vocab postgres: migrate: %w", err)
	}

	return &PostgresIndex{pool: pool, embedder: embedder}, nil
}

// Close releases all connections held by the underlying pool.
func (x *PostgresIndex) Close() {
	x.pool.Close()
}

// Ping checks database connectivity. Suitable as a readiness check.
func (x *PostgresIndex) Ping(ctx context.Context) error {
	return x.pool.Ping(ctx)
}

// Search implements Index. The query text is embedded and the topK nearest
// entries by cosine distance are returned, most similar first.
func (x *PostgresIndex) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}

	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vocab postgres: embed query: %w", err)
	}

	const q = `
		SELECT word, definition, example,
		       embedding <=> $1 AS distance
		FROM   vocab_entries
		ORDER  BY distance
		LIMIT  $2`

	rows, err := x.pool.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("vocab postgres: search: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.Word, &m.Definition, &m.Example, &m.Score)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("vocab postgres: scan rows: %w", err)
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}

// Add implements Indexer. Each entry's embedding input combines the word
// with its example sentence so usage context contributes to similarity.
func (x *PostgresIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	inputs := make([]string, len(entries))
	for i, e := range entries {
		inputs[i] = e.Word + ": " + e.Example
	}
	vecs, err := x.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return fmt.Errorf("vocab postgres: embed entries: %w", err)
	}
	if len(vecs) != len(entries) {
		return fmt.Errorf("vocab postgres: embed entries: got %d vectors for %d inputs", len(vecs), len(entries))
	}

	const q = `
		INSERT INTO vocab_entries (word, definition, example, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (word) DO UPDATE SET
		    definition = EXCLUDED.definition,
		    example    = EXCLUDED.example,
		    embedding  = EXCLUDED.embedding`

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("vocab postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, e := range entries {
		if _, err := tx.Exec(ctx, q, e.Word, e.Definition, e.Example, pgvector.NewVector(vecs[i])); err != nil {
			return fmt.Errorf("vocab postgres: upsert %q: %w", e.Word, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("vocab postgres: commit: %w", err)
	}
	return nil
}
