package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlThreads = `
CREATE TABLE IF NOT EXISTS thread_messages (
    id         BIGSERIAL    PRIMARY KEY,
    thread_id  TEXT         NOT NULL,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_thread_messages_thread
    ON thread_messages (thread_id, id);

CREATE TABLE IF NOT EXISTS thread_corrections (
    id          BIGSERIAL    PRIMARY KEY,
    thread_id   TEXT         NOT NULL,
    original    TEXT         NOT NULL,
    corrected   TEXT         NOT NULL,
    issues      TEXT[]       NOT NULL DEFAULT '{}',
    explanation TEXT         NOT NULL DEFAULT '',
    message_id  TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_thread_corrections_thread
    ON thread_corrections (thread_id, id);
`

// PostgresStore is a Store backed by two append-only PostgreSQL tables.
// The serial id column preserves insertion order within a thread.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore establishes a connection pool to the database at dsn and
// runs the idempotent schema migration.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlThreads); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session postgres: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromPool wraps an existing pool. The schema must already
// exist; no migration is run.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks database connectivity. Suitable as a readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, threadID string) (*ThreadState, error) {
	const qMsgs = `
		SELECT role, content
		FROM   thread_messages
		WHERE  thread_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, qMsgs, threadID)
	if err != nil {
		return nil, fmt.Errorf("session postgres: query messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.Role, &m.Content)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("session postgres: scan messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}

	const qCorrs = `
		SELECT original, corrected, issues, explanation, message_id
		FROM   thread_corrections
		WHERE  thread_id = $1
		ORDER  BY id`

	rows, err = s.pool.Query(ctx, qCorrs, threadID)
	if err != nil {
		return nil, fmt.Errorf("session postgres: query corrections: %w", err)
	}
	corrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Correction, error) {
		var c Correction
		err := row.Scan(&c.Original, &c.Corrected, &c.Issues, &c.Explanation, &c.MessageID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("session postgres: scan corrections: %w", err)
	}

	return &ThreadState{ThreadID: threadID, Messages: msgs, Corrections: corrs}, nil
}

// Append implements Store. All inserts for one call happen in a single
// transaction so a turn's commit is all-or-nothing.
func (s *PostgresStore) Append(ctx context.Context, threadID string, msgs []Message, corrs []Correction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insMsg = `
		INSERT INTO thread_messages (thread_id, role, content)
		VALUES ($1, $2, $3)`

	for _, m := range msgs {
		if _, err := tx.Exec(ctx, insMsg, threadID, m.Role, m.Content); err != nil {
			return fmt.Errorf("session postgres: insert message: %w", err)
		}
	}

	const insCorr = `
		INSERT INTO thread_corrections (thread_id, original, corrected, issues, explanation, message_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, c := range corrs {
		issues := c.Issues
		if issues == nil {
			issues = []string{}
		}
		if _, err := tx.Exec(ctx, insCorr, threadID, c.Original, c.Corrected, issues, c.Explanation, c.MessageID); err != nil {
			return fmt.Errorf("session postgres: insert correction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session postgres: commit: %w", err)
	}
	return nil
}
