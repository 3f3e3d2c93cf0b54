package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists chunks in a SQLite database.
//
// Similarity search is brute force: candidate rows are filtered by user
// and document in SQL, then scored in memory. That is adequate for the
// per-user corpus sizes this store is built for.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	document_id TEXT NOT NULL,
	content     TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id, document_id);
`

// NewSQLiteStore opens (or creates) a chunk store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Add implements Store.
func (s *SQLiteStore) Add(ctx context.Context, chunks []Chunk) error {
	if s.closed.Load() {
		return errStoreClosed("add")
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, user_id, document_id, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.UserID, c.DocumentID, c.Content,
			encodeVector(c.Embedding), c.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search implements Store.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, userID, documentID string, topK int, threshold float64) ([]ScoredChunk, error) {
	if s.closed.Load() {
		return nil, errStoreClosed("search")
	}

	query := `SELECT id, user_id, document_id, content, embedding, created_at
	          FROM chunks WHERE user_id = ?`
	args := []any{userID}
	if documentID != "" {
		query += " AND document_id = ?"
		args = append(args, documentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var candidates []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.DocumentID, &c.Content, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		c.Embedding = vec
		c.CreatedAt = time.Unix(0, createdAt)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	return rankChunks(candidates, embedding, topK, threshold), nil
}

// DeleteDocument implements Store.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	if s.closed.Load() {
		return errStoreClosed("delete")
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE user_id = ? AND document_id = ?",
		userID, documentID,
	); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
