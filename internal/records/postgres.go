package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps document records in a Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects with connString and pings the server.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			page_count INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			character_count INTEGER NOT NULL DEFAULT 0,
			file_size_bytes BIGINT NOT NULL DEFAULT 0,
			uploaded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS documents_user_id_idx ON documents (user_id, uploaded_at DESC);`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, filename, title, author, page_count, chunk_count,
			character_count, file_size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.OwnerID, r.Filename, r.Title, r.Author, r.PageCount, r.ChunkCount,
		r.CharacterCount, r.FileSizeBytes, r.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document record: %w", err)
	}
	return nil
}

const selectRecord = `SELECT id, user_id, filename, title, author, page_count, chunk_count,
	character_count, file_size_bytes, uploaded_at FROM documents`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.OwnerID, &r.Filename, &r.Title, &r.Author, &r.PageCount,
		&r.ChunkCount, &r.CharacterCount, &r.FileSizeBytes, &r.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, id string) (*Record, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, selectRecord+` WHERE id = $1 AND user_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, selectRecord+` WHERE user_id = $1 ORDER BY uploaded_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
