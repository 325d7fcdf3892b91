package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorConfig configures the Postgres/pgvector adapter.
type PGVectorConfig struct {
	ConnString string
	Table      string
	Dimension  int
	BatchSize  int
}

// PGVectorStore keeps vectors in a Postgres table with a pgvector column.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	table     string // sanitized identifier
	rawTable  string
	dimension int
	batchSize int
}

// NewPGVectorStore connects to Postgres and pings it.
func NewPGVectorStore(ctx context.Context, cfg PGVectorConfig) (*PGVectorStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("pgvector table name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector dimension must be positive, got %d", cfg.Dimension)
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PGVectorStore{
		pool:      pool,
		table:     pgx.Identifier{cfg.Table}.Sanitize(),
		rawTable:  cfg.Table,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	return s, nil
}

// EnsureSchema creates the vector extension, table and indexes when missing,
// and checks that an existing table has the configured dimension.
func (s *PGVectorStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			filename TEXT,
			title TEXT,
			author TEXT,
			length INTEGER,
			start_char INTEGER,
			end_char INTEGER,
			embedding vector(%d) NOT NULL
		)`, s.table, s.dimension)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	dim, err := s.existingDimension(ctx)
	if err != nil {
		return err
	}
	if err := checkDimension("table "+s.rawTable, dim, s.dimension); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (owner_id, document_id)`,
			pgx.Identifier{s.rawTable + "_owner_idx"}.Sanitize(), s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{s.rawTable + "_embedding_idx"}.Sanitize(), s.table),
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// existingDimension reads the declared vector(n) size of the embedding column.
func (s *PGVectorStore) existingDimension(ctx context.Context) (int, error) {
	var typmod int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::text::regclass AND attname = 'embedding'`, s.table).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: table %s has no embedding column", ErrCollectionNotFound, s.rawTable)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	return typmod, nil
}

func (s *PGVectorStore) Upsert(ctx context.Context, vectors []EmbeddedVector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := validateVectors(vectors, s.dimension); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, document_id, chunk_id, text, filename, title, author,
			length, start_char, end_char, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			document_id = EXCLUDED.document_id,
			chunk_id = EXCLUDED.chunk_id,
			text = EXCLUDED.text,
			filename = EXCLUDED.filename,
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			length = EXCLUDED.length,
			start_char = EXCLUDED.start_char,
			end_char = EXCLUDED.end_char,
			embedding = EXCLUDED.embedding`, s.table)

	for _, r := range batches(len(vectors), s.batchSize) {
		b := &pgx.Batch{}
		for _, v := range vectors[r[0]:r[1]] {
			m := v.Metadata
			b.Queue(stmt, v.ID, m.OwnerID, m.DocumentID, m.ChunkID, m.Text, m.Filename, m.Title, m.Author,
				m.Length, m.StartChar, m.EndChar, pgvector.NewVector(v.Values))
		}
		if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", r[0], r[1], err)
		}
	}
	return nil
}

const pgColumns = `id, owner_id, document_id, chunk_id, text, filename, title, author, length, start_char, end_char`

// whereClause returns the filter predicate with placeholders starting at $first.
func whereClause(f Filter, first int) (string, []any) {
	if f.DocumentID == "" {
		return fmt.Sprintf("owner_id = $%d", first), []any{f.OwnerID}
	}
	return fmt.Sprintf("owner_id = $%d AND document_id = $%d", first, first+1), []any{f.OwnerID, f.DocumentID}
}

func (s *PGVectorStore) Query(ctx context.Context, values []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if err := checkDimension("query", len(values), s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	where, args := whereClause(filter, 3)
	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $2`, pgColumns, s.table, where)

	rows, err := s.pool.Query(ctx, query, append([]any{pgvector.NewVector(values), topK}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		md := &m.Metadata
		if err := rows.Scan(&m.ID, &md.OwnerID, &md.DocumentID, &md.ChunkID, &md.Text, &md.Filename,
			&md.Title, &md.Author, &md.Length, &md.StartChar, &md.EndChar, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

func (s *PGVectorStore) Delete(ctx context.Context, filter Filter) error {
	if err := filter.validateDelete(); err != nil {
		return err
	}
	where, args := whereClause(filter, 1)
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.table, where), args...); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (s *PGVectorStore) List(ctx context.Context, filter Filter) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	where, args := whereClause(filter, 1)
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s", pgColumns, s.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		md := &m.Metadata
		if err := rows.Scan(&m.ID, &md.OwnerID, &md.DocumentID, &md.ChunkID, &md.Text, &md.Filename,
			&md.Title, &md.Author, &md.Length, &md.StartChar, &md.EndChar); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

// Stats counts rows. pgvector has no capacity ceiling, so fullness is 0.
func (s *PGVectorStore) Stats(ctx context.Context) (*Stats, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	return &Stats{TotalVectors: uint64(n), Dimension: s.dimension}, nil
}

func (s *PGVectorStore) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}
