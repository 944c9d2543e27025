package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"pdfchat/internal/model"
)

type pgvectorConfig struct {
	DSN       string `json:"dsn"`
	Table     string `json:"table"`
	Dimension int    `json:"dimension"`
}

// pgvectorStore keeps chunks in a single pgvector-backed table, cosine
// distance ordering via the <=> operator.
type pgvectorStore struct {
	db        *sqlx.DB
	table     string
	dimension int
	ensure    sync.Once
	ensureErr error
}

func init() {
	Register("pgvector", createPgvectorStore)
}

func createPgvectorStore(args interface{}) (Store, error) {
	config := &pgvectorConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if config.Table == "" {
		config.Table = "document_chunks"
	}
	if config.Dimension <= 0 {
		config.Dimension = 768
	}
	db, err := sqlx.Connect("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &pgvectorStore{db: db, table: config.Table, dimension: config.Dimension}, nil
}

func (s *pgvectorStore) ensureSchema(ctx context.Context) error {
	s.ensure.Do(func() {
		stmts := []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				chunk_id    TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				filename    TEXT NOT NULL,
				upload_date TEXT NOT NULL,
				source      TEXT NOT NULL,
				content     TEXT NOT NULL,
				embedding   vector(%d) NOT NULL
			)`, s.table, s.dimension),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_idx ON %s (user_id)`, s.table, s.table),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.ensureErr = fmt.Errorf("ensure schema: %w", err)
				return
			}
		}
	})
	return s.ensureErr
}

func (s *pgvectorStore) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, user_id, filename, upload_date, source, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`, s.table)
	for _, chunk := range chunks {
		_, err := s.db.ExecContext(ctx, query,
			chunk.ChunkID,
			chunk.UserID,
			chunk.Filename,
			chunk.UploadDate,
			chunk.Source,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", chunk.ChunkID, err)
		}
	}
	return nil
}

func (s *pgvectorStore) Search(ctx context.Context, vector []float32, limit int, userID string) ([]*model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`
		SELECT chunk_id, user_id, filename, upload_date, source, content
		FROM %s
	`, s.table)
	args := []interface{}{pgvector.NewVector(vector), limit}
	if userID != "" {
		query += ` WHERE user_id = $3`
		args = append(args, userID)
	}
	query += ` ORDER BY embedding <=> $1 LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *pgvectorStore) Scroll(ctx context.Context, userID string, limit int) ([]*model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 1000
	}
	where := map[string]interface{}{
		"_limit": []uint{uint(limit)},
	}
	if userID != "" {
		where["user_id"] = userID
	}
	cols := []string{"chunk_id", "user_id", "filename", "upload_date", "source", "content"}
	sqlStr, args, err := builder.BuildSelect(s.table, where, cols)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(sqlStr), args...)
	if err != nil {
		return nil, fmt.Errorf("scroll chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *pgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	where := map[string]interface{}{
		"chunk_id in": ids,
	}
	sqlStr, args, err := builder.BuildDelete(s.table, where)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(sqlStr), args...)
	return err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanChunks(rows rowScanner) ([]*model.DocumentChunk, error) {
	var chunks []*model.DocumentChunk
	for rows.Next() {
		chunk := &model.DocumentChunk{}
		if err := rows.Scan(
			&chunk.ChunkID,
			&chunk.UserID,
			&chunk.Filename,
			&chunk.UploadDate,
			&chunk.Source,
			&chunk.Content,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
