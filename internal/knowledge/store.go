// Package knowledge queries the vector-indexed knowledge collections.
//
// Two collections exist: general campus knowledge and per-teacher
// knowledge. Both hold text plus a precomputed embedding; rows are written
// by an external ingestion pipeline and treated as read-only here.
// Similarity is cosine, computed by pgvector as 1 - (embedding <=> query).
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/freyabot/freya/internal/log"
)

// Store performs vector similarity search against PostgreSQL + pgvector.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// SearchGeneral returns the general-knowledge records most similar to the
// query vector, ordered by descending similarity. Ties keep insertion
// order (stable by id).
func (s *Store) SearchGeneral(ctx context.Context, queryVec []float32, opts ...SearchOption) ([]Record, error) {
	cfg := buildSearchConfig(opts)
	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	const q = `
		SELECT id, title, content, COALESCE(category, ''), metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM general_knowledge
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := s.pool.Query(queryCtx, q, pgvector.NewVector(queryVec), cfg.topK)
	if err != nil {
		return nil, fmt.Errorf("searching general knowledge: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

// SearchTeacher returns teacher-knowledge records most similar to the
// query vector. A non-empty teacherName restricts the candidate set before
// ranking, so topK applies within that teacher's records.
func (s *Store) SearchTeacher(ctx context.Context, queryVec []float32, teacherName string, opts ...SearchOption) ([]Record, error) {
	cfg := buildSearchConfig(opts)
	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	const all = `
		SELECT id, teacher_name, content, COALESCE(category, ''), metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM teacher_knowledge
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	const filtered = `
		SELECT id, teacher_name, content, COALESCE(category, ''), metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM teacher_knowledge
		WHERE teacher_name = $3
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	var (
		rows pgx.Rows
		err  error
	)
	if teacherName == "" {
		rows, err = s.pool.Query(queryCtx, all, pgvector.NewVector(queryVec), cfg.topK)
	} else {
		rows, err = s.pool.Query(queryCtx, filtered, pgvector.NewVector(queryVec), cfg.topK, teacherName)
	}
	if err != nil {
		return nil, fmt.Errorf("searching teacher knowledge: %w", err)
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

func (s *Store) scanRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec      Record
			metadata []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Category, &metadata, &rec.CreatedAt, &rec.Similarity); err != nil {
			return nil, fmt.Errorf("scanning knowledge record: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				s.logger.Warn("failed to parse record metadata", "record_id", rec.ID, "error", err)
				rec.Metadata = map[string]string{}
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading knowledge records: %w", err)
	}
	return records, nil
}
