// Package retrieval ranks knowledge records against a user query.
//
// The ranker embeds the query once, asks both knowledge collections for
// their top candidates, and enforces the similarity floor uniformly. Any
// embedder or store failure degrades to an empty result: retrieval never
// surfaces an error to the message pipeline, only "no knowledge found".
package retrieval

import (
	"context"
	"time"

	"github.com/freyabot/freya/internal/embed"
	"github.com/freyabot/freya/internal/knowledge"
	"github.com/freyabot/freya/internal/log"
)

// Searcher is the slice of the knowledge store the ranker depends on.
type Searcher interface {
	SearchGeneral(ctx context.Context, queryVec []float32, opts ...knowledge.SearchOption) ([]knowledge.Record, error)
	SearchTeacher(ctx context.Context, queryVec []float32, teacherName string, opts ...knowledge.SearchOption) ([]knowledge.Record, error)
}

// Config bounds a retrieval pass.
type Config struct {
	// TopK caps results per collection. Default 3.
	TopK int32

	// Floor is the minimum cosine similarity for a record to count as
	// relevant. Applied to both collections.
	Floor float32

	// Timeout bounds the whole pass (embedding plus both searches).
	// Default 10s.
	Timeout time.Duration
}

// Ranker performs similarity-ranked retrieval over both knowledge
// collections.
type Ranker struct {
	embedder embed.Embedder
	store    Searcher
	cfg      Config
	logger   log.Logger
}

// NewRanker creates a Ranker.
func NewRanker(embedder embed.Embedder, store Searcher, cfg Config, logger log.Logger) *Ranker {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ranker{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Retrieve returns the relevant general and teacher records for the query,
// each ordered by descending similarity, truncated to TopK, with records
// below the floor dropped. A non-empty teacherName restricts the teacher
// collection to that teacher before ranking.
//
// Retrieve never fails: a timeout or an unavailable dependency yields
// empty slices and a log entry.
func (r *Ranker) Retrieve(ctx context.Context, query, teacherName string) (general, teacher []knowledge.Record) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, retrieval degraded to empty", "error", err)
		return nil, nil
	}

	general, err = r.store.SearchGeneral(ctx, queryVec, knowledge.WithTopK(r.cfg.TopK))
	if err != nil {
		r.logger.Warn("general knowledge search failed", "error", err)
		general = nil
	}

	teacher, err = r.store.SearchTeacher(ctx, queryVec, teacherName, knowledge.WithTopK(r.cfg.TopK))
	if err != nil {
		r.logger.Warn("teacher knowledge search failed", "error", err)
		teacher = nil
	}

	return applyFloor(general, r.cfg.Floor), applyFloor(teacher, r.cfg.Floor)
}

// applyFloor drops records below the similarity floor. Input is already
// sorted by descending similarity, so relative order is preserved.
func applyFloor(records []knowledge.Record, floor float32) []knowledge.Record {
	if len(records) == 0 {
		return nil
	}
	kept := records[:0:len(records)]
	for _, rec := range records {
		if rec.Similarity >= floor {
			kept = append(kept, rec)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
