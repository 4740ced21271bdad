// Package history records answered exchanges for audit.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freyabot/freya/internal/log"
)

// Recorder appends question/answer pairs to the chat history table.
// Recording is best effort: callers log failures and move on, a missing
// history row never blocks a reply.
type Recorder struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewRecorder creates a Recorder backed by the given pool.
func NewRecorder(pool *pgxpool.Pool, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Recorder{pool: pool, logger: logger}
}

// Record stores one exchange. usedTeacherKnowledge marks replies built
// from the teacher knowledge collection.
func (r *Recorder) Record(ctx context.Context, userID, question, answer string, usedTeacherKnowledge bool) error {
	const stmt = `
		INSERT INTO line_chat_history (line_user_id, user_message, bot_response, is_teacher_knowledge)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.pool.Exec(ctx, stmt, userID, question, answer, usedTeacherKnowledge); err != nil {
		return fmt.Errorf("recording chat history for %q: %w", userID, err)
	}
	return nil
}
