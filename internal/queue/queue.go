// Package queue is the durable pending-message queue.
//
// Enqueued messages are the durability boundary of the inbound pipeline:
// once a row is written the webhook can acknowledge, and a batch run picks
// the message up later. Rows are never deleted; processing only flips the
// processed flag, leaving an audit trail. Messages that outlive the
// staleness window without being processed are abandoned, not retried.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freyabot/freya/internal/log"
)

// PendingMessage is one queued inbound message.
type PendingMessage struct {
	ID         int64
	UserID     string
	Text       string
	ReplyToken string
	ReceivedAt time.Time
	Processed  bool
}

// Queue stores pending messages in PostgreSQL. Mutations are single-row
// statements, so concurrent webhook handlers and overlapping batch runs
// need no extra locking; two batch runs claiming the same rows is an
// accepted duplicate-send risk, not a correctness problem.
type Queue struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Queue backed by the given pool.
func New(pool *pgxpool.Pool, logger log.Logger) *Queue {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Queue{pool: pool, logger: logger}
}

// Enqueue stores an inbound message for asynchronous processing and
// returns its id. An empty replyToken is stored as NULL.
func (q *Queue) Enqueue(ctx context.Context, userID, text, replyToken string) (int64, error) {
	const stmt = `
		INSERT INTO pending_messages (line_user_id, user_message, reply_token)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id`

	var id int64
	if err := q.pool.QueryRow(ctx, stmt, userID, text, replyToken).Scan(&id); err != nil {
		return 0, fmt.Errorf("enqueuing message for %q: %w", userID, err)
	}

	q.logger.Info("pending message stored", "id", id, "user_id", userID)
	return id, nil
}

// ClaimBatch returns up to limit unprocessed messages received within
// maxAge, oldest first. Older unprocessed messages are excluded to bound
// staleness; they stay unprocessed forever (abandoned).
func (q *Queue) ClaimBatch(ctx context.Context, maxAge time.Duration, limit int32) ([]PendingMessage, error) {
	const stmt = `
		SELECT id, line_user_id, user_message, COALESCE(reply_token, ''), received_at, processed
		FROM pending_messages
		WHERE processed = FALSE
		  AND received_at > now() - make_interval(secs => $1)
		ORDER BY received_at ASC, id ASC
		LIMIT $2`

	rows, err := q.pool.Query(ctx, stmt, maxAge.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("claiming pending messages: %w", err)
	}
	defer rows.Close()

	var batch []PendingMessage
	for rows.Next() {
		var m PendingMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Text, &m.ReplyToken, &m.ReceivedAt, &m.Processed); err != nil {
			return nil, fmt.Errorf("scanning pending message: %w", err)
		}
		batch = append(batch, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pending messages: %w", err)
	}
	return batch, nil
}

// MarkProcessed flips the processed flag for one message. Idempotent.
func (q *Queue) MarkProcessed(ctx context.Context, id int64) error {
	const stmt = `UPDATE pending_messages SET processed = TRUE WHERE id = $1`

	if _, err := q.pool.Exec(ctx, stmt, id); err != nil {
		return fmt.Errorf("marking message %d processed: %w", id, err)
	}
	return nil
}

// CountAbandoned counts unprocessed messages older than maxAge. These will
// never be claimed again; the batch processor reports them so operators
// can alert on growth.
func (q *Queue) CountAbandoned(ctx context.Context, maxAge time.Duration) (int64, error) {
	const stmt = `
		SELECT COUNT(*)
		FROM pending_messages
		WHERE processed = FALSE
		  AND received_at <= now() - make_interval(secs => $1)`

	var n int64
	if err := q.pool.QueryRow(ctx, stmt, maxAge.Seconds()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting abandoned messages: %w", err)
	}
	return n, nil
}
