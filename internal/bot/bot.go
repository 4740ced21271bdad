// Package bot orchestrates the message pipeline.
//
// Two entry points share this package: Handler serves the synchronous
// webhook path (dedup, immediate reply or acknowledgment, enqueue) and
// Processor drains the pending queue asynchronously. They share no
// in-process state; coordination happens through the durable queue.
package bot

import (
	"context"
	"time"

	"github.com/freyabot/freya/internal/knowledge"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/queue"
)

// InboundEvent is one user message delivered by the platform webhook,
// normalized away from the wire format.
type InboundEvent struct {
	EventID    string
	SenderID   string
	Text       string
	ReplyToken string
	ReceivedAt time.Time
}

// Outcome is the lifecycle state an inbound event reached in the webhook
// path. The state, not the reply text, decides whether a message is
// queued for deferred processing.
type Outcome int

const (
	// Dropped means the event was a duplicate and produced no reply.
	Dropped Outcome = iota

	// Answered means a rule answered immediately; nothing was queued.
	Answered

	// Acknowledged means the user got a holding reply and the message
	// was queued for a deferred answer.
	Acknowledged
)

// Deliverer sends messages to the platform. Both operations are fire and
// forget for the pipeline: failures are logged by the caller and never
// retried inline.
type Deliverer interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// ProfileGetter looks up the sender's profile.
type ProfileGetter interface {
	Get(ctx context.Context, userID string) (profile.Profile, error)
}

// Enqueuer stores a message for deferred processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, userID, text, replyToken string) (int64, error)
}

// Deduper suppresses redelivered events.
type Deduper interface {
	Seen(eventID string) bool
	Mark(eventID string)
}

// RuleMatcher is the deterministic first-pass responder.
type RuleMatcher interface {
	Match(text string, p profile.Profile) (string, bool)
}

// Retriever ranks knowledge records for a query. Implementations degrade
// to empty results on failure rather than returning an error.
type Retriever interface {
	Retrieve(ctx context.Context, query, teacherName string) (general, teacher []knowledge.Record)
}

// BatchQueue is the processor's view of the pending-message queue.
type BatchQueue interface {
	ClaimBatch(ctx context.Context, maxAge time.Duration, limit int32) ([]queue.PendingMessage, error)
	MarkProcessed(ctx context.Context, id int64) error
	CountAbandoned(ctx context.Context, maxAge time.Duration) (int64, error)
}

// HistoryRecorder archives answered exchanges.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, question, answer string, usedTeacherKnowledge bool) error
}
