package bot

import (
	"context"
	"time"

	"github.com/freyabot/freya/internal/compose"
	"github.com/freyabot/freya/internal/log"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/queue"
)

// ProcessorConfig bounds one batch run.
type ProcessorConfig struct {
	// MaxAge excludes pending messages older than this from claiming.
	// Default 10 minutes.
	MaxAge time.Duration

	// BatchLimit caps messages per run. Default 20.
	BatchLimit int32
}

// Processor drains the pending-message queue. It is triggered externally
// (cron or similar); each run claims a batch, generates a reply per
// message, pushes it, and marks the message processed.
//
// Processing is fail-open per message: generation or delivery failure is
// logged and the message is still marked processed, so one poisoned
// message can never block the batch. A crash mid-run leaves unmarked
// messages pending for the next run (at-least-once; duplicate replies are
// an accepted trade-off). Overlapping runs are safe: marking is a
// single-row update.
type Processor struct {
	queue     BatchQueue
	profiles  ProfileGetter
	rules     RuleMatcher
	retriever Retriever
	composer  compose.Composer
	delivery  Deliverer
	history   HistoryRecorder
	cfg       ProcessorConfig
	logger    log.Logger
}

// NewProcessor wires the batch path.
func NewProcessor(q BatchQueue, profiles ProfileGetter, rules RuleMatcher, retriever Retriever, delivery Deliverer, history HistoryRecorder, cfg ProcessorConfig, logger log.Logger) *Processor {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 20
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Processor{
		queue:     q,
		profiles:  profiles,
		rules:     rules,
		retriever: retriever,
		delivery:  delivery,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one batch pass and returns the number of messages marked
// processed. Only a failure to claim the batch is an error; per-message
// failures are absorbed by the fail-open policy.
func (p *Processor) Run(ctx context.Context) (int, error) {
	batch, err := p.queue.ClaimBatch(ctx, p.cfg.MaxAge, p.cfg.BatchLimit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, msg := range batch {
		answer, usedTeacher := p.respondSafe(ctx, msg)

		if err := p.delivery.Push(ctx, msg.UserID, answer); err != nil {
			// Fail open: accepted loss over retry storms.
			p.logger.Error("delivery failed, marking processed anyway",
				"message_id", msg.ID, "user_id", msg.UserID, "error", err)
		}

		if err := p.queue.MarkProcessed(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message processed",
				"message_id", msg.ID, "error", err)
			continue
		}
		processed++

		if p.history != nil {
			if err := p.history.Record(ctx, msg.UserID, msg.Text, answer, usedTeacher); err != nil {
				p.logger.Warn("failed to record chat history", "message_id", msg.ID, "error", err)
			}
		}
	}

	if abandoned, err := p.queue.CountAbandoned(ctx, p.cfg.MaxAge); err == nil && abandoned > 0 {
		p.logger.Warn("pending messages abandoned past staleness window", "count", abandoned)
	}

	p.logger.Info("batch run complete", "claimed", len(batch), "processed", processed)
	return processed, nil
}

// respondSafe contains panics from response generation. The message still
// gets the fixed fallback and is marked processed by the caller, keeping a
// poisoned message from wedging the queue.
func (p *Processor) respondSafe(ctx context.Context, msg queue.PendingMessage) (answer string, usedTeacher bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("response generation panicked",
				"message_id", msg.ID, "user_id", msg.UserID, "panic", r)
			answer = compose.Fallback
			usedTeacher = false
		}
	}()
	return p.respond(ctx, msg)
}

// respond generates the reply for one message: rules first, then
// retrieval, then the fixed fallback. It never fails; every path yields
// valid reply text.
func (p *Processor) respond(ctx context.Context, msg queue.PendingMessage) (answer string, usedTeacher bool) {
	prof, err := p.profiles.Get(ctx, msg.UserID)
	if err != nil {
		p.logger.Warn("profile lookup failed, using unknown role", "user_id", msg.UserID, "error", err)
		prof = profile.Unknown(msg.UserID)
	}

	if canned, ok := p.rules.Match(msg.Text, prof); ok {
		return p.composer.Compose(msg.Text, canned, nil, nil), false
	}

	// Students with an assigned teacher only see that teacher's records.
	teacherFilter := ""
	if prof.Role == profile.RoleStudent {
		teacherFilter = prof.TeacherID
	}

	general, teacher := p.retriever.Retrieve(ctx, msg.Text, teacherFilter)
	return p.composer.Compose(msg.Text, "", general, teacher), len(teacher) > 0
}
