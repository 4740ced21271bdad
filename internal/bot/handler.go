package bot

import (
	"context"
	"fmt"

	"github.com/freyabot/freya/internal/log"
	"github.com/freyabot/freya/internal/profile"
)

// AckMessage is the holding reply sent when a message needs deferred
// processing. The real answer arrives later via push.
const AckMessage = "⏳ 已收到您的訊息，正在為您處理中..."

// Handler processes inbound webhook events synchronously. It must return
// well within the platform's webhook timeout, so it never touches the
// embedding provider or the knowledge stores: either a rule answers
// immediately, or the message is acknowledged and queued.
type Handler struct {
	guard    Deduper
	rules    RuleMatcher
	profiles ProfileGetter
	queue    Enqueuer
	delivery Deliverer
	logger   log.Logger
}

// NewHandler wires the webhook path.
func NewHandler(guard Deduper, rules RuleMatcher, profiles ProfileGetter, q Enqueuer, delivery Deliverer, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{
		guard:    guard,
		rules:    rules,
		profiles: profiles,
		queue:    q,
		delivery: delivery,
		logger:   logger,
	}
}

// HandleEvent runs one inbound event through dedup, rules, and enqueue.
//
// The returned Outcome reflects the lifecycle state reached. An error is
// returned only when the durable enqueue failed — the event is then lost
// and the caller should log it; there is no inline retry.
func (h *Handler) HandleEvent(ctx context.Context, ev InboundEvent) (Outcome, error) {
	if ev.EventID != "" {
		if h.guard.Seen(ev.EventID) {
			h.logger.Debug("duplicate event dropped", "event_id", ev.EventID)
			return Dropped, nil
		}
		h.guard.Mark(ev.EventID)
	}

	h.logger.Info("inbound message", "user_id", ev.SenderID, "event_id", ev.EventID)

	prof, err := h.profiles.Get(ctx, ev.SenderID)
	if err != nil {
		h.logger.Warn("profile lookup failed, using unknown role", "user_id", ev.SenderID, "error", err)
		prof = profile.Unknown(ev.SenderID)
	}

	if answer, ok := h.rules.Match(ev.Text, prof); ok {
		if err := h.delivery.Reply(ctx, ev.ReplyToken, answer); err != nil {
			h.logger.Error("rule reply delivery failed", "user_id", ev.SenderID, "error", err)
		}
		return Answered, nil
	}

	// Acknowledge first so the short-lived reply token is not wasted,
	// then persist. The enqueue must happen regardless of whether the
	// acknowledgment went through: the queue is the durability boundary.
	if err := h.delivery.Reply(ctx, ev.ReplyToken, AckMessage); err != nil {
		h.logger.Error("acknowledgment delivery failed", "user_id", ev.SenderID, "error", err)
	}

	if _, err := h.queue.Enqueue(ctx, ev.SenderID, ev.Text, ev.ReplyToken); err != nil {
		h.logger.Error("enqueue failed, message lost", "user_id", ev.SenderID, "error", err)
		return Acknowledged, fmt.Errorf("enqueuing message: %w", err)
	}

	return Acknowledged, nil
}
