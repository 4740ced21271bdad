package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/freyabot/freya/internal/dedup"
	"github.com/freyabot/freya/internal/knowledge"
	"github.com/freyabot/freya/internal/log"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/rules"
)

// ============================================================================
// Mocks
// ============================================================================

type mockDelivery struct {
	replyErr    error
	pushErr     error
	replies     []string
	replyTokens []string
	pushes      []string
	pushTargets []string
}

func (m *mockDelivery) Reply(_ context.Context, replyToken, text string) error {
	m.replyTokens = append(m.replyTokens, replyToken)
	m.replies = append(m.replies, text)
	return m.replyErr
}

func (m *mockDelivery) Push(_ context.Context, to, text string) error {
	m.pushTargets = append(m.pushTargets, to)
	m.pushes = append(m.pushes, text)
	return m.pushErr
}

type mockProfiles struct {
	prof profile.Profile
	err  error
}

func (m *mockProfiles) Get(_ context.Context, userID string) (profile.Profile, error) {
	if m.err != nil {
		return profile.Unknown(userID), m.err
	}
	if m.prof.UserID == "" {
		return profile.Unknown(userID), nil
	}
	return m.prof, nil
}

type mockEnqueuer struct {
	err     error
	nextID  int64
	entries []string
}

func (m *mockEnqueuer) Enqueue(_ context.Context, userID, text, replyToken string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	m.entries = append(m.entries, text)
	return m.nextID, nil
}

type mockRetriever struct {
	general []knowledge.Record
	teacher []knowledge.Record
	calls   int
	panics  bool
}

func (m *mockRetriever) Retrieve(_ context.Context, query, teacherName string) ([]knowledge.Record, []knowledge.Record) {
	m.calls++
	if m.panics {
		panic("retriever exploded")
	}
	return m.general, m.teacher
}

func newHandler(guard Deduper, profiles ProfileGetter, q Enqueuer, d Deliverer) *Handler {
	return NewHandler(guard, rules.NewEngine(), profiles, q, d, log.NewNop())
}

// ============================================================================
// Tests
// ============================================================================

func TestHandler_DuplicateEventDropped(t *testing.T) {
	guard := dedup.New(10)
	q := &mockEnqueuer{}
	d := &mockDelivery{}
	h := newHandler(guard, &mockProfiles{}, q, d)

	ev := InboundEvent{EventID: "evt-1", SenderID: "U1", Text: "誰教資料庫", ReplyToken: "rt-1"}

	outcome, err := h.HandleEvent(context.Background(), ev)
	if err != nil || outcome != Acknowledged {
		t.Fatalf("first event: outcome=%v err=%v", outcome, err)
	}

	// Redelivery of the same event: no reply, no enqueue.
	outcome, err = h.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("duplicate event: %v", err)
	}
	if outcome != Dropped {
		t.Errorf("outcome = %v, want Dropped", outcome)
	}
	if len(d.replies) != 1 {
		t.Errorf("replies = %d, want 1 (no reply for duplicate)", len(d.replies))
	}
	if len(q.entries) != 1 {
		t.Errorf("enqueues = %d, want 1 (no enqueue for duplicate)", len(q.entries))
	}
}

func TestHandler_RuleMatchAnswersImmediately(t *testing.T) {
	q := &mockEnqueuer{}
	d := &mockDelivery{}
	h := newHandler(dedup.New(10), &mockProfiles{}, q, d)

	outcome, err := h.HandleEvent(context.Background(), InboundEvent{
		EventID: "evt-1", SenderID: "U1", Text: "圖書館", ReplyToken: "rt-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if outcome != Answered {
		t.Errorf("outcome = %v, want Answered", outcome)
	}
	if len(d.replies) != 1 || !strings.Contains(d.replies[0], "8:00-22:00") {
		t.Errorf("replies = %v, want library hours", d.replies)
	}
	if len(q.entries) != 0 {
		t.Errorf("enqueues = %d, want 0 (answered events are not queued)", len(q.entries))
	}
}

func TestHandler_NoRuleMatchAcknowledgesAndEnqueues(t *testing.T) {
	q := &mockEnqueuer{}
	d := &mockDelivery{}
	h := newHandler(dedup.New(10), &mockProfiles{}, q, d)

	outcome, err := h.HandleEvent(context.Background(), InboundEvent{
		EventID: "evt-1", SenderID: "U1", Text: "誰教資料庫", ReplyToken: "rt-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if outcome != Acknowledged {
		t.Errorf("outcome = %v, want Acknowledged", outcome)
	}
	if len(d.replies) != 1 || d.replies[0] != AckMessage {
		t.Errorf("replies = %v, want ack message", d.replies)
	}
	if len(q.entries) != 1 || q.entries[0] != "誰教資料庫" {
		t.Errorf("enqueued = %v, want the message text", q.entries)
	}
}

func TestHandler_EnqueueSucceedsDespiteAckFailure(t *testing.T) {
	q := &mockEnqueuer{}
	d := &mockDelivery{replyErr: errors.New("reply token expired")}
	h := newHandler(dedup.New(10), &mockProfiles{}, q, d)

	outcome, err := h.HandleEvent(context.Background(), InboundEvent{
		EventID: "evt-1", SenderID: "U1", Text: "誰教資料庫", ReplyToken: "rt-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if outcome != Acknowledged {
		t.Errorf("outcome = %v, want Acknowledged", outcome)
	}
	if len(q.entries) != 1 {
		t.Error("message not enqueued after ack failure; the queue is the durability boundary")
	}
}

func TestHandler_EnqueueFailureIsReturnedNotRetried(t *testing.T) {
	q := &mockEnqueuer{err: errors.New("connection refused")}
	d := &mockDelivery{}
	h := newHandler(dedup.New(10), &mockProfiles{}, q, d)

	_, err := h.HandleEvent(context.Background(), InboundEvent{
		EventID: "evt-1", SenderID: "U1", Text: "誰教資料庫", ReplyToken: "rt-1",
	})
	if err == nil {
		t.Fatal("expected error when enqueue fails")
	}
}

func TestHandler_ProfileFailureFallsBackToUnknown(t *testing.T) {
	d := &mockDelivery{}
	h := newHandler(dedup.New(10), &mockProfiles{err: errors.New("db down")}, &mockEnqueuer{}, d)

	// Greeting rule branches on role; unknown role yields 朋友.
	_, err := h.HandleEvent(context.Background(), InboundEvent{
		EventID: "evt-1", SenderID: "U1", Text: "你好", ReplyToken: "rt-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(d.replies) != 1 || !strings.Contains(d.replies[0], "朋友") {
		t.Errorf("replies = %v, want unknown-role honorific", d.replies)
	}
}
