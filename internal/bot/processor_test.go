package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/freyabot/freya/internal/compose"
	"github.com/freyabot/freya/internal/knowledge"
	"github.com/freyabot/freya/internal/log"
	"github.com/freyabot/freya/internal/profile"
	"github.com/freyabot/freya/internal/queue"
	"github.com/freyabot/freya/internal/rules"
)

type mockBatchQueue struct {
	batch     []queue.PendingMessage
	claimErr  error
	markErr   error
	abandoned int64

	marked      []int64
	claimMaxAge time.Duration
	claimLimit  int32
}

func (m *mockBatchQueue) ClaimBatch(_ context.Context, maxAge time.Duration, limit int32) ([]queue.PendingMessage, error) {
	m.claimMaxAge = maxAge
	m.claimLimit = limit
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	// Simulate the selection query: processed rows are never returned.
	var out []queue.PendingMessage
	for _, msg := range m.batch {
		if !msg.Processed {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockBatchQueue) MarkProcessed(_ context.Context, id int64) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, id)
	for i := range m.batch {
		if m.batch[i].ID == id {
			m.batch[i].Processed = true
		}
	}
	return nil
}

func (m *mockBatchQueue) CountAbandoned(_ context.Context, _ time.Duration) (int64, error) {
	return m.abandoned, nil
}

type mockHistory struct {
	records []string
	teacher []bool
	err     error
}

func (m *mockHistory) Record(_ context.Context, _, question, _ string, usedTeacher bool) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, question)
	m.teacher = append(m.teacher, usedTeacher)
	return nil
}

func pending(id int64, user, text string) queue.PendingMessage {
	return queue.PendingMessage{ID: id, UserID: user, Text: text, ReceivedAt: time.Now()}
}

func newProcessor(q BatchQueue, profiles ProfileGetter, r Retriever, d Deliverer, h HistoryRecorder) *Processor {
	return NewProcessor(q, profiles, rules.NewEngine(), r, d, h, ProcessorConfig{}, log.NewNop())
}

func TestProcessor_RuleMatchSkipsRetrieval(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(1, "U1", "圖書館")}}
	r := &mockRetriever{general: []knowledge.Record{{Title: "noise", Content: "x", Similarity: 0.99}}}
	d := &mockDelivery{}

	p := newProcessor(q, &mockProfiles{}, r, d, &mockHistory{})

	n, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	if r.calls != 0 {
		t.Errorf("retriever called %d times for a rule match, want 0", r.calls)
	}
	if len(d.pushes) != 1 || !strings.Contains(d.pushes[0], "8:00-22:00") {
		t.Errorf("pushes = %v, want library hours", d.pushes)
	}
	if strings.Contains(d.pushes[0], "noise") {
		t.Error("knowledge-store content leaked into rule answer")
	}
}

func TestProcessor_RetrievalAnswer(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(1, "U1", "誰教資料庫")}}
	r := &mockRetriever{general: []knowledge.Record{{Title: "資料庫課程", Content: "由張老師授課", Similarity: 0.75}}}
	d := &mockDelivery{}
	h := &mockHistory{}

	p := newProcessor(q, &mockProfiles{}, r, d, h)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(d.pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(d.pushes))
	}
	if !strings.Contains(d.pushes[0], "資料庫課程") {
		t.Errorf("push = %q, want general record title", d.pushes[0])
	}
	if strings.Contains(d.pushes[0], "教師資訊") {
		t.Error("teacher section rendered with empty teacher results")
	}
	if len(h.teacher) != 1 || h.teacher[0] {
		t.Errorf("history teacher flag = %v, want [false]", h.teacher)
	}
}

func TestProcessor_FallbackWhenNothingFound(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(1, "U1", "毫無相關的問題")}}
	d := &mockDelivery{}

	p := newProcessor(q, &mockProfiles{}, &mockRetriever{}, d, &mockHistory{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(d.pushes) != 1 || d.pushes[0] != compose.Fallback {
		t.Errorf("push = %q, want exact fallback", d.pushes)
	}
}

func TestProcessor_FailOpenOnGenerationPanic(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(7, "U1", "誰教資料庫")}}
	r := &mockRetriever{panics: true}
	d := &mockDelivery{}

	p := newProcessor(q, &mockProfiles{}, r, d, &mockHistory{})

	n, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1 (fail-open)", n)
	}
	if len(q.marked) != 1 || q.marked[0] != 7 {
		t.Errorf("marked = %v, want [7]", q.marked)
	}
	if len(d.pushes) != 1 || d.pushes[0] != compose.Fallback {
		t.Errorf("push = %q, want fallback after generation failure", d.pushes)
	}

	// The message must not reappear in a subsequent claim.
	again, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again != 0 {
		t.Errorf("second run processed %d messages, want 0", again)
	}
}

func TestProcessor_FailOpenOnDeliveryFailure(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(3, "U1", "圖書館")}}
	d := &mockDelivery{pushErr: errors.New("push rejected")}

	p := newProcessor(q, &mockProfiles{}, &mockRetriever{}, d, &mockHistory{})

	n, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1 (delivery failure still marks processed)", n)
	}
	if len(q.marked) != 1 {
		t.Errorf("marked = %v, want the failed message marked", q.marked)
	}
}

func TestProcessor_ClaimFailureIsFatalForTheRun(t *testing.T) {
	q := &mockBatchQueue{claimErr: errors.New("connection refused")}
	p := newProcessor(q, &mockProfiles{}, &mockRetriever{}, &mockDelivery{}, &mockHistory{})

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error when claim fails")
	}
}

func TestProcessor_StudentTeacherFilter(t *testing.T) {
	q := &mockBatchQueue{batch: []queue.PendingMessage{pending(1, "U1", "誰教資料庫")}}
	r := &trackingRetriever{}
	profiles := &mockProfiles{prof: profile.Profile{
		UserID: "U1", Role: profile.RoleStudent, TeacherID: "張老師",
	}}

	p := newProcessor(q, profiles, r, &mockDelivery{}, &mockHistory{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.lastTeacher != "張老師" {
		t.Errorf("teacher filter = %q, want the student's assigned teacher", r.lastTeacher)
	}
}

func TestProcessor_DefaultsApplied(t *testing.T) {
	q := &mockBatchQueue{}
	p := newProcessor(q, &mockProfiles{}, &mockRetriever{}, &mockDelivery{}, &mockHistory{})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if q.claimMaxAge != 10*time.Minute {
		t.Errorf("maxAge = %v, want 10m default", q.claimMaxAge)
	}
	if q.claimLimit != 20 {
		t.Errorf("limit = %d, want 20 default", q.claimLimit)
	}
}

type trackingRetriever struct {
	lastTeacher string
}

func (r *trackingRetriever) Retrieve(_ context.Context, _, teacherName string) ([]knowledge.Record, []knowledge.Record) {
	r.lastTeacher = teacherName
	return nil, nil
}
