package compose

import (
	"strings"
	"testing"

	"github.com/freyabot/freya/internal/knowledge"
)

func TestCompose_RuleAnswerWinsVerbatim(t *testing.T) {
	var c Composer

	// Non-empty retrieval results must not leak into a rule answer.
	general := []knowledge.Record{{Title: "資料庫課程", Content: "由張老師授課", Similarity: 0.9}}
	teacher := []knowledge.Record{{Title: "張老師", Content: "辦公室301", Similarity: 0.8}}

	got := c.Compose("圖書館", "🏫 圖書館資訊", general, teacher)

	if got != "🏫 圖書館資訊" {
		t.Errorf("Compose = %q, want rule answer verbatim", got)
	}
	if strings.Contains(got, "資料庫課程") {
		t.Error("retrieval content leaked into rule answer")
	}
}

func TestCompose_GeneralOnly(t *testing.T) {
	var c Composer

	general := []knowledge.Record{{Title: "資料庫課程", Content: "由張老師授課，週一三 9:00-10:30", Similarity: 0.75}}

	got := c.Compose("誰教資料庫", "", general, nil)

	if !strings.Contains(got, "📚 一般資訊") {
		t.Error("missing general section header")
	}
	if !strings.Contains(got, "資料庫課程") {
		t.Error("missing general record title")
	}
	if strings.Contains(got, "👨‍🏫 教師資訊") {
		t.Error("teacher section rendered despite empty results")
	}
	if !strings.Contains(got, "誰教資料庫") {
		t.Error("query not echoed in preamble")
	}
}

func TestCompose_TeacherOnly(t *testing.T) {
	var c Composer

	teacher := []knowledge.Record{{Title: "張老師", Content: "計算機概論，週一三 9:00-10:30", Similarity: 0.8}}

	got := c.Compose("張老師的課", "", nil, teacher)

	if !strings.Contains(got, "👨‍🏫 教師資訊") {
		t.Error("missing teacher section header")
	}
	if strings.Contains(got, "📚 一般資訊") {
		t.Error("general section rendered despite empty results")
	}
}

func TestCompose_BothSectionsEnumerated(t *testing.T) {
	var c Composer

	general := []knowledge.Record{
		{Title: "甲", Content: "a"},
		{Title: "乙", Content: "b"},
	}
	teacher := []knowledge.Record{{Title: "張老師", Content: "c"}}

	got := c.Compose("q", "", general, teacher)

	for _, want := range []string{"1. 【甲】a", "2. 【乙】b", "1. 【張老師】c"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing enumerated item %q in:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "請聯繫相關系辦") {
		t.Error("missing office-contact suffix")
	}
}

func TestCompose_FallbackExact(t *testing.T) {
	var c Composer

	got := c.Compose("毫無相關的問題", "", nil, nil)

	if got != Fallback {
		t.Errorf("Compose = %q, want exact fallback %q", got, Fallback)
	}
}
