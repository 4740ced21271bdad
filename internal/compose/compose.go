// Package compose renders the final reply text.
//
// Precedence is fixed: a rule-engine answer is returned verbatim,
// otherwise retrieval results are rendered into a structured answer, and
// with nothing to show the fixed fallback is returned. Retrieval output
// never overrides a rule answer.
package compose

import (
	"fmt"
	"strings"

	"github.com/freyabot/freya/internal/knowledge"
)

// Fallback is the fixed reply when neither rules nor retrieval produced
// anything. Internal failures are never shown to the user; they collapse
// into this message too.
const Fallback = "🤖 很抱歉，目前找不到相關資訊。建議您直接聯繫相關系辦或導師獲取詳細資訊。"

// suffix closes every retrieval-backed answer.
const suffix = "\n💡 如需更多協助，請聯繫相關系辦。"

// Composer renders replies. The zero value is ready to use.
type Composer struct{}

// Compose merges the rule answer and retrieval results into the reply.
// ruleAnswer, when non-empty, wins outright. Partial retrieval (one
// collection empty) still renders a populated answer.
func (Composer) Compose(query, ruleAnswer string, general, teacher []knowledge.Record) string {
	if ruleAnswer != "" {
		return ruleAnswer
	}
	if len(general) == 0 && len(teacher) == 0 {
		return Fallback
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 關於「%s」，為您找到以下資訊：\n", query)

	if len(general) > 0 {
		b.WriteString("\n📚 一般資訊：\n")
		writeSection(&b, general)
	}
	if len(teacher) > 0 {
		b.WriteString("\n👨‍🏫 教師資訊：\n")
		writeSection(&b, teacher)
	}

	b.WriteString(suffix)
	return b.String()
}

func writeSection(b *strings.Builder, records []knowledge.Record) {
	for i, rec := range records {
		fmt.Fprintf(b, "%d. 【%s】%s\n", i+1, rec.Title, rec.Content)
	}
}
