// Package rules implements the deterministic keyword rule engine.
//
// The engine answers common campus questions without any network or vector
// call, keeping the common-case latency near zero. It is consulted before
// retrieval; a miss signals the caller to fall through.
package rules

import (
	"strings"

	"github.com/freyabot/freya/internal/profile"
)

// Rule pairs a keyword set with a response template. Keywords are matched
// as substrings of the lower-cased input.
type Rule struct {
	Name     string
	Keywords []string
	Respond  func(p profile.Profile) string
}

// Engine evaluates an ordered rule table; the first matching rule wins.
// Engine is stateless and safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given rules. With no rules it uses
// the default campus table.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = Defaults()
	}
	return &Engine{rules: rules}
}

// Match tests text against the rule table in order and returns the canned
// response of the first hit. ok is false when no rule matches; the empty
// string is never a valid response.
func (e *Engine) Match(text string, p profile.Profile) (response string, ok bool) {
	lower := strings.ToLower(text)
	for _, rule := range e.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Respond(p), true
			}
		}
	}
	return "", false
}

// Canned responses for the default rules.
const (
	LibraryInfo = "🏫 圖書館資訊：\n📍 位置：行政大樓旁邊的紅色建築物\n⏰ 開放時間：週一至週五 8:00-22:00，週六日 9:00-17:00"

	LeaveProcess = "📝 請假流程：\n1. 向導師請假獲得同意\n2. 填寫學校請假單\n3. 送至系辦核准\n4. 將核准單交給課程助教"
)

// Defaults returns the built-in campus rule table. Order matters: rules
// are evaluated top to bottom.
func Defaults() []Rule {
	return []Rule{
		{
			Name:     "library",
			Keywords: []string{"圖書館", "library"},
			Respond:  func(profile.Profile) string { return LibraryInfo },
		},
		{
			Name:     "leave",
			Keywords: []string{"請假", "請假流程", "缺課", "怎麼請假"},
			Respond:  func(profile.Profile) string { return LeaveProcess },
		},
		{
			Name:     "greeting",
			Keywords: []string{"hi", "hello", "你好", "嗨"},
			Respond: func(p profile.Profile) string {
				return "👋 你好" + honorific(p.Role) + "！我是 Freya 學伴！"
			},
		},
	}
}

// honorific picks the greeting suffix by role.
func honorific(role string) string {
	switch role {
	case profile.RoleStudent:
		return "同學"
	case profile.RoleTeacher:
		return "老師"
	default:
		return "朋友"
	}
}
