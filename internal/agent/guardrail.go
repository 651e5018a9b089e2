package agent

import (
	"regexp"
	"strings"
)

const (
	codeRefusal     = "I can't generate code. Try ChatGPT or official docs."
	offTopicRefusal = "I'm here to help you with your goals and tasks. Let's stay on track."
)

var (
	// A request addressed to the assistant to produce code: a production
	// verb with the code noun at most three words later. Mentions of coding
	// as the user's own work ("I need to write code today") and study plans
	// for a class pass.
	codeRequestPattern = regexp.MustCompile(`(?i)(^\s*|\b(can|could|would|will) you\s+|\bplease\s+|\bhelp me\s+)` +
		`(write|generate|give me|show me|create|implement|code up)\s+(\S+\s+){0,3}?` +
		`(code|script|function|program|snippet|regex|class|method|sql query|algorithm)s?\b`)

	// A code noun used as a modifier ("a class schedule") names study work.
	studyNounPattern = regexp.MustCompile(`(?i)^\s+(schedule|plan|exam|test|notes|homework|assignment|timetable)\b`)

	// Hostility aimed at the assistant. Frustration with a task or with
	// oneself ("this task is dumb", "I feel so stupid") is not hostile.
	hostilePattern = regexp.MustCompile(`(?i)\byou('re|\s+are)\s+(so\s+|such\s+an?\s+|an?\s+|really\s+)*` +
		`(stupid|an idiot|idiot|dumb|a moron|moron|useless|worthless|pathetic)\b` +
		`|\bshut up\b|\bhate you\b|\bf+u+c+k\w*\s+(you|off)\b` +
		`|\b(stupid|dumb|useless)\s+(bot|assistant|ai)\b`)
)

// Guardrail screens the latest user message before the oracle sees it.
// It never looks at history.
func Guardrail(latest string) (ReplyOnly, bool) {
	latest = strings.TrimSpace(latest)
	if latest == "" {
		return ReplyOnly{}, false
	}
	if isCodeRequest(latest) {
		return ReplyOnly{Base: Base{Message: codeRefusal, Confidence: 1}}, true
	}
	if hostilePattern.MatchString(latest) {
		return ReplyOnly{Base: Base{Message: offTopicRefusal, Confidence: 1}}, true
	}
	return ReplyOnly{}, false
}

func isCodeRequest(msg string) bool {
	for _, loc := range codeRequestPattern.FindAllStringIndex(msg, -1) {
		if !studyNounPattern.MatchString(msg[loc[1]:]) {
			return true
		}
	}
	return false
}
