package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ianpcook/agent-crm/internal/model"
)

const (
	maxTasks         = 5
	maxTaskTitle     = 100
	minTaskSpan      = 10
	maxTaskSpan      = 200
	deadlineRelative = `(?:` + weekday + `|tomorrow|today|next week|next month|end of (?:the )?(?:day|week|month|quarter|year)|eod|eow)`
)

// taskPatterns capture the task text in group 1, in declared order:
// obligations, imperative verbs, explicit markers, deadlines.
var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:need to|should|will|must|have to)[ \t]+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)\b((?:follow up|send|schedule|call|email|review|check)\b[^.!?\n]*)`),
	regexp.MustCompile(`(?i)\b(?:action item|todo|to-do|task)[ \t]*:[ \t]*([^\n]+)`),
	regexp.MustCompile(`(?i)\b((?:by|before|due)[ \t]+` + deadlineRelative + `\b[^.!?\n]*)`),
}

// ExtractTasks returns the first five follow-up candidates in pattern then
// text order. A span matched by more than one pattern appears once per match.
func ExtractTasks(text string) []model.TaskCandidate {
	out := make([]model.TaskCandidate, 0, maxTasks)

	for _, re := range taskPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			span := strings.TrimSpace(m[1])
			n := utf8.RuneCountInString(span)
			if n <= minTaskSpan || n >= maxTaskSpan {
				continue
			}
			out = append(out, model.TaskCandidate{
				Title:  truncateRunes(span, maxTaskTitle),
				Source: strings.TrimSpace(m[0]),
			})
			if len(out) == maxTasks {
				return out
			}
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
