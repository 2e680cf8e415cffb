package extract

import (
	"regexp"
	"strings"

	"github.com/ianpcook/agent-crm/internal/model"
)

var headerRe = regexp.MustCompile(`(?i)^(from|to|subject|date):\s*(.*)$`)

// ParseEnvelope splits header lines from the body of an email-shaped text.
// It returns nil when no From/To/Subject/Date header line is present.
//
// The first occurrence of each header wins. The body starts after the first
// blank line that follows the last recognized header; a blank line before
// any header is not a split point.
func ParseEnvelope(text string) *model.EmailEnvelope {
	lines := strings.Split(text, "\n")

	var env model.EmailEnvelope
	seen := make(map[string]bool, 4)
	last := -1

	for i, line := range lines {
		m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		last = i

		key := strings.ToLower(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true

		value := strings.TrimSpace(m[2])
		switch key {
		case "from":
			env.From = value
		case "to":
			env.To = value
		case "subject":
			env.Subject = value
		case "date":
			env.Date = value
		}
	}

	if last < 0 {
		return nil
	}

	// No blank line after the headers: everything after them is body.
	start := last + 1
	for i := last + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			start = i + 1
			break
		}
	}
	if start < len(lines) {
		env.Body = strings.TrimSpace(strings.Join(lines[start:], "\n"))
	}

	return &env
}
