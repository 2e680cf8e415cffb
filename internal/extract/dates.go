package extract

import (
	"regexp"
)

const (
	weekday = `(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)`
	month   = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:next|this)[ \t]+` + weekday + `\b`),
	regexp.MustCompile(`(?i)\b(?:next|this)[ \t]+(?:week|month)\b`),
	regexp.MustCompile(`(?i)\b\d+[ \t]+(?:days?|weeks?|months?)(?:[ \t]+from[ \t]+now)?\b`),
	regexp.MustCompile(`(?i)\b` + month + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?(?:,?[ \t]+\d{4})?\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`),
	regexp.MustCompile(`(?i)\b(?:today|tomorrow|end of (?:the )?(?:week|month|quarter|year))\b`),
}

// ExtractDates returns the distinct date-like spans in text, sorted. The
// spans are not resolved to calendar dates.
func ExtractDates(text string) []string {
	var found []string
	for _, re := range datePatterns {
		found = append(found, re.FindAllString(text, -1)...)
	}
	return sortedSet(found)
}

// firstDateMention returns the date span that starts earliest in text.
func firstDateMention(text string) string {
	best, bestAt := "", -1
	for _, re := range datePatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = text[loc[0]:loc[1]], loc[0]
		}
	}
	return best
}
