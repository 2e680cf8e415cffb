package extract

import (
	"regexp"
	"sort"
)

const (
	companySuffix = `(?:Corp|Inc|LLC|Ltd|Co|Labs|AI|Tech|Software|Systems|Solutions)`

	// companyName is a capitalized word with an optional corporate suffix.
	companyName = `[A-Z][A-Za-z0-9&-]*(?:[ \t]+` + companySuffix + `\b\.?)?`
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// North American 10-digit numbers: optional +1, optional parens around
	// the area code, space/dot/dash separators.
	naPhoneRe = regexp.MustCompile(`(?:\+1[ .-]?)?\(?\b\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`)

	// International: + then digits, at most one separator between any two
	// digits; digit count is checked separately.
	intlPhoneRe = regexp.MustCompile(`\+\d(?:[ .-]?\d){5,16}`)

	companyPrepRe = regexp.MustCompile(`\b(?:at|from|with|for)[ \t]+(` + companyName + `)`)
	domainRe      = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9-]*\.(?:com|io|ai|co)\b`)
)

// ExtractEmails returns the distinct email addresses in text, sorted.
func ExtractEmails(text string) []string {
	return sortedSet(emailRe.FindAllString(text, -1))
}

// ExtractPhones returns the distinct phone-number spans in text as written,
// sorted. No canonical normalization is applied.
func ExtractPhones(text string) []string {
	found := naPhoneRe.FindAllString(text, -1)
	for _, m := range intlPhoneRe.FindAllString(text, -1) {
		if n := countDigits(m); n >= 7 && n <= 17 {
			found = append(found, m)
		}
	}
	return sortedSet(found)
}

// ExtractCompanies returns company-like tokens in first-seen order:
// capitalized words after at/from/with/for, then bare domains.
func ExtractCompanies(text string) []string {
	var found []string
	for _, m := range companyPrepRe.FindAllStringSubmatch(text, -1) {
		found = append(found, m[1])
	}
	found = append(found, domainRe.FindAllString(text, -1)...)

	seen := make(map[string]bool, len(found))
	out := make([]string, 0, len(found))
	for _, c := range found {
		c = trimPunct(c)
		if c == "" || seen[c] || isStopWord(c) {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// sortedSet dedupes values and sorts them so set-valued output is stable.
func sortedSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
