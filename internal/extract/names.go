package extract

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/ianpcook/agent-crm/internal/model"
)

const (
	nameWord    = `[A-Z][a-z]+(?:-[A-Z][a-z]+)?`
	twoWordName = nameWord + `[ \t]+` + nameWord
	anyName     = nameWord + `(?:[ \t]+` + nameWord + `)?`

	roleKeyword = `(?:CEO|CTO|CFO|COO|CMO|CRO|CPO|CIO|CISO|VP|SVP|EVP|President|Founder|Co-[Ff]ounder|Cofounder|` +
		`Director|Manager|Head|Lead|Engineer|Architect|Partner|Owner|Principal|Officer|Analyst|Consultant|` +
		`Designer|Developer|Specialist|Coordinator|Executive|Recruiter|Advisor|Chair(?:man|woman)?)`

	// rolePhrase is a title built around a role keyword: "VP of Sales",
	// "Senior Software Engineer", "Head of Product".
	rolePhrase = `(?:[A-Z][A-Za-z.&/-]*[ \t]+){0,3}?` + roleKeyword +
		`\b(?:[ \t]+(?:of|for)[ \t]+[A-Z][A-Za-z&-]*(?:[ \t]+[A-Z][A-Za-z&-]*)?)?`
)

var (
	nameLineRe       = regexp.MustCompile(`^(` + anyName + `)$`)
	twoWordLineRe    = regexp.MustCompile(`^(` + twoWordName + `)$`)
	titleCompanyRe   = regexp.MustCompile(`^(` + rolePhrase + `)[ \t]*(?:,|\bat\b|@|\|)[ \t]*(.+)$`)
	bareTitleRe      = regexp.MustCompile(`^(` + rolePhrase + `)[ \t]*[.,]?$`)
	roleStartRe      = regexp.MustCompile(`^` + rolePhrase)
	valedictionRe    = regexp.MustCompile(`^(?i:best|thanks|thank you|many thanks|regards|best regards|kind regards|warm regards|cheers|sincerely|talk soon|all the best)[ \t]*[,!.]?$`)
	signatureNameRe  = regexp.MustCompile(`^(` + anyName + `)(?:$|[ \t]*[,|])`)
	inlineTitleRe    = regexp.MustCompile(`\b(` + anyName + `),[ \t]+(` + rolePhrase + `)(?:[ \t]*(?:,|\bat\b|@)[ \t]*(` + companyName + `))?`)
	actionVerbRe     = regexp.MustCompile(`\b(?i:met with|met|called|spoke with|spoke to|heard from|talked to|talked with|caught up with)[ \t]+(` + anyName + `)`)
	twoWordCompanyRe = regexp.MustCompile(`\b(` + twoWordName + `)[ \t]+(?:from|at|with|@)[ \t]*(` + companyName + `)`)
	oneWordCompanyRe = regexp.MustCompile(`\b(` + nameWord + `)[ \t]+(?:from|at|with|@)[ \t]*(` + companyName + `)`)
	precedingNameRe  = regexp.MustCompile(nameWord + `[ \t]+$`)
	fromHeaderRe     = regexp.MustCompile(`(?im)^[ \t]*from:[ \t]*(.+)$`)
)

const maxStandaloneCo = 40

// nameFamily is one pattern family of the name recognizer. Families run in
// declared order; each yields raw candidates that are folded by MergeName.
type nameFamily struct {
	tag   string
	match func(text string, lines []string) []model.NameCandidate
}

var nameFamilies = []nameFamily{
	{"signature_title_company", matchSignatureTitleCompany},
	{"signature_title", matchSignatureTitle},
	{"valediction", matchValediction},
	{"inline_title", matchInlineTitle},
	{"action_verb", matchActionVerb},
	{"name_company", matchNameCompany},
	{"from_header", matchFromHeader},
	{"standalone_line", matchStandaloneLine},
}

// ExtractNames recognizes people in text. Candidates are returned in the
// order they were first recognized; repeated names are merged.
func ExtractNames(text string) []model.NameCandidate {
	lines := splitLines(text)

	var raw []model.NameCandidate
	for _, f := range nameFamilies {
		raw = append(raw, f.match(text, lines)...)
	}
	return foldNames(raw)
}

// MergeName folds a later recognition into an existing candidate. Role and
// company are only filled when currently empty; populated fields are never
// overwritten.
func MergeName(existing, candidate model.NameCandidate) model.NameCandidate {
	if existing.Role == "" {
		existing.Role = candidate.Role
	}
	if existing.Company == "" {
		existing.Company = candidate.Company
	}
	return existing
}

func foldNames(raw []model.NameCandidate) []model.NameCandidate {
	out := make([]model.NameCandidate, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, c := range raw {
		c = cleanCandidate(c)
		if !acceptName(c.Name) {
			continue
		}
		if i, ok := index[c.Name]; ok {
			out[i] = MergeName(out[i], c)
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// acceptName applies the shared filter: non-empty, not a stop word, longer
// than two characters, and single words of at least four characters.
func acceptName(name string) bool {
	if name == "" || isStopWord(name) || len(name) <= 2 {
		return false
	}
	first, _, multi := strings.Cut(name, " ")
	if !multi && len(name) < 4 {
		return false
	}
	return !isStopWord(first)
}

func cleanCandidate(c model.NameCandidate) model.NameCandidate {
	c.Name = strings.Join(strings.Fields(c.Name), " ")
	c.Role = trimPunct(c.Role)
	c.Company = trimPunct(c.Company)
	if isStopWord(c.Company) {
		c.Company = ""
	}
	return c
}

func trimPunct(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t,.;:|-")
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}

// A name line followed by "Title, Company".
func matchSignatureTitleCompany(_ string, lines []string) []model.NameCandidate {
	var out []model.NameCandidate
	for i := 0; i+1 < len(lines); i++ {
		name := nameLineRe.FindStringSubmatch(lines[i])
		if name == nil {
			continue
		}
		if m := titleCompanyRe.FindStringSubmatch(lines[i+1]); m != nil {
			out = append(out, model.NameCandidate{Name: name[1], Role: m[1], Company: m[2]})
		}
	}
	return out
}

// A name line followed by a bare title.
func matchSignatureTitle(_ string, lines []string) []model.NameCandidate {
	var out []model.NameCandidate
	for i := 0; i+1 < len(lines); i++ {
		name := nameLineRe.FindStringSubmatch(lines[i])
		if name == nil {
			continue
		}
		if m := bareTitleRe.FindStringSubmatch(lines[i+1]); m != nil {
			out = append(out, model.NameCandidate{Name: name[1], Role: m[1]})
		}
	}
	return out
}

// "Best," / "Thanks," then a name on the next non-blank line.
func matchValediction(_ string, lines []string) []model.NameCandidate {
	var out []model.NameCandidate
	for i, line := range lines {
		if !valedictionRe.MatchString(line) {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			if lines[j] == "" {
				continue
			}
			if m := signatureNameRe.FindStringSubmatch(lines[j]); m != nil {
				out = append(out, model.NameCandidate{Name: m[1]})
			}
			break
		}
	}
	return out
}

// "Name, Title[, at/@ Company]" anywhere in a line.
func matchInlineTitle(text string, _ []string) []model.NameCandidate {
	var out []model.NameCandidate
	for _, m := range inlineTitleRe.FindAllStringSubmatch(text, -1) {
		out = append(out, model.NameCandidate{Name: m[1], Role: m[2], Company: m[3]})
	}
	return out
}

// "met with / called / spoke with / heard from <Name>".
func matchActionVerb(text string, _ []string) []model.NameCandidate {
	var out []model.NameCandidate
	for _, m := range actionVerbRe.FindAllStringSubmatch(text, -1) {
		out = append(out, model.NameCandidate{Name: m[1]})
	}
	return out
}

// "Name {from|at|with|@} Company". The single-word variant is skipped when
// the word is the tail of a longer capitalized name, and needs four or more
// characters.
func matchNameCompany(text string, _ []string) []model.NameCandidate {
	var out []model.NameCandidate
	for _, m := range twoWordCompanyRe.FindAllStringSubmatch(text, -1) {
		if isStopWord(trimPunct(m[2])) {
			continue
		}
		out = append(out, model.NameCandidate{Name: m[1], Company: m[2]})
	}

	for _, loc := range oneWordCompanyRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		company := text[loc[4]:loc[5]]
		if len(name) < 4 || isStopWord(name) || isStopWord(trimPunct(company)) {
			continue
		}
		if precedingNameRe.MatchString(text[:loc[0]]) {
			continue
		}
		out = append(out, model.NameCandidate{Name: name, Company: company})
	}
	return out
}

// Display name of a From: header.
func matchFromHeader(text string, _ []string) []model.NameCandidate {
	var out []model.NameCandidate
	for _, m := range fromHeaderRe.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(m[1])

		var name string
		if addr, err := mail.ParseAddress(value); err == nil {
			name = addr.Name
		} else if !strings.Contains(value, "@") {
			name = strings.Trim(value, `"' `)
		}
		if nameLineRe.MatchString(name) {
			out = append(out, model.NameCandidate{Name: name})
		}
	}
	return out
}

// A standalone two-word capitalized line, read with the line after it: a
// role keyword makes it a role, a short capitalized line a company.
func matchStandaloneLine(_ string, lines []string) []model.NameCandidate {
	var out []model.NameCandidate
	for i, line := range lines {
		m := twoWordLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		c := model.NameCandidate{Name: m[1]}
		if i+1 < len(lines) {
			next := lines[i+1]
			switch {
			case roleStartRe.MatchString(next):
				c.Role = next
			case next != "" && len(next) <= maxStandaloneCo && startsUpper(next):
				c.Company = next
			}
		}
		out = append(out, c)
	}
	return out
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}
