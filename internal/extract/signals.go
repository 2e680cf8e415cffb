package extract

import (
	"regexp"
	"strings"

	"github.com/ianpcook/agent-crm/internal/model"
)

// keywordRule tags text when any of its phrases occurs as whole words.
type keywordRule struct {
	tag string
	re  *regexp.Regexp
}

func rule(tag string, phrases ...string) keywordRule {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return keywordRule{tag: tag, re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)}
}

// tags returns the tags of every rule matching lower, in rule order.
func tags(rules []keywordRule, lower string) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.re.MatchString(lower) {
			out = append(out, r.tag)
		}
	}
	return out
}

// stageRules are evaluated in pipeline order regardless of where each cue
// appears in the text.
var stageRules = []keywordRule{
	rule(string(model.StageQualified),
		"interested", "interest in", "looking for", "evaluating", "exploring",
		"want to learn more", "would like to learn more", "good fit", "pain point", "budget for"),
	rule(string(model.StageProposal),
		"proposal", "pricing", "quote", "price", "estimate", "sow", "statement of work"),
	rule(string(model.StageNegotiation),
		"negotiate", "negotiating", "negotiation", "contract review", "legal review",
		"redline", "redlines", "terms", "discount", "procurement"),
	rule(string(model.StageWon),
		"signed", "closed the deal", "closed won", "agreed", "purchase order",
		"moving forward", "deal is done", "go ahead"),
	rule(string(model.StageLost),
		"not interested", "declined", "went with", "chose another", "going another direction",
		"no longer", "pass on this", "lost the deal", "closed lost"),
}

var positiveRules = []keywordRule{
	rule("high_interest",
		"very interested", "really interested", "excited", "love", "great fit", "perfect fit",
		"impressed", "eager", "asap"),
	rule("has_authority",
		"decision maker", "final say", "can approve", "sign off", "budget approved", "signing authority"),
}

var negativeRules = []keywordRule{
	rule("timing_objection",
		"not right now", "bad timing", "next quarter", "next year", "not a priority",
		"too busy", "revisit later", "check back later"),
	rule("no_authority",
		"need to check with", "run it by", "not my call", "need approval", "get approval",
		"my boss", "the board"),
}

var actionRules = []keywordRule{
	rule("follow_up_needed",
		"follow up", "follow-up", "followup", "circle back", "check in", "get back to", "touch base"),
	rule("meeting_to_schedule",
		"schedule", "set up a meeting", "set up a call", "book a", "calendar", "demo",
		"find a time", "next meeting"),
}

// DetectDealSignals reads stage hints and positive/negative/action tags from
// text. Conflicting hints (won and lost) are reported as-is.
func DetectDealSignals(text string) model.DealSignals {
	lower := strings.ToLower(text)

	hints := make([]model.Stage, 0, len(stageRules))
	for _, t := range tags(stageRules, lower) {
		hints = append(hints, model.Stage(t))
	}

	return model.DealSignals{
		StageHints: hints,
		Positive:   tags(positiveRules, lower),
		Negative:   tags(negativeRules, lower),
		Actions:    tags(actionRules, lower),
	}
}

// interactionRules are checked in priority order; the first match wins.
var interactionRules = []struct {
	kind model.InteractionType
	re   *regexp.Regexp
}{
	{model.InteractionEmail, regexp.MustCompile(`(?m)^[ \t]*(?:from|to|subject|sent|cc):|forwarded message|original message`)},
	{model.InteractionCall, regexp.MustCompile(`\b(?:call|called|calling|phone|phoned|dialed|voicemail|spoke with|spoke to)\b`)},
	{model.InteractionMeeting, regexp.MustCompile(`\b(?:met|meet|meeting|meetup|coffee|lunch|dinner|conference|in person|in-person|zoom|workshop)\b`)},
	{model.InteractionLinkedIn, regexp.MustCompile(`\b(?:linkedin|inmail|connection request)\b`)},
	{model.InteractionText, regexp.MustCompile(`\b(?:texted|text message|sms|whatsapp|imessage)\b`)},
}

// ClassifyInteraction assigns exactly one interaction type, defaulting to
// note.
func ClassifyInteraction(text string) model.InteractionType {
	lower := strings.ToLower(text)
	for _, r := range interactionRules {
		if r.re.MatchString(lower) {
			return r.kind
		}
	}
	return model.InteractionNote
}

// DetectDirection reports inbound only for an email envelope addressed to
// someone; everything else, including calls and notes, is outbound.
func DetectDirection(env *model.EmailEnvelope) model.Direction {
	if env != nil && env.To != "" {
		return model.DirectionInbound
	}
	return model.DirectionOutbound
}
