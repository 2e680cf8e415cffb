package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// SourceType tags where a piece of text came from.
type SourceType string

const (
	SourceAuto    SourceType = "auto"
	SourceEmail   SourceType = "email"
	SourceCall    SourceType = "call"
	SourceMeeting SourceType = "meeting"
	SourceNote    SourceType = "note"
)

// ParseSourceType validates a user-supplied source type. An empty string
// means auto.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case "":
		return SourceAuto, nil
	case SourceAuto, SourceEmail, SourceCall, SourceMeeting, SourceNote:
		return SourceType(s), nil
	default:
		return "", eris.Errorf("model: unknown source type %q", s)
	}
}

// InteractionType is the kind of touchpoint a text describes.
type InteractionType string

const (
	InteractionEmail    InteractionType = "email"
	InteractionCall     InteractionType = "call"
	InteractionMeeting  InteractionType = "meeting"
	InteractionLinkedIn InteractionType = "linkedin"
	InteractionText     InteractionType = "text"
	InteractionNote     InteractionType = "note"
)

// Direction of an interaction relative to us.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Stage is a deal pipeline stage.
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// ValidStage reports whether s is one of the pipeline stages.
func ValidStage(s Stage) bool {
	switch s {
	case StageLead, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost:
		return true
	}
	return false
}

// Closed reports whether the stage ends a deal.
func (s Stage) Closed() bool {
	return s == StageWon || s == StageLost
}

// EmailEnvelope holds raw header values of an email-shaped text.
type EmailEnvelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Body    string `json:"body"`
}

// NameCandidate is a person recognized in text. Name is the identity key.
type NameCandidate struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
}

// MoneyAmount is a currency mention normalized to a plain value.
type MoneyAmount struct {
	Raw      string  `json:"raw"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// DealSignals groups controlled-vocabulary tags inferred from text.
type DealSignals struct {
	StageHints []Stage  `json:"stage_hints"`
	Positive   []string `json:"positive"`
	Negative   []string `json:"negative"`
	Actions    []string `json:"actions"`
}

// TaskCandidate is a possible follow-up found in text.
type TaskCandidate struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// Contacts holds the contact-level signals of a plan.
type Contacts struct {
	Names     []NameCandidate `json:"names"`
	Emails    []string        `json:"emails"`
	Phones    []string        `json:"phones"`
	Companies []string        `json:"companies"`
}

// Interaction describes the touchpoint the text records.
type Interaction struct {
	Type       InteractionType `json:"type"`
	Direction  Direction       `json:"direction"`
	OccurredAt *string         `json:"occurred_at"`
}

// ExtractionPlan is the full structured reading of one input text.
type ExtractionPlan struct {
	SourceType       SourceType        `json:"source_type"`
	ExtractedAt      time.Time         `json:"extracted_at"`
	Contacts         Contacts          `json:"contacts"`
	Interaction      Interaction       `json:"interaction"`
	DealSignals      DealSignals       `json:"deal_signals"`
	Money            []MoneyAmount     `json:"money"`
	Dates            []string          `json:"dates"`
	PotentialTasks   []TaskCandidate   `json:"potential_tasks"`
	EmailMetadata    *EmailEnvelope    `json:"email_metadata"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
}
