package model

// ActionType names a proposed CRM operation.
type ActionType string

const (
	ActionContact     ActionType = "create_or_update_contact"
	ActionDeal        ActionType = "create_or_update_deal"
	ActionDealStage   ActionType = "update_deal_stage"
	ActionInteraction ActionType = "log_interaction"
	ActionTask        ActionType = "create_task"
)

// SuggestedAction is a not-yet-executed CRM operation. Exactly one payload
// pointer is set, matching Action.
type SuggestedAction struct {
	Action      ActionType          `json:"action"`
	Contact     *ContactPayload     `json:"contact,omitempty"`
	Deal        *DealPayload        `json:"deal,omitempty"`
	Stage       *StagePayload       `json:"stage,omitempty"`
	Interaction *InteractionPayload `json:"interaction,omitempty"`
	Task        *TaskPayload        `json:"task,omitempty"`
}

// ContactPayload carries what is known about a person.
type ContactPayload struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// DealPayload carries the primary value signal and the raw signals.
type DealPayload struct {
	Value    float64     `json:"value"`
	Currency string      `json:"currency"`
	Signals  DealSignals `json:"signals"`
}

// StagePayload carries the proposed stage.
type StagePayload struct {
	Stage Stage `json:"stage"`
}

// InteractionPayload carries the classified interaction. The summary is
// always left to the reviewer.
type InteractionPayload struct {
	Type            InteractionType `json:"type"`
	Direction       Direction       `json:"direction"`
	OccurredAt      *string         `json:"occurred_at"`
	SummaryRequired bool            `json:"summary_required"`
}

// TaskPayload carries a task title and an unresolved due-date mention.
type TaskPayload struct {
	Title   string `json:"title"`
	DueHint string `json:"due_hint,omitempty"`
}
