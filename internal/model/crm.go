package model

import (
	"encoding/json"
	"time"
)

// Contact is a stored person record.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Role      string    `json:"role,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deal is a stored pipeline opportunity.
type Deal struct {
	ID            string     `json:"id"`
	ContactID     string     `json:"contact_id,omitempty"`
	Title         string     `json:"title"`
	Value         float64    `json:"value"`
	Currency      string     `json:"currency"`
	Stage         Stage      `json:"stage"`
	ExpectedClose *time.Time `json:"expected_close,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// InteractionRecord is a stored, reviewer-summarized touchpoint.
type InteractionRecord struct {
	ID         string          `json:"id"`
	ContactID  string          `json:"contact_id,omitempty"`
	DealID     string          `json:"deal_id,omitempty"`
	Type       InteractionType `json:"type"`
	Direction  Direction       `json:"direction"`
	Summary    string          `json:"summary"`
	Raw        string          `json:"raw,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TaskPriority ranks a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Task is a stored follow-up.
type Task struct {
	ID          string       `json:"id"`
	ContactID   string       `json:"contact_id,omitempty"`
	DealID      string       `json:"deal_id,omitempty"`
	Title       string       `json:"title"`
	DueAt       *time.Time   `json:"due_at,omitempty"`
	Priority    TaskPriority `json:"priority"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AuditEntry records one mutation of a CRM table.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id"`
	Action    string          `json:"action"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PlanRecord is an extraction plan kept for later review.
type PlanRecord struct {
	ID         string          `json:"id"`
	SourceType SourceType      `json:"source_type"`
	Input      string          `json:"input"`
	Plan       *ExtractionPlan `json:"plan"`
	CreatedAt  time.Time       `json:"created_at"`
}
