package salesforce

import (
	"strings"
	"time"
)

// dateLayout is the Salesforce date field format.
const dateLayout = "2006-01-02"

// Standard Opportunity StageName values.
const (
	StageProspecting   = "Prospecting"
	StageQualification = "Qualification"
	StageProposal      = "Proposal/Price Quote"
	StageNegotiation   = "Negotiation/Review"
	StageClosedWon     = "Closed Won"
	StageClosedLost    = "Closed Lost"
)

// Task status and subtype values.
const (
	TaskStatusNotStarted = "Not Started"
	TaskStatusCompleted  = "Completed"

	SubtypeTask     = "Task"
	SubtypeCall     = "Call"
	SubtypeEmail    = "Email"
	SubtypeLinkedIn = "LinkedIn"
)

// NewContact holds the values for a Contact insert.
type NewContact struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Title      string
	LeadSource string
}

// SplitName splits a full name into Salesforce first and last name. A single
// word becomes the LastName, which is the only required name field.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func (c NewContact) fields() map[string]any {
	f := map[string]any{"LastName": c.LastName}
	setIf(f, "FirstName", c.FirstName)
	setIf(f, "Email", c.Email)
	setIf(f, "Phone", c.Phone)
	setIf(f, "Title", c.Title)
	setIf(f, "LeadSource", c.LeadSource)
	return f
}

// Opportunity holds the values for an Opportunity insert.
type Opportunity struct {
	Name      string
	StageName string
	Amount    float64
	CloseDate time.Time
	AccountID string
}

func (o Opportunity) fields() map[string]any {
	f := map[string]any{
		"Name":      o.Name,
		"StageName": o.StageName,
		"CloseDate": o.CloseDate.Format(dateLayout),
	}
	if o.Amount > 0 {
		f["Amount"] = o.Amount
	}
	setIf(f, "AccountId", o.AccountID)
	return f
}

// Task holds the values for a Task insert. WhoID links a Contact and WhatID
// an Opportunity.
type Task struct {
	Subject      string
	Description  string
	Status       string
	Priority     string
	Subtype      string
	ActivityDate *time.Time
	WhoID        string
	WhatID       string
}

func (t Task) fields() map[string]any {
	status := t.Status
	if status == "" {
		status = TaskStatusNotStarted
	}
	f := map[string]any{
		"Subject": t.Subject,
		"Status":  status,
	}
	setIf(f, "Description", t.Description)
	setIf(f, "Priority", t.Priority)
	setIf(f, "TaskSubtype", t.Subtype)
	setIf(f, "WhoId", t.WhoID)
	setIf(f, "WhatId", t.WhatID)
	if t.ActivityDate != nil {
		f["ActivityDate"] = t.ActivityDate.Format(dateLayout)
	}
	return f
}

func setIf(f map[string]any, key, value string) {
	if value != "" {
		f[key] = value
	}
}
