package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ianpcook/agent-crm/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// Audit actions.
const (
	AuditInsert = "INSERT"
	AuditUpdate = "UPDATE"
)

// Audited tables.
const (
	TableContacts     = "contacts"
	TableDeals        = "deals"
	TableInteractions = "interactions"
	TableTasks        = "tasks"
)

// PlanFilter specifies criteria for listing stored plans.
type PlanFilter struct {
	SourceType model.SourceType `json:"source_type,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// AuditFilter specifies criteria for listing audit entries.
type AuditFilter struct {
	Table    string `json:"table,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for plans and CRM records.
// Every CRM mutation writes an audit entry in the same transaction.
type Store interface {
	// Plans
	SavePlan(ctx context.Context, input string, plan *model.ExtractionPlan) (*model.PlanRecord, error)
	GetPlan(ctx context.Context, id string) (*model.PlanRecord, error)
	ListPlans(ctx context.Context, filter PlanFilter) ([]model.PlanRecord, error)

	// Contacts. UpsertContact matches by email, else case-insensitive name,
	// and only fills fields that are empty on the stored record. The bool
	// reports whether a new contact was created.
	UpsertContact(ctx context.Context, c model.Contact, reason string) (*model.Contact, bool, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)

	// Deals
	CreateDeal(ctx context.Context, d model.Deal, reason string) (*model.Deal, error)
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	LatestOpenDeal(ctx context.Context, contactID string) (*model.Deal, error)
	UpdateDealStage(ctx context.Context, dealID string, stage model.Stage, reason string) (*model.Deal, error)

	// Activity
	LogInteraction(ctx context.Context, rec model.InteractionRecord, reason string) (*model.InteractionRecord, error)
	CreateTask(ctx context.Context, t model.Task, reason string) (*model.Task, error)

	// Audit
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultListLimit = 100
	defaultCurrency  = "USD"
	defaultDealTitle = "New deal"
)

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// fillContact copies incoming values into the empty fields of existing and
// reports whether anything changed.
func fillContact(existing *model.Contact, incoming model.Contact) bool {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&existing.Email, incoming.Email)
	fill(&existing.Phone, incoming.Phone)
	fill(&existing.Company, incoming.Company)
	fill(&existing.Role, incoming.Role)
	fill(&existing.Source, incoming.Source)
	return changed
}

func validateContact(c model.Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return eris.New("store: contact name is required")
	}
	return nil
}

// prepareDeal applies deal defaults and validates the stage.
func prepareDeal(d *model.Deal) error {
	if d.Stage == "" {
		d.Stage = model.StageLead
	}
	if !model.ValidStage(d.Stage) {
		return eris.Errorf("store: invalid deal stage %q", d.Stage)
	}
	if d.Currency == "" {
		d.Currency = defaultCurrency
	}
	if d.Title == "" {
		d.Title = defaultDealTitle
	}
	return nil
}

func prepareTask(t *model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return eris.New("store: task title is required")
	}
	if t.Priority == "" {
		t.Priority = model.PriorityNormal
	}
	return nil
}

func prepareInteraction(rec *model.InteractionRecord) error {
	if strings.TrimSpace(rec.Summary) == "" {
		return eris.New("store: interaction summary is required")
	}
	if rec.Type == "" {
		rec.Type = model.InteractionNote
	}
	if rec.Direction == "" {
		rec.Direction = model.DirectionOutbound
	}
	return nil
}

// auditJSON snapshots a record for the audit log. A nil record is stored as
// NULL.
func auditJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal audit snapshot")
	}
	return b, nil
}

// nullString maps "" to NULL for optional foreign keys.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
