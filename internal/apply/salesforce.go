package apply

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ianpcook/agent-crm/internal/model"
	"github.com/ianpcook/agent-crm/pkg/salesforce"
)

const (
	// defaultCloseDays is how far out a new Opportunity's CloseDate is set
	// when the deal has no expected close.
	defaultCloseDays  = 30
	maxSubjectLen     = 255
	maxDescriptionLen = 32000
)

var stageNames = map[model.Stage]string{
	model.StageLead:        salesforce.StageProspecting,
	model.StageQualified:   salesforce.StageQualification,
	model.StageProposal:    salesforce.StageProposal,
	model.StageNegotiation: salesforce.StageNegotiation,
	model.StageWon:         salesforce.StageClosedWon,
	model.StageLost:        salesforce.StageClosedLost,
}

// StageName maps a pipeline stage to the standard Opportunity StageName.
func StageName(s model.Stage) (string, error) {
	name, ok := stageNames[s]
	if !ok {
		return "", eris.Errorf("apply: no salesforce stage for %q", s)
	}
	return name, nil
}

var subtypes = map[model.InteractionType]string{
	model.InteractionCall:     salesforce.SubtypeCall,
	model.InteractionEmail:    salesforce.SubtypeEmail,
	model.InteractionLinkedIn: salesforce.SubtypeLinkedIn,
}

func taskSubtype(t model.InteractionType) string {
	if st, ok := subtypes[t]; ok {
		return st
	}
	return salesforce.SubtypeTask
}

func sfPriority(p model.TaskPriority) string {
	switch p {
	case model.PriorityLow:
		return "Low"
	case model.PriorityHigh, model.PriorityUrgent:
		return "High"
	default:
		return "Normal"
	}
}

// SalesforceSink writes accepted actions to Salesforce: contacts become
// Contacts (under an Account named after the company), deals Opportunities,
// interactions completed Tasks and tasks open Tasks.
type SalesforceSink struct {
	client salesforce.Client
	now    func() time.Time

	mu       sync.Mutex
	accounts map[string]string // contact ID -> account ID
}

// NewSalesforceSink creates a sink over client. A nil now uses time.Now.
func NewSalesforceSink(client salesforce.Client, now func() time.Time) *SalesforceSink {
	if now == nil {
		now = time.Now
	}
	return &SalesforceSink{
		client:   client,
		now:      now,
		accounts: make(map[string]string),
	}
}

func (s *SalesforceSink) Name() string { return "salesforce" }

func (s *SalesforceSink) rememberAccount(contactID, accountID string) {
	if accountID == "" {
		return
	}
	s.mu.Lock()
	s.accounts[contactID] = accountID
	s.mu.Unlock()
}

func (s *SalesforceSink) accountFor(contactID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[contactID]
}

func (s *SalesforceSink) UpsertContact(ctx context.Context, c model.Contact, _ string) (string, bool, error) {
	first, last := salesforce.SplitName(c.Name)
	if last == "" {
		return "", false, eris.New("apply: contact name is required")
	}

	var existing *salesforce.Contact
	var err error
	if c.Email != "" {
		existing, err = salesforce.FindContactByEmail(ctx, s.client, c.Email)
	} else {
		existing, err = salesforce.FindContactByName(ctx, s.client, first, last)
	}
	if err != nil {
		return "", false, eris.Wrap(err, "apply: find salesforce contact")
	}

	if existing != nil {
		s.rememberAccount(existing.ID, existing.AccountID)
		fields := map[string]any{}
		if existing.Email == "" && c.Email != "" {
			fields["Email"] = c.Email
		}
		if existing.Phone == "" && c.Phone != "" {
			fields["Phone"] = c.Phone
		}
		if existing.Title == "" && c.Role != "" {
			fields["Title"] = c.Role
		}
		if len(fields) > 0 {
			if err := salesforce.UpdateContact(ctx, s.client, existing.ID, fields); err != nil {
				return "", false, eris.Wrap(err, "apply: fill salesforce contact")
			}
		}
		return existing.ID, false, nil
	}

	var accountID string
	if c.Company != "" {
		accountID, err = salesforce.FindOrCreateAccount(ctx, s.client, c.Company)
		if err != nil {
			return "", false, eris.Wrap(err, "apply: resolve salesforce account")
		}
	}

	id, err := salesforce.CreateContact(ctx, s.client, accountID, salesforce.NewContact{
		FirstName:  first,
		LastName:   last,
		Email:      c.Email,
		Phone:      c.Phone,
		Title:      c.Role,
		LeadSource: c.Source,
	})
	if err != nil {
		return "", false, eris.Wrap(err, "apply: create salesforce contact")
	}
	s.rememberAccount(id, accountID)
	return id, true, nil
}

func (s *SalesforceSink) CreateDeal(ctx context.Context, d model.Deal, _ string) (string, error) {
	stage := d.Stage
	if stage == "" {
		stage = model.StageLead
	}
	stageName, err := StageName(stage)
	if err != nil {
		return "", err
	}
	closeDate := s.now().AddDate(0, 0, defaultCloseDays)
	if d.ExpectedClose != nil {
		closeDate = *d.ExpectedClose
	}
	title := d.Title
	if title == "" {
		title = "New deal"
	}

	id, err := salesforce.CreateOpportunity(ctx, s.client, salesforce.Opportunity{
		Name:      title,
		StageName: stageName,
		Amount:    d.Value,
		CloseDate: closeDate,
		AccountID: s.accountFor(d.ContactID),
	})
	if err != nil {
		return "", eris.Wrap(err, "apply: create opportunity")
	}

	if d.ContactID != "" {
		if err := salesforce.AddContactRole(ctx, s.client, id, d.ContactID); err != nil {
			zap.L().Warn("apply: opportunity contact role failed",
				zap.String("opportunity_id", id),
				zap.String("contact_id", d.ContactID),
				zap.Error(err),
			)
		}
	}
	return id, nil
}

func (s *SalesforceSink) UpdateDealStage(ctx context.Context, contactID, dealID string, stage model.Stage, _ string) (string, error) {
	stageName, err := StageName(stage)
	if err != nil {
		return "", err
	}
	if dealID == "" {
		if contactID == "" {
			return "", eris.New("apply: stage change needs a deal or contact")
		}
		dealID, err = salesforce.FindOpenOpportunityForContact(ctx, s.client, contactID)
		if err != nil {
			return "", eris.Wrap(err, "apply: find open opportunity")
		}
		if dealID == "" {
			return "", eris.Errorf("apply: no open opportunity for contact %s", contactID)
		}
	}
	if err := salesforce.UpdateOpportunityStage(ctx, s.client, dealID, stageName); err != nil {
		return "", eris.Wrap(err, "apply: update opportunity stage")
	}
	return dealID, nil
}

func (s *SalesforceSink) LogInteraction(ctx context.Context, rec model.InteractionRecord, _ string) (string, error) {
	occurred := rec.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	desc := rec.Summary
	if rec.Raw != "" {
		desc += "\n\n---\n" + rec.Raw
	}

	id, err := salesforce.CreateTask(ctx, s.client, salesforce.Task{
		Subject:      truncate(interactionSubject(rec), maxSubjectLen),
		Description:  truncate(desc, maxDescriptionLen),
		Status:       salesforce.TaskStatusCompleted,
		Subtype:      taskSubtype(rec.Type),
		ActivityDate: &occurred,
		WhoID:        rec.ContactID,
		WhatID:       rec.DealID,
	})
	if err != nil {
		return "", eris.Wrap(err, "apply: log salesforce activity")
	}
	return id, nil
}

func (s *SalesforceSink) CreateTasks(ctx context.Context, tasks []model.Task, _ string) ([]TaskOutcome, error) {
	sfTasks := make([]salesforce.Task, len(tasks))
	for i, t := range tasks {
		sfTasks[i] = salesforce.Task{
			Subject:      truncate(t.Title, maxSubjectLen),
			Priority:     sfPriority(t.Priority),
			ActivityDate: t.DueAt,
			WhoID:        t.ContactID,
			WhatID:       t.DealID,
		}
	}

	results, err := salesforce.BulkCreateTasks(ctx, s.client, sfTasks)
	if err != nil {
		return nil, eris.Wrap(err, "apply: bulk create tasks")
	}

	out := make([]TaskOutcome, len(tasks))
	for i := range out {
		if i >= len(results) {
			out[i].Err = eris.New("apply: missing collection result")
			continue
		}
		r := results[i]
		if !r.Success {
			out[i].Err = eris.Errorf("apply: salesforce rejected task: %s", strings.Join(r.Errors, "; "))
			continue
		}
		out[i].ID = r.ID
	}
	return out, nil
}

func interactionSubject(rec model.InteractionRecord) string {
	line := rec.Summary
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	label := string(rec.Type)
	if label == "" {
		label = string(model.InteractionNote)
	}
	return fmt.Sprintf("%s%s: %s", strings.ToUpper(label[:1]), label[1:], strings.TrimSpace(line))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
