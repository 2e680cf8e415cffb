// Package apply executes reviewer-accepted suggested actions of an
// extraction plan against a CRM sink.
package apply

import (
	"context"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ianpcook/agent-crm/internal/dates"
	"github.com/ianpcook/agent-crm/internal/model"
)

// Action statuses.
const (
	StatusApplied = "applied"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ErrSummaryRequired is returned when an accepted log_interaction action has
// no reviewer summary.
var ErrSummaryRequired = eris.New("apply: summary is required to log an interaction")

// Request selects which actions of a plan to execute.
type Request struct {
	PlanID string
	Plan   *model.ExtractionPlan
	// Input is the raw text the plan was extracted from. It is kept on the
	// logged interaction.
	Input string
	// Accept lists indices into Plan.SuggestedActions.
	Accept  []int
	Summary string
	Reason  string
}

// ActionResult is the outcome of one suggested action.
type ActionResult struct {
	Index    int              `json:"index"`
	Action   model.ActionType `json:"action"`
	Status   string           `json:"status"`
	RecordID string           `json:"record_id,omitempty"`
	Created  bool             `json:"created,omitempty"`
	DueAt    *time.Time       `json:"due_at,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Result summarizes an apply run.
type Result struct {
	PlanID  string         `json:"plan_id,omitempty"`
	Sink    string         `json:"sink"`
	Applied int            `json:"applied"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Actions []ActionResult `json:"actions"`
}

// Executor runs accepted actions in plan order.
type Executor struct {
	sink Sink
	now  func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the base time for due-date resolution and default
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an Executor writing to sink.
func NewExecutor(sink Sink, opts ...Option) *Executor {
	e := &Executor{sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the records created so far in one Apply call.
type run struct {
	source    string
	contactID string
	contact   *model.ContactPayload
	dealID    string
}

// Apply executes the accepted actions of req.Plan. Validation problems
// (unknown indices, missing summary) fail the whole request before anything
// is written. Individual sink failures are recorded per action and the
// remaining actions still run; a cancelled context stops the run.
func (e *Executor) Apply(ctx context.Context, req Request) (*Result, error) {
	if req.Plan == nil {
		return nil, eris.New("apply: plan is nil")
	}
	accepted, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		PlanID:  req.PlanID,
		Sink:    e.sink.Name(),
		Actions: make([]ActionResult, len(req.Plan.SuggestedActions)),
	}
	reason := req.Reason
	if reason == "" && req.PlanID != "" {
		reason = "plan " + req.PlanID
	}

	r := run{source: string(req.Plan.SourceType)}
	var taskIdx []int

	for i, action := range req.Plan.SuggestedActions {
		ar := &res.Actions[i]
		ar.Index = i
		ar.Action = action.Action
		if !accepted[i] {
			ar.Status = StatusSkipped
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "apply: cancelled")
		}

		switch action.Action {
		case model.ActionContact:
			e.applyContact(ctx, &r, action.Contact, reason, ar)
		case model.ActionDeal:
			e.applyDeal(ctx, &r, action.Deal, reason, ar)
		case model.ActionDealStage:
			e.applyStage(ctx, &r, action.Stage, reason, ar)
		case model.ActionInteraction:
			e.applyInteraction(ctx, &r, action.Interaction, req, reason, ar)
		case model.ActionTask:
			// Tasks go to the sink in one call once everything they may
			// link to exists.
			taskIdx = append(taskIdx, i)
		default:
			fail(ar, eris.Errorf("apply: unknown action %q", action.Action))
		}
	}

	if len(taskIdx) > 0 {
		if err := e.applyTasks(ctx, &r, req.Plan.SuggestedActions, taskIdx, reason, res.Actions); err != nil {
			return res, err
		}
	}

	for _, ar := range res.Actions {
		switch ar.Status {
		case StatusApplied:
			res.Applied++
		case StatusFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (e *Executor) validate(req Request) (map[int]bool, error) {
	n := len(req.Plan.SuggestedActions)
	accepted := make(map[int]bool, len(req.Accept))
	for _, idx := range req.Accept {
		if idx < 0 || idx >= n {
			return nil, eris.Errorf("apply: action index %d out of range (plan has %d actions)", idx, n)
		}
		accepted[idx] = true
	}
	for idx := range accepted {
		a := req.Plan.SuggestedActions[idx]
		if payloadMissing(a) {
			return nil, eris.Errorf("apply: action %d (%s) has no payload", idx, a.Action)
		}
		if a.Action == model.ActionInteraction && strings.TrimSpace(req.Summary) == "" {
			return nil, eris.Wrapf(ErrSummaryRequired, "apply: action %d", idx)
		}
	}
	return accepted, nil
}

func payloadMissing(a model.SuggestedAction) bool {
	switch a.Action {
	case model.ActionContact:
		return a.Contact == nil
	case model.ActionDeal:
		return a.Deal == nil
	case model.ActionDealStage:
		return a.Stage == nil
	case model.ActionInteraction:
		return a.Interaction == nil
	case model.ActionTask:
		return a.Task == nil
	}
	return false
}

func (e *Executor) applyContact(ctx context.Context, r *run, p *model.ContactPayload, reason string, ar *ActionResult) {
	id, created, err := e.sink.UpsertContact(ctx, model.Contact{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Company: p.Company,
		Role:    p.Role,
		Source:  r.source,
	}, reason)
	if err != nil {
		fail(ar, err)
		return
	}
	ar.Status = StatusApplied
	ar.RecordID = id
	ar.Created = created
	if r.contactID == "" {
		r.contactID = id
		r.contact = p
	}
}

func (e *Executor) applyDeal(ctx context.Context, r *run, p *model.DealPayload, reason string, ar *ActionResult) {
	d := model.Deal{
		ContactID: r.contactID,
		Title:     dealTitle(r.contact),
		Value:     p.Value,
		Currency:  p.Currency,
		Stage:     model.StageLead,
	}
	id, err := e.sink.CreateDeal(ctx, d, reason)
	if err != nil {
		fail(ar, err)
		return
	}
	ar.Status = StatusApplied
	ar.RecordID = id
	ar.Created = true
	r.dealID = id
}

func (e *Executor) applyStage(ctx context.Context, r *run, p *model.StagePayload, reason string, ar *ActionResult) {
	if !model.ValidStage(p.Stage) {
		fail(ar, eris.Errorf("apply: invalid deal stage %q", p.Stage))
		return
	}
	id, err := e.sink.UpdateDealStage(ctx, r.contactID, r.dealID, p.Stage, reason)
	if err != nil {
		fail(ar, err)
		return
	}
	ar.Status = StatusApplied
	ar.RecordID = id
	r.dealID = id
}

func (e *Executor) applyInteraction(ctx context.Context, r *run, p *model.InteractionPayload, req Request, reason string, ar *ActionResult) {
	rec := model.InteractionRecord{
		ContactID:  r.contactID,
		DealID:     r.dealID,
		Type:       p.Type,
		Direction:  p.Direction,
		Summary:    strings.TrimSpace(req.Summary),
		Raw:        req.Input,
		OccurredAt: e.occurredAt(p.OccurredAt),
	}
	id, err := e.sink.LogInteraction(ctx, rec, reason)
	if err != nil {
		fail(ar, err)
		return
	}
	ar.Status = StatusApplied
	ar.RecordID = id
	ar.Created = true
}

func (e *Executor) applyTasks(ctx context.Context, r *run, actions []model.SuggestedAction, idx []int, reason string, results []ActionResult) error {
	base := e.now()
	tasks := make([]model.Task, len(idx))
	for i, ai := range idx {
		p := actions[ai].Task
		tasks[i] = model.Task{
			ContactID: r.contactID,
			DealID:    r.dealID,
			Title:     p.Title,
			Priority:  model.PriorityNormal,
		}
		if p.DueHint == "" {
			continue
		}
		due, err := dates.Resolve(p.DueHint, base)
		if err != nil {
			zap.L().Debug("apply: due hint not resolved",
				zap.String("due_hint", p.DueHint),
				zap.Error(err),
			)
			continue
		}
		tasks[i].DueAt = &due
	}

	outcomes, err := e.sink.CreateTasks(ctx, tasks, reason)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(err, "apply: cancelled")
		}
		for _, ai := range idx {
			fail(&results[ai], err)
		}
		return nil
	}

	for i, ai := range idx {
		ar := &results[ai]
		if i >= len(outcomes) {
			fail(ar, eris.New("apply: sink returned too few task outcomes"))
			continue
		}
		if outcomes[i].Err != nil {
			fail(ar, outcomes[i].Err)
			continue
		}
		ar.Status = StatusApplied
		ar.RecordID = outcomes[i].ID
		ar.Created = true
		ar.DueAt = tasks[i].DueAt
	}
	return nil
}

// occurredAt parses the plan's raw Date header, falling back to now.
func (e *Executor) occurredAt(raw *string) time.Time {
	if raw != nil {
		if t, err := mail.ParseDate(*raw); err == nil {
			return t.UTC()
		}
	}
	return e.now().UTC()
}

func dealTitle(c *model.ContactPayload) string {
	if c == nil {
		return ""
	}
	if c.Company != "" {
		return c.Company + " deal"
	}
	return c.Name + " deal"
}

func fail(ar *ActionResult, err error) {
	ar.Status = StatusFailed
	ar.Error = err.Error()
	zap.L().Warn("apply: action failed",
		zap.Int("index", ar.Index),
		zap.String("action", string(ar.Action)),
		zap.Error(err),
	)
}

// ParseAccept parses a comma-separated list of action indices ("0,2,3").
// "all" accepts every action of a plan with n actions.
func ParseAccept(s string, n int) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.EqualFold(s, "all") {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, eris.Errorf("apply: invalid action index %q", part)
		}
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out, nil
}
