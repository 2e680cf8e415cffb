package apply

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ianpcook/agent-crm/internal/model"
	"github.com/ianpcook/agent-crm/internal/store"
)

// TaskOutcome is the per-task result of a CreateTasks call.
type TaskOutcome struct {
	ID  string
	Err error
}

// Sink is a CRM backend that accepted actions are written to. IDs are
// sink-native: store UUIDs for the local sink, Salesforce IDs otherwise.
type Sink interface {
	Name() string
	UpsertContact(ctx context.Context, c model.Contact, reason string) (id string, created bool, err error)
	CreateDeal(ctx context.Context, d model.Deal, reason string) (string, error)
	// UpdateDealStage moves dealID to stage. An empty dealID means the most
	// recent open deal of contactID.
	UpdateDealStage(ctx context.Context, contactID, dealID string, stage model.Stage, reason string) (string, error)
	LogInteraction(ctx context.Context, rec model.InteractionRecord, reason string) (string, error)
	// CreateTasks returns one outcome per task, in order. The error is set
	// only when the whole call failed.
	CreateTasks(ctx context.Context, tasks []model.Task, reason string) ([]TaskOutcome, error)
}

// LocalSink writes to the local store, which audits every mutation.
type LocalSink struct {
	st store.Store
}

// NewLocalSink creates a sink backed by st.
func NewLocalSink(st store.Store) *LocalSink {
	return &LocalSink{st: st}
}

func (s *LocalSink) Name() string { return "local" }

func (s *LocalSink) UpsertContact(ctx context.Context, c model.Contact, reason string) (string, bool, error) {
	stored, created, err := s.st.UpsertContact(ctx, c, reason)
	if err != nil {
		return "", false, eris.Wrap(err, "apply: upsert contact")
	}
	return stored.ID, created, nil
}

func (s *LocalSink) CreateDeal(ctx context.Context, d model.Deal, reason string) (string, error) {
	stored, err := s.st.CreateDeal(ctx, d, reason)
	if err != nil {
		return "", eris.Wrap(err, "apply: create deal")
	}
	return stored.ID, nil
}

func (s *LocalSink) UpdateDealStage(ctx context.Context, contactID, dealID string, stage model.Stage, reason string) (string, error) {
	if dealID == "" {
		if contactID == "" {
			return "", eris.New("apply: stage change needs a deal or contact")
		}
		open, err := s.st.LatestOpenDeal(ctx, contactID)
		if err != nil {
			return "", eris.Wrapf(err, "apply: find open deal for contact %s", contactID)
		}
		dealID = open.ID
	}
	d, err := s.st.UpdateDealStage(ctx, dealID, stage, reason)
	if err != nil {
		return "", eris.Wrap(err, "apply: update deal stage")
	}
	return d.ID, nil
}

func (s *LocalSink) LogInteraction(ctx context.Context, rec model.InteractionRecord, reason string) (string, error) {
	stored, err := s.st.LogInteraction(ctx, rec, reason)
	if err != nil {
		return "", eris.Wrap(err, "apply: log interaction")
	}
	return stored.ID, nil
}

func (s *LocalSink) CreateTasks(ctx context.Context, tasks []model.Task, reason string) ([]TaskOutcome, error) {
	out := make([]TaskOutcome, len(tasks))
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "apply: create tasks")
		}
		stored, err := s.st.CreateTask(ctx, t, reason)
		if err != nil {
			out[i].Err = eris.Wrap(err, "apply: create task")
			continue
		}
		out[i].ID = stored.ID
	}
	return out, nil
}
