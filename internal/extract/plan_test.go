package extract

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianpcook/agent-crm/internal/model"
)

var fixedNow = time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func actionKinds(actions []model.SuggestedAction) []model.ActionType {
	out := make([]model.ActionType, len(actions))
	for i, a := range actions {
		out[i] = a.Action
	}
	return out
}

const scenarioA = "Met Sarah Chen at the AI meetup. She's CTO at Replicate, interested in our API. Email is sarah@replicate.com"

const scenarioB = "From: Dana Whitfield <dana@acme.io>\n" +
	"To: me@example.com\n" +
	"Subject: Pricing\n" +
	"Date: Mon, 3 Mar 2025 10:00:00 -0500\n" +
	"\n" +
	"Hi,\n" +
	"\n" +
	"We have budget of $30K for this. Could you send over a proposal by Friday?\n" +
	"\n" +
	"Thanks,\n" +
	"Dana Whitfield\n"

func TestExtract_ScenarioMeetingNote(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract(scenarioA, model.SourceAuto)

	sarah, ok := findName(plan.Contacts.Names, "Sarah Chen")
	require.True(t, ok)
	if sarah.Company != "" {
		assert.Contains(t, sarah.Company, "Replicate")
	}
	assert.Equal(t, []string{"sarah@replicate.com"}, plan.Contacts.Emails)
	assert.Contains(t, plan.Contacts.Companies, "Replicate")
	assert.Contains(t, plan.DealSignals.StageHints, model.StageQualified)
	assert.Equal(t, model.InteractionMeeting, plan.Interaction.Type)
	assert.Equal(t, model.SourceMeeting, plan.SourceType)
	assert.Equal(t, model.DirectionOutbound, plan.Interaction.Direction)
	assert.Nil(t, plan.Interaction.OccurredAt)
	assert.Nil(t, plan.EmailMetadata)
	assert.Equal(t, fixedNow, plan.ExtractedAt)

	require.NotEmpty(t, plan.SuggestedActions)
	first := plan.SuggestedActions[0]
	assert.Equal(t, model.ActionContact, first.Action)
	require.NotNil(t, first.Contact)
	assert.Equal(t, "Sarah Chen", first.Contact.Name)
	assert.Equal(t, "sarah@replicate.com", first.Contact.Email)
}

func TestExtract_ScenarioEmail(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract(scenarioB, model.SourceAuto)

	require.NotNil(t, plan.EmailMetadata)
	assert.Equal(t, "Dana Whitfield <dana@acme.io>", plan.EmailMetadata.From)
	require.NotEmpty(t, plan.Money)
	assert.InDelta(t, 30000.0, plan.Money[0].Value, 0.001)
	assert.Contains(t, plan.DealSignals.StageHints, model.StageProposal)

	assert.Equal(t, model.SourceEmail, plan.SourceType)
	assert.Equal(t, model.InteractionEmail, plan.Interaction.Type)
	assert.Equal(t, model.DirectionInbound, plan.Interaction.Direction)
	require.NotNil(t, plan.Interaction.OccurredAt)
	assert.Equal(t, "Mon, 3 Mar 2025 10:00:00 -0500", *plan.Interaction.OccurredAt)

	assert.Equal(t, []model.ActionType{
		model.ActionContact,
		model.ActionDeal,
		model.ActionDealStage,
		model.ActionInteraction,
		model.ActionTask,
	}, actionKinds(plan.SuggestedActions))

	deal := plan.SuggestedActions[1].Deal
	require.NotNil(t, deal)
	assert.InDelta(t, 30000.0, deal.Value, 0.001)
	assert.Equal(t, plan.DealSignals, deal.Signals)

	stage := plan.SuggestedActions[2].Stage
	require.NotNil(t, stage)
	assert.Equal(t, model.StageProposal, stage.Stage)

	li := plan.SuggestedActions[3].Interaction
	require.NotNil(t, li)
	assert.True(t, li.SummaryRequired)
	assert.Equal(t, model.InteractionEmail, li.Type)

	task := plan.SuggestedActions[4].Task
	require.NotNil(t, task)
	assert.Contains(t, task.Title, "proposal")

	// Two addresses are present, so neither is attached to the contact.
	assert.Empty(t, plan.SuggestedActions[0].Contact.Email)
}

func TestExtract_StageActionUsesPriorityOrder(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract("They signed the order form. They were interested all along.", model.SourceAuto)
	for _, a := range plan.SuggestedActions {
		if a.Action == model.ActionDealStage {
			assert.Equal(t, model.StageQualified, a.Stage.Stage)
			return
		}
	}
	t.Fatal("no update_deal_stage action")
}

func TestExtract_TaskActionsCapped(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"We need to send the pricing sheet to finance.",
		"We should book the onsite workshop soon.",
		"I will draft the security questionnaire answers.",
		"They must confirm the procurement contact.",
		"We have to align on the rollout timeline.",
		"Todo: update the CRM with new stakeholders",
		"Task: prepare the quarterly business review deck",
		"Action item: share the integration docs with IT",
	}, "\n")

	plan := newTestEngine().Extract(text, model.SourceNote)
	assert.LessOrEqual(t, len(plan.PotentialTasks), 5)

	n := 0
	for _, a := range plan.SuggestedActions {
		if a.Action == model.ActionTask {
			n++
		}
	}
	assert.Equal(t, 3, n)
}

func TestExtract_TaskDueHint(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract("We need to send the contract next Tuesday.", model.SourceNote)

	var task *model.TaskPayload
	for _, a := range plan.SuggestedActions {
		if a.Action == model.ActionTask {
			task = a.Task
			break
		}
	}
	require.NotNil(t, task)
	assert.Equal(t, "send the contract next Tuesday", task.Title)
	assert.Equal(t, "next Tuesday", task.DueHint)
}

func TestExtract_SourceOverride(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract(scenarioA, model.SourceCall)
	assert.Equal(t, model.SourceCall, plan.SourceType)
	assert.Equal(t, model.InteractionMeeting, plan.Interaction.Type, "type still comes from the text")

	plan = newTestEngine().Extract("Called Bob Jones about pricing", model.SourceNote)
	assert.Equal(t, model.SourceNote, plan.SourceType)
	assert.Equal(t, model.InteractionCall, plan.Interaction.Type)

	for _, a := range plan.SuggestedActions {
		if a.Action == model.ActionInteraction {
			assert.Equal(t, model.InteractionCall, a.Interaction.Type)
		}
	}
}

func TestExtract_NothingRecognized(t *testing.T) {
	t.Parallel()

	plan := newTestEngine().Extract("ok", model.SourceAuto)

	assert.Equal(t, model.SourceNote, plan.SourceType)
	assert.Empty(t, plan.Contacts.Names)
	assert.Empty(t, plan.Money)
	assert.Empty(t, plan.PotentialTasks)
	require.Len(t, plan.SuggestedActions, 1)
	assert.Equal(t, model.ActionInteraction, plan.SuggestedActions[0].Action)

	raw, err := json.Marshal(plan)
	require.NoError(t, err)
	for _, field := range []string{`"names":[]`, `"emails":[]`, `"money":[]`, `"dates":[]`, `"potential_tasks":[]`, `"stage_hints":[]`, `"email_metadata":null`} {
		assert.Contains(t, string(raw), field)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	for _, text := range []string{scenarioA, scenarioB} {
		first, err := json.Marshal(e.Extract(text, model.SourceAuto))
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := json.Marshal(e.Extract(text, model.SourceAuto))
			require.NoError(t, err)
			assert.Equal(t, string(first), string(again))
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Let's meet\nfinal terms", Normalize("Let’s meet\r\nﬁnal terms"))

	plan := newTestEngine().Extract(Normalize("Budget is ＄５０Ｋ"), model.SourceAuto)
	require.NotEmpty(t, plan.Money)
	assert.InDelta(t, 50000.0, plan.Money[0].Value, 0.001)
}

func TestValidateInput(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, ValidateInput(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateInput(" \n\t"), ErrEmptyInput)
	assert.NoError(t, ValidateInput("Met Sarah"))
}

func TestPackageExtract(t *testing.T) {
	t.Parallel()

	plan := Extract(scenarioB, model.SourceAuto)
	assert.False(t, plan.ExtractedAt.IsZero())
	assert.Equal(t, model.SourceEmail, plan.SourceType)
}
