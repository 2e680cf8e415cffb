package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianpcook/agent-crm/internal/model"
)

func TestFillContact(t *testing.T) {
	t.Parallel()

	existing := &model.Contact{Name: "Sarah Chen", Role: "CTO"}
	changed := fillContact(existing, model.Contact{
		Name:    "sarah chen",
		Role:    "CEO",
		Email:   "sarah@replicate.com",
		Company: "Replicate",
	})

	assert.True(t, changed)
	assert.Equal(t, "Sarah Chen", existing.Name)
	assert.Equal(t, "CTO", existing.Role)
	assert.Equal(t, "sarah@replicate.com", existing.Email)
	assert.Equal(t, "Replicate", existing.Company)

	assert.False(t, fillContact(existing, model.Contact{Role: "COO"}))
}

func TestPrepareDeal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      model.Deal
		want    model.Deal
		wantErr bool
	}{
		{
			name: "defaults",
			in:   model.Deal{Value: 100},
			want: model.Deal{Value: 100, Stage: model.StageLead, Currency: "USD", Title: "New deal"},
		},
		{
			name: "keeps explicit values",
			in:   model.Deal{Title: "Renewal", Stage: model.StageProposal, Currency: "EUR"},
			want: model.Deal{Title: "Renewal", Stage: model.StageProposal, Currency: "EUR"},
		},
		{
			name:    "invalid stage",
			in:      model.Deal{Stage: "archived"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := tt.in
			err := prepareDeal(&d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestPrepareTask(t *testing.T) {
	t.Parallel()

	task := model.Task{Title: "Send proposal"}
	require.NoError(t, prepareTask(&task))
	assert.Equal(t, model.PriorityNormal, task.Priority)

	assert.Error(t, prepareTask(&model.Task{Title: "   "}))
}

func TestPrepareInteraction(t *testing.T) {
	t.Parallel()

	rec := model.InteractionRecord{Summary: "Intro call"}
	require.NoError(t, prepareInteraction(&rec))
	assert.Equal(t, model.InteractionNote, rec.Type)
	assert.Equal(t, model.DirectionOutbound, rec.Direction)

	assert.Error(t, prepareInteraction(&model.InteractionRecord{}))
}

func TestAuditJSON(t *testing.T) {
	t.Parallel()

	b, err := auditJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = auditJSON(model.Task{ID: "t1", Title: "Call back"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"title":"Call back"`)
}

func TestListLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-5))
	assert.Equal(t, 7, listLimit(7))
}
