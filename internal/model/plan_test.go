package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		in   string
		want SourceType
	}{
		{"", SourceAuto},
		{"auto", SourceAuto},
		{"email", SourceEmail},
		{"call", SourceCall},
		{"meeting", SourceMeeting},
		{"note", SourceNote},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSourceType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSourceType("fax")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source type "fax"`)

	_, err = ParseSourceType("Email")
	assert.Error(t, err, "source types are case sensitive")
}

func TestValidStage(t *testing.T) {
	for _, s := range []Stage{StageLead, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost} {
		assert.True(t, ValidStage(s), s)
	}
	assert.False(t, ValidStage(""))
	assert.False(t, ValidStage("closed_won"))
}

func TestStageClosed(t *testing.T) {
	assert.True(t, StageWon.Closed())
	assert.True(t, StageLost.Closed())
	assert.False(t, StageProposal.Closed())
	assert.False(t, StageLead.Closed())
}
