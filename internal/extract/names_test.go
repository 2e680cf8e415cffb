package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianpcook/agent-crm/internal/model"
)

func findName(names []model.NameCandidate, name string) (model.NameCandidate, bool) {
	for _, n := range names {
		if n.Name == name {
			return n, true
		}
	}
	return model.NameCandidate{}, false
}

func TestMergeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		existing  model.NameCandidate
		candidate model.NameCandidate
		want      model.NameCandidate
	}{
		{
			name:      "fills empty role and company",
			existing:  model.NameCandidate{Name: "Sarah Chen"},
			candidate: model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
			want:      model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
		},
		{
			name:      "keeps populated role, fills company",
			existing:  model.NameCandidate{Name: "Sarah Chen", Role: "CTO"},
			candidate: model.NameCandidate{Name: "Sarah Chen", Role: "CEO", Company: "Replicate"},
			want:      model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
		},
		{
			name:      "keeps populated company, fills role",
			existing:  model.NameCandidate{Name: "Sarah Chen", Company: "Replicate"},
			candidate: model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Acme"},
			want:      model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
		},
		{
			name:      "empty candidate changes nothing",
			existing:  model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
			candidate: model.NameCandidate{Name: "Sarah Chen"},
			want:      model.NameCandidate{Name: "Sarah Chen", Role: "CTO", Company: "Replicate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MergeName(tt.existing, tt.candidate))
		})
	}
}

func TestFoldNames_OrderIndependentFields(t *testing.T) {
	t.Parallel()

	a := model.NameCandidate{Name: "Priya Nair", Role: "VP of Sales"}
	b := model.NameCandidate{Name: "Priya Nair", Company: "Globex"}

	forward := foldNames([]model.NameCandidate{a, b})
	backward := foldNames([]model.NameCandidate{b, a})

	require.Len(t, forward, 1)
	assert.Equal(t, forward, backward)
	assert.Equal(t, "VP of Sales", forward[0].Role)
	assert.Equal(t, "Globex", forward[0].Company)
}

func TestAcceptName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"", false},
		{"Hi", false},
		{"Bob", false},
		{"Thanks", false},
		{"Best Regards", false},
		{"Hi Sarah", false},
		{"Jo", false},
		{"Dana", true},
		{"Al Li", true},
		{"Sarah Chen", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, acceptName(tt.name))
		})
	}
}

func TestExtractNames_StopWordsNeverEmitted(t *testing.T) {
	t.Parallel()

	names := ExtractNames("Hi,\nThanks for the call today.\n\nBest Regards\n")
	for _, n := range names {
		assert.NotEqual(t, "Hi", n.Name)
		assert.NotEqual(t, "Thanks", n.Name)
		assert.NotEqual(t, "Best Regards", n.Name)
	}
}

func TestExtractNames_SignatureTitleCompany(t *testing.T) {
	t.Parallel()

	text := "Looking forward to it.\n\nMarcus Webb\nVP of Sales, Initech\nmarcus@initech.com"

	n, ok := findName(ExtractNames(text), "Marcus Webb")
	require.True(t, ok)
	assert.Equal(t, "VP of Sales", n.Role)
	assert.Equal(t, "Initech", n.Company)
}

func TestExtractNames_SignatureBareTitle(t *testing.T) {
	t.Parallel()

	n, ok := findName(ExtractNames("See attached.\n\nLena Ortiz\nHead of Procurement\n"), "Lena Ortiz")
	require.True(t, ok)
	assert.Equal(t, "Head of Procurement", n.Role)
	assert.Empty(t, n.Company)
}

func TestExtractNames_Valediction(t *testing.T) {
	t.Parallel()

	names := ExtractNames("Let me know what works.\n\nThanks,\nDana\n")
	_, ok := findName(names, "Dana")
	assert.True(t, ok)
}

func TestExtractNames_InlineTitle(t *testing.T) {
	t.Parallel()

	names := ExtractNames("I spoke with Priya Nair, VP of Engineering at Globex yesterday.")

	n, ok := findName(names, "Priya Nair")
	require.True(t, ok)
	assert.Equal(t, "VP of Engineering", n.Role)
	assert.Equal(t, "Globex", n.Company)

	_, ok = findName(names, "Engineering")
	assert.False(t, ok)
}

func TestExtractNames_ActionVerb(t *testing.T) {
	t.Parallel()

	names := ExtractNames("Called Tom Hughes about the renewal.")
	require.Len(t, names, 1)
	assert.Equal(t, "Tom Hughes", names[0].Name)
}

func TestExtractNames_NameCompany(t *testing.T) {
	t.Parallel()

	names := ExtractNames("Quick sync with Jordan Blake from Hooli about onboarding.")

	n, ok := findName(names, "Jordan Blake")
	require.True(t, ok)
	assert.Equal(t, "Hooli", n.Company)

	// The single-word variant must not credit the surname on its own.
	_, ok = findName(names, "Blake")
	assert.False(t, ok)
}

func TestExtractNames_FromHeader(t *testing.T) {
	t.Parallel()

	names := ExtractNames("From: \"Ana Silva\" <ana@umbrella.co>\nSubject: hello\n\nok")
	_, ok := findName(names, "Ana Silva")
	assert.True(t, ok)

	assert.Empty(t, ExtractNames("From: billing@umbrella.co\n\nok"))
}

func TestExtractNames_StandaloneLine(t *testing.T) {
	t.Parallel()

	text := "Notes from the booth\n\nKevin Moss\nStark Industries\n"

	n, ok := findName(ExtractNames(text), "Kevin Moss")
	require.True(t, ok)
	assert.Equal(t, "Stark Industries", n.Company)
}

func TestExtractNames_FirstMentionWinsRole(t *testing.T) {
	t.Parallel()

	text := "Met with Sarah Chen, CTO at Replicate.\n\nLater: Sarah Chen, CEO of everything."

	n, ok := findName(ExtractNames(text), "Sarah Chen")
	require.True(t, ok)
	assert.Equal(t, "CTO", n.Role)
	assert.Equal(t, "Replicate", n.Company)
}
