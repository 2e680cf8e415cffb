package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	text := "From: Dana Whitfield <dana@acme.io>\n" +
		"To: me@example.com\n" +
		"Subject: Pricing\n" +
		"Date: Mon, 3 Mar 2025 10:00:00 -0500\n" +
		"\n" +
		"Hi,\n" +
		"\n" +
		"Can we talk pricing?\n"

	env := ParseEnvelope(text)
	require.NotNil(t, env)
	assert.Equal(t, "Dana Whitfield <dana@acme.io>", env.From)
	assert.Equal(t, "me@example.com", env.To)
	assert.Equal(t, "Pricing", env.Subject)
	assert.Equal(t, "Mon, 3 Mar 2025 10:00:00 -0500", env.Date)
	assert.Equal(t, "Hi,\n\nCan we talk pricing?", env.Body)
}

func TestParseEnvelope_NoHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseEnvelope("Met Sarah at the conference.\n\nFollow up next week."))
	assert.Nil(t, ParseEnvelope(""))
}

func TestParseEnvelope_CaseInsensitiveAndIndented(t *testing.T) {
	t.Parallel()

	env := ParseEnvelope("  FROM: ops@globex.com\n  subject:  Renewal \n\nbody")
	require.NotNil(t, env)
	assert.Equal(t, "ops@globex.com", env.From)
	assert.Equal(t, "Renewal", env.Subject)
	assert.Empty(t, env.To)
	assert.Equal(t, "body", env.Body)
}

func TestParseEnvelope_BlankLineBeforeHeadersIsNotSplit(t *testing.T) {
	t.Parallel()

	text := "---------- Forwarded message ---------\n" +
		"\n" +
		"From: Lee Park <lee@initech.com>\n" +
		"To: team@example.com\n" +
		"\n" +
		"Numbers attached."

	env := ParseEnvelope(text)
	require.NotNil(t, env)
	assert.Equal(t, "Lee Park <lee@initech.com>", env.From)
	assert.Equal(t, "Numbers attached.", env.Body)
}

func TestParseEnvelope_FirstHeaderWins(t *testing.T) {
	t.Parallel()

	text := "From: first@example.com\n" +
		"\n" +
		"> From: second@example.com\n" +
		"From: quoted@example.com\n" +
		"\n" +
		"tail"

	env := ParseEnvelope(text)
	require.NotNil(t, env)
	assert.Equal(t, "first@example.com", env.From)
	assert.Equal(t, "tail", env.Body)
}

func TestParseEnvelope_NoBlankLineAfterHeaders(t *testing.T) {
	t.Parallel()

	env := ParseEnvelope("Subject: quick note\nsee you tomorrow")
	require.NotNil(t, env)
	assert.Equal(t, "quick note", env.Subject)
	assert.Equal(t, "see you tomorrow", env.Body)
}
