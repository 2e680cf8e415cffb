package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ianpcook/agent-crm/internal/model"
)

func TestFormatPlansList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	plans := []model.PlanRecord{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			SourceType: model.SourceEmail,
			Input:      "From: Dana Whitfield <dana@acme.io>\nSubject: Pricing",
			Plan: &model.ExtractionPlan{
				Contacts:         model.Contacts{Names: []model.NameCandidate{{Name: "Dana Whitfield"}}},
				SuggestedActions: make([]model.SuggestedAction, 4),
			},
			CreatedAt: now,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			SourceType: model.SourceNote,
			Input:      "quick note",
			CreatedAt:  now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatPlansList(&buf, plans)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "email")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "From: Dana Whitfield <dana@acme.io>")
	assert.NotContains(t, output, "Subject: Pricing")
	assert.Contains(t, output, "def12345")
	assert.Contains(t, output, "quick note")
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "first", preview("first\nsecond", 10))
	assert.Equal(t, "abcdefg...", preview("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo w...", preview("héllo wörld and more", 10))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
