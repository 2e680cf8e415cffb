package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianpcook/agent-crm/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock, mock.Close), mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS plans`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO plans \(id, source_type, input, plan, created_at\)`).
		WithArgs(pgxmock.AnyArg(), "email", "From: a@b.com", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.SavePlan(context.Background(), "From: a@b.com", testPlan(model.SourceEmail))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.SourceEmail, rec.SourceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	plan := testPlan(model.SourceNote)
	planJSON, err := json.Marshal(plan)
	require.NoError(t, err)
	created := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, source_type, input, plan, created_at FROM plans WHERE id = \$1`).
		WithArgs("plan-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source_type", "input", "plan", "created_at"}).
			AddRow("plan-1", model.SourceNote, "remember renewal", planJSON, created))

	rec, err := s.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", rec.ID)
	assert.Equal(t, "remember renewal", rec.Input)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, plan, rec.Plan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlan_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source_type, input, plan, created_at FROM plans WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPlan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPlans_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	planJSON, err := json.Marshal(testPlan(model.SourceCall))
	require.NoError(t, err)

	mock.ExpectQuery(`FROM plans WHERE true AND source_type = \$1 ORDER BY created_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("call", 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source_type", "input", "plan", "created_at"}).
			AddRow("p1", model.SourceCall, "called", planJSON, time.Now().UTC()))

	plans, err := s.ListPlans(context.Background(), PlanFilter{SourceType: model.SourceCall, Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "p1", plans[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContact_Insert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM contacts WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("sarah@replicate.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM contacts WHERE lower\(name\) = lower\(\$1\) AND email = ''`).
		WithArgs("Sarah Chen").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("contacts", pgxmock.AnyArg(), "INSERT", pgxmock.AnyArg(), pgxmock.AnyArg(), "met at meetup", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c, isNew, err := s.UpsertContact(context.Background(), model.Contact{
		Name:  "Sarah Chen",
		Email: "sarah@replicate.com",
	}, "met at meetup")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContact_ByName(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM contacts WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("Tom Hughes").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, isNew, err := s.UpsertContact(context.Background(), model.Contact{Name: "Tom Hughes"}, "")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContact_FillsGaps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM contacts WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("sarah@replicate.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "phone", "company", "role", "source", "created_at", "updated_at"}).
			AddRow("c1", "Sarah Chen", "sarah@replicate.com", "", "", "CTO", "", created, created))
	mock.ExpectExec(`UPDATE contacts SET email = \$1, phone = \$2, company = \$3, role = \$4, source = \$5, updated_at = \$6 WHERE id = \$7`).
		WithArgs("sarah@replicate.com", "", "Replicate", "CTO", "", pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("contacts", "c1", "UPDATE", pgxmock.AnyArg(), pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c, isNew, err := s.UpsertContact(context.Background(), model.Contact{
		Name:    "Sarah Chen",
		Email:   "sarah@replicate.com",
		Role:    "CEO",
		Company: "Replicate",
	}, "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "CTO", c.Role)
	assert.Equal(t, "Replicate", c.Company)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContact_NameMatchGainsEmail(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM contacts WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("sarah@replicate.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM contacts WHERE lower\(name\) = lower\(\$1\) AND email = ''`).
		WithArgs("sarah chen").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "phone", "company", "role", "source", "created_at", "updated_at"}).
			AddRow("c1", "Sarah Chen", "", "", "", "CTO", "", created, created))
	mock.ExpectExec(`UPDATE contacts SET`).
		WithArgs("sarah@replicate.com", "", "", "CTO", "", pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("contacts", "c1", "UPDATE", pgxmock.AnyArg(), pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c, isNew, err := s.UpsertContact(context.Background(), model.Contact{
		Name:  "sarah chen",
		Role:  "CEO",
		Email: "sarah@replicate.com",
	}, "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Sarah Chen", c.Name)
	assert.Equal(t, "CTO", c.Role)
	assert.Equal(t, "sarah@replicate.com", c.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContact_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, _, err := s.UpsertContact(context.Background(), model.Contact{Name: "Tom Hughes"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin upsert contact")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDeal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs(pgxmock.AnyArg(), "c1", "New deal", 30000.0, "USD", "lead",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("deals", pgxmock.AnyArg(), "INSERT", pgxmock.AnyArg(), pgxmock.AnyArg(), "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	d, err := s.CreateDeal(context.Background(), model.Deal{ContactID: "c1", Value: 30000}, "")
	require.NoError(t, err)
	assert.Equal(t, model.StageLead, d.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDeal_InsertErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs(anyArgs(10)...).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	_, err := s.CreateDeal(context.Background(), model.Deal{ContactID: "nope"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert deal")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDealStage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM deals WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.UpdateDealStage(context.Background(), "missing", model.StageWon, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDealStage_InvalidStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.UpdateDealStage(context.Background(), "d1", model.Stage("archived"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid deal stage")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogInteraction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO interactions`).
		WithArgs(pgxmock.AnyArg(), "c1", nil, "call", "outbound", "Discussed pricing", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := s.LogInteraction(context.Background(), model.InteractionRecord{
		ContactID: "c1",
		Type:      model.InteractionCall,
		Summary:   "Discussed pricing",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionOutbound, rec.Direction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateTask(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(pgxmock.AnyArg(), nil, nil, "Send proposal", pgxmock.AnyArg(), "normal", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("tasks", pgxmock.AnyArg(), "INSERT", pgxmock.AnyArg(), pgxmock.AnyArg(), "plan p1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	task, err := s.CreateTask(context.Background(), model.Task{Title: "Send proposal"}, "plan p1")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityNormal, task.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM audit_log WHERE true AND table_name = \$1 ORDER BY id LIMIT \$2`).
		WithArgs("deals", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "table_name", "record_id", "action", "old_values", "new_values", "reason", "created_at"}).
			AddRow(int64(1), "deals", "d1", "INSERT", []byte(nil), []byte(`{"id":"d1"}`), "", created).
			AddRow(int64(2), "deals", "d1", "UPDATE", []byte(`{"id":"d1"}`), []byte(`{"id":"d1","stage":"won"}`), "signed", created))

	entries, err := s.ListAudit(context.Background(), AuditFilter{Table: "deals"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].OldValues)
	assert.JSONEq(t, `{"id":"d1","stage":"won"}`, string(entries[1].NewValues))
	assert.Equal(t, "signed", entries[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	called := false
	s := newPostgresStore(nil, func() { called = true })
	require.NoError(t, s.Close())
	assert.True(t, called)
}
