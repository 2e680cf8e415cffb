package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ianpcook/agent-crm/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY,
	source_type TEXT NOT NULL,
	input       TEXT NOT NULL,
	plan        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS deals (
	id             TEXT PRIMARY KEY,
	contact_id     TEXT REFERENCES contacts(id),
	title          TEXT NOT NULL,
	value          REAL NOT NULL DEFAULT 0,
	currency       TEXT NOT NULL DEFAULT 'USD',
	stage          TEXT NOT NULL DEFAULT 'lead',
	expected_close DATETIME,
	closed_at      DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS interactions (
	id          TEXT PRIMARY KEY,
	contact_id  TEXT REFERENCES contacts(id),
	deal_id     TEXT REFERENCES deals(id),
	type        TEXT NOT NULL,
	direction   TEXT NOT NULL,
	summary     TEXT NOT NULL,
	raw         TEXT NOT NULL DEFAULT '',
	occurred_at DATETIME NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	contact_id   TEXT REFERENCES contacts(id),
	deal_id      TEXT REFERENCES deals(id),
	title        TEXT NOT NULL,
	due_at       DATETIME,
	priority     TEXT NOT NULL DEFAULT 'normal',
	completed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	old_values TEXT,
	new_values TEXT,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email));
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(lower(name));
CREATE INDEX IF NOT EXISTS idx_deals_contact_id ON deals(contact_id);
CREATE INDEX IF NOT EXISTS idx_interactions_contact_id ON interactions(contact_id);
CREATE INDEX IF NOT EXISTS idx_tasks_contact_id ON tasks(contact_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_record ON audit_log(table_name, record_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePlan(ctx context.Context, input string, plan *model.ExtractionPlan) (*model.PlanRecord, error) {
	if plan == nil {
		return nil, eris.New("sqlite: plan is nil")
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal plan")
	}

	rec := &model.PlanRecord{
		ID:         uuid.New().String(),
		SourceType: plan.SourceType,
		Input:      input,
		Plan:       plan,
		CreatedAt:  s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, source_type, input, plan, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.SourceType), input, string(planJSON), rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert plan")
	}
	return rec, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*model.PlanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_type, input, plan, created_at FROM plans WHERE id = ?`, id,
	)
	rec, err := scanPlan(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plan %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListPlans(ctx context.Context, filter PlanFilter) ([]model.PlanRecord, error) {
	query := `SELECT id, source_type, input, plan, created_at FROM plans WHERE 1=1`
	var args []any

	if filter.SourceType != "" {
		query += ` AND source_type = ?`
		args = append(args, string(filter.SourceType))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list plans")
	}
	defer rows.Close()

	plans := []model.PlanRecord{}
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list plans")
		}
		plans = append(plans, *rec)
	}
	return plans, eris.Wrap(rows.Err(), "sqlite: list plans iterate")
}

func (s *SQLiteStore) UpsertContact(ctx context.Context, c model.Contact, reason string) (*model.Contact, bool, error) {
	if err := validateContact(c); err != nil {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin upsert contact")
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := s.findContact(ctx, tx, c)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if existing == nil {
		c.ID = uuid.New().String()
		c.CreatedAt, c.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO contacts (id, name, email, phone, company, role, source, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Source, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return nil, false, eris.Wrap(err, "sqlite: insert contact")
		}
		if err := s.audit(ctx, tx, TableContacts, c.ID, AuditInsert, nil, c, reason); err != nil {
			return nil, false, err
		}
		return &c, true, eris.Wrap(tx.Commit(), "sqlite: commit upsert contact")
	}

	before := *existing
	if !fillContact(existing, c) {
		return existing, false, eris.Wrap(tx.Commit(), "sqlite: commit upsert contact")
	}
	existing.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		`UPDATE contacts SET email = ?, phone = ?, company = ?, role = ?, source = ?, updated_at = ? WHERE id = ?`,
		existing.Email, existing.Phone, existing.Company, existing.Role, existing.Source, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: update contact %s", existing.ID)
	}
	if err := s.audit(ctx, tx, TableContacts, existing.ID, AuditUpdate, before, *existing, reason); err != nil {
		return nil, false, err
	}
	return existing, false, eris.Wrap(tx.Commit(), "sqlite: commit upsert contact")
}

// findContact matches by email when one is given, then by name among
// contacts that have no email yet.
func (s *SQLiteStore) findContact(ctx context.Context, tx *sql.Tx, c model.Contact) (*model.Contact, error) {
	if c.Email != "" {
		existing, err := scanContact(tx.QueryRowContext(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE lower(email) = lower(?) ORDER BY created_at LIMIT 1`, c.Email,
		))
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, eris.Wrap(err, "sqlite: find contact by email")
		}
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE lower(name) = lower(?) ORDER BY created_at LIMIT 1`
	if c.Email != "" {
		query = `SELECT ` + contactColumns + ` FROM contacts WHERE lower(name) = lower(?) AND email = '' ORDER BY created_at LIMIT 1`
	}
	existing, err := scanContact(tx.QueryRowContext(ctx, query, c.Name))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find contact by name")
	}
	return existing, nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) CreateDeal(ctx context.Context, d model.Deal, reason string) (*model.Deal, error) {
	if err := prepareDeal(&d); err != nil {
		return nil, err
	}
	now := s.now()
	d.ID = uuid.New().String()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.Stage.Closed() {
		d.ClosedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create deal")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deals (id, contact_id, title, value, currency, stage, expected_close, closed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, nullString(d.ContactID), d.Title, d.Value, d.Currency, string(d.Stage),
		d.ExpectedClose, d.ClosedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert deal")
	}
	if err := s.audit(ctx, tx, TableDeals, d.ID, AuditInsert, nil, d, reason); err != nil {
		return nil, err
	}
	return &d, eris.Wrap(tx.Commit(), "sqlite: commit create deal")
}

func (s *SQLiteStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	d, err := scanDeal(s.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = ?`, id,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) LatestOpenDeal(ctx context.Context, contactID string) (*model.Deal, error) {
	d, err := scanDeal(s.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals
		 WHERE contact_id = ? AND stage NOT IN ('won', 'lost')
		 ORDER BY created_at DESC LIMIT 1`, contactID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest open deal for contact %s", contactID)
	}
	return d, nil
}

func (s *SQLiteStore) UpdateDealStage(ctx context.Context, dealID string, stage model.Stage, reason string) (*model.Deal, error) {
	if !model.ValidStage(stage) {
		return nil, eris.Errorf("sqlite: invalid deal stage %q", stage)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin update deal stage")
	}
	defer tx.Rollback() //nolint:errcheck

	before, err := scanDeal(tx.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = ?`, dealID))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", dealID)
	}

	after := *before
	after.Stage = stage
	after.UpdatedAt = s.now()
	after.ClosedAt = nil
	if stage.Closed() {
		closed := after.UpdatedAt
		after.ClosedAt = &closed
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE deals SET stage = ?, closed_at = ?, updated_at = ? WHERE id = ?`,
		string(after.Stage), after.ClosedAt, after.UpdatedAt, dealID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update deal stage %s", dealID)
	}
	if err := checkRowsAffected(res, "deal", dealID); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, tx, TableDeals, dealID, AuditUpdate, *before, after, reason); err != nil {
		return nil, err
	}
	return &after, eris.Wrap(tx.Commit(), "sqlite: commit update deal stage")
}

func (s *SQLiteStore) LogInteraction(ctx context.Context, rec model.InteractionRecord, reason string) (*model.InteractionRecord, error) {
	if err := prepareInteraction(&rec); err != nil {
		return nil, err
	}
	rec.ID = uuid.New().String()
	rec.CreatedAt = s.now()
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = rec.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin log interaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, contact_id, deal_id, type, direction, summary, raw, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.ContactID), nullString(rec.DealID), string(rec.Type), string(rec.Direction),
		rec.Summary, rec.Raw, rec.OccurredAt, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert interaction")
	}
	if err := s.audit(ctx, tx, TableInteractions, rec.ID, AuditInsert, nil, rec, reason); err != nil {
		return nil, err
	}
	return &rec, eris.Wrap(tx.Commit(), "sqlite: commit log interaction")
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task, reason string) (*model.Task, error) {
	if err := prepareTask(&t); err != nil {
		return nil, err
	}
	t.ID = uuid.New().String()
	t.CreatedAt = s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create task")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, contact_id, deal_id, title, due_at, priority, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullString(t.ContactID), nullString(t.DealID), t.Title, t.DueAt, string(t.Priority), t.CompletedAt, t.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert task")
	}
	if err := s.audit(ctx, tx, TableTasks, t.ID, AuditInsert, nil, t, reason); err != nil {
		return nil, err
	}
	return &t, eris.Wrap(tx.Commit(), "sqlite: commit create task")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, table_name, record_id, action, old_values, new_values, reason, created_at FROM audit_log WHERE 1=1`
	var args []any

	if filter.Table != "" {
		query += ` AND table_name = ?`
		args = append(args, filter.Table)
	}
	if filter.RecordID != "" {
		query += ` AND record_id = ?`
		args = append(args, filter.RecordID)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		var oldValues, newValues sql.NullString
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Action, &oldValues, &newValues, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		if oldValues.Valid {
			e.OldValues = json.RawMessage(oldValues.String)
		}
		if newValues.Valid {
			e.NewValues = json.RawMessage(newValues.String)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func (s *SQLiteStore) audit(ctx context.Context, tx *sql.Tx, table, recordID, action string, oldValues, newValues any, reason string) error {
	oldJSON, err := auditJSON(oldValues)
	if err != nil {
		return err
	}
	newJSON, err := auditJSON(newValues)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (table_name, record_id, action, old_values, new_values, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		table, recordID, action, nullJSON(oldJSON), nullJSON(newJSON), reason, s.now(),
	)
	return eris.Wrapf(err, "sqlite: audit %s %s", action, table)
}

// helpers

const (
	contactColumns = `id, name, email, phone, company, role, source, created_at, updated_at`
	dealColumns    = `id, contact_id, title, value, currency, stage, expected_close, closed_at, created_at, updated_at`
)

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPlan(row scannable) (*model.PlanRecord, error) {
	var rec model.PlanRecord
	var planJSON string

	err := row.Scan(&rec.ID, &rec.SourceType, &rec.Input, &planJSON, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan plan")
	}

	rec.Plan = &model.ExtractionPlan{}
	if err := json.Unmarshal([]byte(planJSON), rec.Plan); err != nil {
		return nil, eris.Wrap(err, "unmarshal plan")
	}
	return &rec, nil
}

func scanContact(row scannable) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Role, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan contact")
	}
	return &c, nil
}

func scanDeal(row scannable) (*model.Deal, error) {
	var d model.Deal
	var contactID sql.NullString
	var expectedClose, closedAt sql.NullTime

	err := row.Scan(&d.ID, &contactID, &d.Title, &d.Value, &d.Currency, &d.Stage,
		&expectedClose, &closedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan deal")
	}

	d.ContactID = contactID.String
	if expectedClose.Valid {
		t := expectedClose.Time
		d.ExpectedClose = &t
	}
	if closedAt.Valid {
		t := closedAt.Time
		d.ClosedAt = &t
	}
	return &d, nil
}
