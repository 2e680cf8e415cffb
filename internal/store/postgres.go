package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ianpcook/agent-crm/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is implemented by both Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		closeFn: closeFn,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_type TEXT NOT NULL,
	input       TEXT NOT NULL,
	plan        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS deals (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id     TEXT REFERENCES contacts(id),
	title          TEXT NOT NULL,
	value          DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency       TEXT NOT NULL DEFAULT 'USD',
	stage          TEXT NOT NULL DEFAULT 'lead'
	               CHECK (stage IN ('lead', 'qualified', 'proposal', 'negotiation', 'won', 'lost')),
	expected_close TIMESTAMPTZ,
	closed_at      TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interactions (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id  TEXT REFERENCES contacts(id),
	deal_id     TEXT REFERENCES deals(id),
	type        TEXT NOT NULL,
	direction   TEXT NOT NULL,
	summary     TEXT NOT NULL,
	raw         TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id   TEXT REFERENCES contacts(id),
	deal_id      TEXT REFERENCES deals(id),
	title        TEXT NOT NULL,
	due_at       TIMESTAMPTZ,
	priority     TEXT NOT NULL DEFAULT 'normal',
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	table_name TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	action     TEXT NOT NULL,
	old_values JSONB,
	new_values JSONB,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_plans_created_at ON plans(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(lower(email));
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(lower(name));
CREATE INDEX IF NOT EXISTS idx_deals_contact_id ON deals(contact_id);
CREATE INDEX IF NOT EXISTS idx_interactions_contact_id ON interactions(contact_id);
CREATE INDEX IF NOT EXISTS idx_tasks_contact_id ON tasks(contact_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_record ON audit_log(table_name, record_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePlan(ctx context.Context, input string, plan *model.ExtractionPlan) (*model.PlanRecord, error) {
	if plan == nil {
		return nil, eris.New("postgres: plan is nil")
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal plan")
	}

	rec := &model.PlanRecord{
		ID:         uuid.New().String(),
		SourceType: plan.SourceType,
		Input:      input,
		Plan:       plan,
		CreatedAt:  s.now(),
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO plans (id, source_type, input, plan, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, string(rec.SourceType), input, planJSON, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert plan")
	}
	return rec, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*model.PlanRecord, error) {
	var rec model.PlanRecord
	var planJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, source_type, input, plan, created_at FROM plans WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.SourceType, &rec.Input, &planJSON, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get plan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plan %s", id)
	}

	rec.Plan = &model.ExtractionPlan{}
	if err := json.Unmarshal(planJSON, rec.Plan); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal plan")
	}
	return &rec, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, filter PlanFilter) ([]model.PlanRecord, error) {
	query := `SELECT id, source_type, input, plan, created_at FROM plans WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SourceType != "" {
		query += fmt.Sprintf(` AND source_type = $%d`, argIdx)
		args = append(args, string(filter.SourceType))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list plans")
	}
	defer rows.Close()

	plans := []model.PlanRecord{}
	for rows.Next() {
		var rec model.PlanRecord
		var planJSON []byte
		if err := rows.Scan(&rec.ID, &rec.SourceType, &rec.Input, &planJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		rec.Plan = &model.ExtractionPlan{}
		if err := json.Unmarshal(planJSON, rec.Plan); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal plan")
		}
		plans = append(plans, rec)
	}
	return plans, eris.Wrap(rows.Err(), "postgres: list plans iterate")
}

func (s *PostgresStore) UpsertContact(ctx context.Context, c model.Contact, reason string) (*model.Contact, bool, error) {
	if err := validateContact(c); err != nil {
		return nil, false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: begin upsert contact")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := s.findContact(ctx, tx, c)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if existing == nil {
		c.ID = uuid.New().String()
		c.CreatedAt, c.UpdatedAt = now, now
		_, err = tx.Exec(ctx,
			`INSERT INTO contacts (id, name, email, phone, company, role, source, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.Name, c.Email, c.Phone, c.Company, c.Role, c.Source, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return nil, false, eris.Wrap(err, "postgres: insert contact")
		}
		if err := s.audit(ctx, tx, TableContacts, c.ID, AuditInsert, nil, c, reason); err != nil {
			return nil, false, err
		}
		return &c, true, eris.Wrap(tx.Commit(ctx), "postgres: commit upsert contact")
	}

	before := *existing
	if !fillContact(existing, c) {
		return existing, false, eris.Wrap(tx.Commit(ctx), "postgres: commit upsert contact")
	}
	existing.UpdatedAt = now
	_, err = tx.Exec(ctx,
		`UPDATE contacts SET email = $1, phone = $2, company = $3, role = $4, source = $5, updated_at = $6 WHERE id = $7`,
		existing.Email, existing.Phone, existing.Company, existing.Role, existing.Source, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: update contact %s", existing.ID)
	}
	if err := s.audit(ctx, tx, TableContacts, existing.ID, AuditUpdate, before, *existing, reason); err != nil {
		return nil, false, err
	}
	return existing, false, eris.Wrap(tx.Commit(ctx), "postgres: commit upsert contact")
}

// findContact matches by email when one is given, then by name among
// contacts that have no email yet.
func (s *PostgresStore) findContact(ctx context.Context, q querier, c model.Contact) (*model.Contact, error) {
	if c.Email != "" {
		existing, err := pgScanContact(q.QueryRow(ctx,
			`SELECT `+contactColumns+` FROM contacts WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`, c.Email,
		))
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, eris.Wrap(err, "postgres: find contact by email")
		}
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE lower(name) = lower($1) ORDER BY created_at LIMIT 1`
	if c.Email != "" {
		query = `SELECT ` + contactColumns + ` FROM contacts WHERE lower(name) = lower($1) AND email = '' ORDER BY created_at LIMIT 1`
	}
	existing, err := pgScanContact(q.QueryRow(ctx, query, c.Name))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find contact by name")
	}
	return existing, nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	c, err := pgScanContact(s.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", id)
	}
	return c, nil
}

func (s *PostgresStore) CreateDeal(ctx context.Context, d model.Deal, reason string) (*model.Deal, error) {
	if err := prepareDeal(&d); err != nil {
		return nil, err
	}
	now := s.now()
	d.ID = uuid.New().String()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.Stage.Closed() {
		d.ClosedAt = &now
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin create deal")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO deals (id, contact_id, title, value, currency, stage, expected_close, closed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, nullString(d.ContactID), d.Title, d.Value, d.Currency, string(d.Stage),
		d.ExpectedClose, d.ClosedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert deal")
	}
	if err := s.audit(ctx, tx, TableDeals, d.ID, AuditInsert, nil, d, reason); err != nil {
		return nil, err
	}
	return &d, eris.Wrap(tx.Commit(ctx), "postgres: commit create deal")
}

func (s *PostgresStore) GetDeal(ctx context.Context, id string) (*model.Deal, error) {
	d, err := pgScanDeal(s.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", id)
	}
	return d, nil
}

func (s *PostgresStore) LatestOpenDeal(ctx context.Context, contactID string) (*model.Deal, error) {
	d, err := pgScanDeal(s.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals
		 WHERE contact_id = $1 AND stage NOT IN ('won', 'lost')
		 ORDER BY created_at DESC LIMIT 1`, contactID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest open deal for contact %s", contactID)
	}
	return d, nil
}

func (s *PostgresStore) UpdateDealStage(ctx context.Context, dealID string, stage model.Stage, reason string) (*model.Deal, error) {
	if !model.ValidStage(stage) {
		return nil, eris.Errorf("postgres: invalid deal stage %q", stage)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin update deal stage")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	before, err := pgScanDeal(tx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, dealID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deal %s", dealID)
	}

	after := *before
	after.Stage = stage
	after.UpdatedAt = s.now()
	after.ClosedAt = nil
	if stage.Closed() {
		closed := after.UpdatedAt
		after.ClosedAt = &closed
	}

	tag, err := tx.Exec(ctx,
		`UPDATE deals SET stage = $1, closed_at = $2, updated_at = $3 WHERE id = $4`,
		string(after.Stage), after.ClosedAt, after.UpdatedAt, dealID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update deal stage %s", dealID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "deal %s", dealID)
	}
	if err := s.audit(ctx, tx, TableDeals, dealID, AuditUpdate, *before, after, reason); err != nil {
		return nil, err
	}
	return &after, eris.Wrap(tx.Commit(ctx), "postgres: commit update deal stage")
}

func (s *PostgresStore) LogInteraction(ctx context.Context, rec model.InteractionRecord, reason string) (*model.InteractionRecord, error) {
	if err := prepareInteraction(&rec); err != nil {
		return nil, err
	}
	rec.ID = uuid.New().String()
	rec.CreatedAt = s.now()
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = rec.CreatedAt
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin log interaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO interactions (id, contact_id, deal_id, type, direction, summary, raw, occurred_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, nullString(rec.ContactID), nullString(rec.DealID), string(rec.Type), string(rec.Direction),
		rec.Summary, rec.Raw, rec.OccurredAt, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert interaction")
	}
	if err := s.audit(ctx, tx, TableInteractions, rec.ID, AuditInsert, nil, rec, reason); err != nil {
		return nil, err
	}
	return &rec, eris.Wrap(tx.Commit(ctx), "postgres: commit log interaction")
}

func (s *PostgresStore) CreateTask(ctx context.Context, t model.Task, reason string) (*model.Task, error) {
	if err := prepareTask(&t); err != nil {
		return nil, err
	}
	t.ID = uuid.New().String()
	t.CreatedAt = s.now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin create task")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO tasks (id, contact_id, deal_id, title, due_at, priority, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, nullString(t.ContactID), nullString(t.DealID), t.Title, t.DueAt, string(t.Priority), t.CompletedAt, t.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert task")
	}
	if err := s.audit(ctx, tx, TableTasks, t.ID, AuditInsert, nil, t, reason); err != nil {
		return nil, err
	}
	return &t, eris.Wrap(tx.Commit(ctx), "postgres: commit create task")
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, table_name, record_id, action, old_values, new_values, reason, created_at FROM audit_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Table != "" {
		query += fmt.Sprintf(` AND table_name = $%d`, argIdx)
		args = append(args, filter.Table)
		argIdx++
	}
	if filter.RecordID != "" {
		query += fmt.Sprintf(` AND record_id = $%d`, argIdx)
		args = append(args, filter.RecordID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		var oldValues, newValues []byte
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Action, &oldValues, &newValues, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		if oldValues != nil {
			e.OldValues = json.RawMessage(oldValues)
		}
		if newValues != nil {
			e.NewValues = json.RawMessage(newValues)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) audit(ctx context.Context, q querier, table, recordID, action string, oldValues, newValues any, reason string) error {
	oldJSON, err := auditJSON(oldValues)
	if err != nil {
		return err
	}
	newJSON, err := auditJSON(newValues)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO audit_log (table_name, record_id, action, old_values, new_values, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		table, recordID, action, oldJSON, newJSON, reason, s.now(),
	)
	return eris.Wrapf(err, "postgres: audit %s %s", action, table)
}

func pgScanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Role, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan contact")
	}
	return &c, nil
}

func pgScanDeal(row pgx.Row) (*model.Deal, error) {
	var d model.Deal
	var contactID *string

	err := row.Scan(&d.ID, &contactID, &d.Title, &d.Value, &d.Currency, &d.Stage,
		&d.ExpectedClose, &d.ClosedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan deal")
	}
	if contactID != nil {
		d.ContactID = *contactID
	}
	return &d, nil
}
