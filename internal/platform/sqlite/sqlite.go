// Package sqlite is an embedded single-file backend implementing the same
// store contracts as the Postgres stores. It backs local development and the
// service tests. Writers are serialized by a mutex and a single connection, so
// row locks are implicit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hrportal/internal/domain/leave"
	"hrportal/internal/requestctx"
)

const (
	tsLayout  = "2006-01-02T15:04:05.000000000Z"
	dayLayout = "2006-01-02"
)

type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB
	q    conn
	mu   *sync.Mutex
	inTx bool
}

// New opens (and migrates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, q: db, mu: &sync.Mutex{}}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Store{db: s.db, q: tx, mu: s.mu, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			requestctx.Logger(ctx).Warn().Err(rbErr).Msg("sqlite rollback failed")
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	user_id TEXT REFERENCES users(id),
	full_name TEXT NOT NULL,
	email TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_employees_org ON employees(organization_id, status);

CREATE TABLE IF NOT EXISTS leave_policies (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	code TEXT NOT NULL,
	display_name TEXT NOT NULL,
	annual_quota INTEGER NOT NULL DEFAULT 0,
	accrual_method TEXT NOT NULL,
	carry_forward_type TEXT NOT NULL,
	carry_forward_limit INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_policies_active_code
	ON leave_policies(organization_id, code) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS leave_balances (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL REFERENCES employees(id),
	policy_id TEXT NOT NULL REFERENCES leave_policies(id),
	organization_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	opening_balance TEXT NOT NULL DEFAULT '0',
	accrued TEXT NOT NULL DEFAULT '0',
	used TEXT NOT NULL DEFAULT '0',
	adjustment TEXT NOT NULL DEFAULT '0',
	current_balance TEXT NOT NULL DEFAULT '0',
	updated_at TEXT NOT NULL,
	UNIQUE (employee_id, policy_id, year)
);

CREATE TABLE IF NOT EXISTS leave_transactions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	employee_id TEXT NOT NULL,
	balance_id TEXT NOT NULL REFERENCES leave_balances(id),
	policy_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	amount TEXT NOT NULL,
	balance_after TEXT NOT NULL,
	reference_id TEXT,
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leave_transactions_balance ON leave_transactions(balance_id, seq);

CREATE TABLE IF NOT EXISTS leave_requests (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL REFERENCES employees(id),
	organization_id TEXT NOT NULL,
	policy_id TEXT REFERENCES leave_policies(id),
	leave_type TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	total_days TEXT NOT NULL,
	is_half_day INTEGER NOT NULL DEFAULT 0,
	half_day_session TEXT,
	reason TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	reviewed_by TEXT,
	review_notes TEXT,
	reviewed_at TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leave_requests_org ON leave_requests(organization_id, status, created_at);

CREATE TABLE IF NOT EXISTS comp_off_grants (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL REFERENCES employees(id),
	organization_id TEXT NOT NULL,
	work_date TEXT NOT NULL,
	hours_worked TEXT NOT NULL,
	days_granted TEXT NOT NULL,
	source TEXT NOT NULL,
	reason TEXT,
	granted_by TEXT NOT NULL,
	is_applied INTEGER NOT NULL DEFAULT 0,
	applied_at TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_records (
	employee_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	date TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY (employee_id, date)
);

CREATE TABLE IF NOT EXISTS leave_accrual_runs (
	organization_id TEXT NOT NULL,
	policy_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	employees_credited INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	PRIMARY KEY (organization_id, policy_id, year, month)
);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	read_at TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(organization_id, user_id, created_at);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	actor_user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	before_json TEXT,
	after_json TEXT,
	request_id TEXT,
	ip TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	details_json TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT
);
`

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func day(t time.Time) string {
	return t.Format(dayLayout)
}

func nullTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseTS(value string) time.Time {
	t, err := time.Parse(tsLayout, value)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, value)
	}
	return t.UTC()
}

func parseNullTS(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTS(value.String)
	return &t
}

func parseDay(value string) time.Time {
	t, _ := time.Parse(dayLayout, value)
	return t
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return leave.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
