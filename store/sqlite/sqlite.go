/*
Package sqlite provides a SQLite-backed project.Store.

PURPOSE:
  Persists projects, their ordered schedules, their current commercial terms
  and the documents produced for them. The forecast engine never reads from
  here directly; hosts load a project snapshot and pass it in.

KEY TABLES:
  projects:   One row per contract, including the current terms
  activities: Schedule rows, ordered by position within a project
  documents:  Exported forecasts and raw extraction replies

MONEY:
  Activity values and percentages are stored as decimal TEXT, never REAL, so
  a round trip through the database is exact.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./cashflow.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - project/project.go: Store interface
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// Store implements project.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ project.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		payment_period INTEGER NOT NULL,
		honor_cert_period INTEGER NOT NULL,
		retention_percent TEXT NOT NULL,
		retention_limit TEXT NOT NULL,
		terms_source TEXT NOT NULL DEFAULT 'default',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Schedule rows; position keeps insertion order stable across edits
	CREATE TABLE IF NOT EXISTS activities (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (project_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_activities_project_position
		ON activities(project_id, position);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_project
		ON documents(project_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) CreateProject(ctx context.Context, p project.Project) error {
	if err := p.Terms.Validate(); err != nil {
		return err
	}
	for _, a := range p.Activities {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	if p.TermsSource == "" {
		p.TermsSource = terms.SourceDefault
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects
		(id, name, currency, payment_period, honor_cert_period, retention_percent,
		 retention_limit, terms_source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Name,
		p.Currency,
		p.Terms.PaymentPeriodDays,
		p.Terms.HonouringPeriodDays,
		p.Terms.RetentionPercent.String(),
		p.Terms.RetentionLimitPercent.String(),
		p.TermsSource,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: project %s", generic.ErrDuplicateID, p.ID)
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}

	for i, a := range p.Activities {
		if err := insertActivity(ctx, tx, p.ID, i+1, a); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetProject(ctx context.Context, id project.ID) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, currency, payment_period, honor_cert_period, retention_percent,
		       retention_limit, terms_source, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	if err != nil {
		return project.Project{}, err
	}

	p.Activities, err = s.loadActivities(ctx, p.ID, p.Currency)
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

// ListProjects returns projects oldest first, each with its activities.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, currency, payment_period, honor_cert_period, retention_percent,
		       retention_limit, terms_source, created_at, updated_at
		FROM projects ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		projects = append(projects, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range projects {
		projects[i].Activities, err = s.loadActivities(ctx, projects[i].ID, projects[i].Currency)
		if err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *Store) DeleteProject(ctx context.Context, id project.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	return nil
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// AddActivity appends after the current last position.
func (s *Store) AddActivity(ctx context.Context, id project.ID, a schedule.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireProject(ctx, tx, id); err != nil {
		return err
	}

	var position int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM activities WHERE project_id = ?", id,
	).Scan(&position)
	if err != nil {
		return fmt.Errorf("failed to read schedule position: %w", err)
	}

	if err := insertActivity(ctx, tx, id, position, a); err != nil {
		return err
	}
	if err := touch(ctx, tx, id, s.now()); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateActivity edits in place; position is left alone.
func (s *Store) UpdateActivity(ctx context.Context, id project.ID, a schedule.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireProject(ctx, tx, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE activities SET name = ?, start_date = ?, end_date = ?, value = ?
		WHERE project_id = ? AND id = ?
	`, a.Name, a.Start().String(), a.End().String(), a.Value.Value.String(), id, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrActivityNotFound, a.ID)
	}
	if err := touch(ctx, tx, id, s.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteActivity(ctx context.Context, id project.ID, activityID schedule.ActivityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireProject(ctx, tx, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM activities WHERE project_id = ? AND id = ?", id, activityID)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrActivityNotFound, activityID)
	}
	if err := touch(ctx, tx, id, s.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) loadActivities(ctx context.Context, id project.ID, currency generic.Currency) ([]schedule.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, value
		FROM activities
		WHERE project_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []schedule.Activity
	for rows.Next() {
		var actID, name, start, end, value string
		if err := rows.Scan(&actID, &name, &start, &end, &value); err != nil {
			return nil, err
		}
		a, err := activityFromRow(actID, name, start, end, value, currency)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func insertActivity(ctx context.Context, db execer, id project.ID, position int, a schedule.Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (project_id, id, position, name, start_date, end_date, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, a.ID, position, a.Name, a.Start().String(), a.End().String(), a.Value.Value.String())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: activity %s", generic.ErrDuplicateID, a.ID)
		}
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// =============================================================================
// TERMS
// =============================================================================

func (s *Store) SetTerms(ctx context.Context, id project.ID, t terms.CommercialTerms, source terms.Source) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET payment_period = ?, honor_cert_period = ?, retention_percent = ?,
		    retention_limit = ?, terms_source = ?, updated_at = ?
		WHERE id = ?
	`,
		t.PaymentPeriodDays,
		t.HonouringPeriodDays,
		t.RetentionPercent.String(),
		t.RetentionLimitPercent.String(),
		source,
		formatTime(s.now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to save terms: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Store) SaveDocument(ctx context.Context, d project.Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, kind, name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.ProjectID, d.Kind, d.Name, d.Content, formatTime(d.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, d.ProjectID)
		}
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: document %s", generic.ErrDuplicateID, d.ID)
		}
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// ListDocuments returns a project's documents oldest first.
func (s *Store) ListDocuments(ctx context.Context, id project.ID) ([]project.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := requireProject(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, kind, name, content, created_at
		FROM documents
		WHERE project_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []project.Document
	for rows.Next() {
		var d project.Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Kind, &d.Name, &d.Content, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanProject(row scanner) (project.Project, error) {
	var (
		p                    project.Project
		retention, limit     string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Currency,
		&p.Terms.PaymentPeriodDays,
		&p.Terms.HonouringPeriodDays,
		&retention,
		&limit,
		&p.TermsSource,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return project.Project{}, err
	}
	if p.Terms.RetentionPercent, err = decimal.NewFromString(retention); err != nil {
		return project.Project{}, fmt.Errorf("project %s: bad retention_percent %q: %w", p.ID, retention, err)
	}
	if p.Terms.RetentionLimitPercent, err = decimal.NewFromString(limit); err != nil {
		return project.Project{}, fmt.Errorf("project %s: bad retention_limit %q: %w", p.ID, limit, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return p, nil
}

func activityFromRow(id, name, start, end, value string, currency generic.Currency) (schedule.Activity, error) {
	startDate, err := generic.ParseDate(start)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("activity %s: %w", id, err)
	}
	endDate, err := generic.ParseDate(end)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("activity %s: %w", id, err)
	}
	amount, err := generic.ParseAmount(value, currency)
	if err != nil {
		return schedule.Activity{}, fmt.Errorf("activity %s: %w", id, err)
	}
	return schedule.NewActivity(schedule.ActivityID(id), name, startDate, endDate, amount), nil
}

func requireProject(ctx context.Context, db queryRower, id project.ID) error {
	var exists int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	return err
}

func touch(ctx context.Context, db execer, id project.ID, now time.Time) error {
	_, err := db.ExecContext(ctx, "UPDATE projects SET updated_at = ? WHERE id = ?", formatTime(now), id)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
