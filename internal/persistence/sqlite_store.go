package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/jobs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the job archive in a single local database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ HistoryStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// busy_timeout and WAL are set per connection through the DSN so that
	// every pooled connection gets them.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type migration struct {
	name    string
	version int
	sql     string
}

// migrate applies every embedded migration newer than the recorded
// version. Each migration and its version row commit together.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	pending, err := loadMigrations(migrationFiles, current)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	return tx.Commit()
}

// loadMigrations returns migrations with a version above after, in order.
// Files without a numeric prefix are ignored.
func loadMigrations(fsys fs.FS, after int) ([]migration, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var ret []migration
	for _, name := range names {
		base := filepath.Base(name)
		version := migrationVersion(base)
		if version <= after {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		ret = append(ret, migration{name: base, version: version, sql: string(content)})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].version < ret[j].version })
	return ret, nil
}

// migrationVersion reads the numeric prefix of names like "001_init.sql".
func migrationVersion(name string) int {
	digits, _, _ := strings.Cut(name, "_")
	digits = strings.TrimSuffix(digits, filepath.Ext(digits))
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at ASC")
}

// QueryJobs lists archived jobs newest first.
func (s *SQLiteStore) QueryJobs(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error) {
	query, args := historySQL(q, func(int) string { return "?" })
	return s.queryJobs(ctx, query, args...)
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...any) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var r jobRow
		if err := rows.Scan(
			&r.ID, &r.Type, &r.Niche, &r.Status, &r.Progress, &r.Stage,
			&r.Payload, &r.Result, &r.Error, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, r.job())
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// DeleteJobsBefore removes finished jobs created before cutoff.
func (s *SQLiteStore) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE created_at < ? AND status IN (?, ?)`,
		cutoff.UTC(), string(jobs.StatusCompleted), string(jobs.StatusFailed),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertJob writes the latest snapshot of job. Type, niche, payload and
// creation time never change after the first insert.
func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	r := toRow(job)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			stage = excluded.stage,
			result_json = excluded.result_json,
			error = excluded.error,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`,
		r.ID, r.Type, r.Niche, r.Status, r.Progress, r.Stage,
		r.Payload, r.Result, r.Error, r.CreatedAt, r.UpdatedAt, r.CompletedAt,
	)
	return err
}
