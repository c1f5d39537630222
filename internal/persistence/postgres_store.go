package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	niche TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	stage TEXT NOT NULL DEFAULT '',
	payload_json TEXT NOT NULL DEFAULT '',
	result_json TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);`

// PostgresStore archives jobs in a shared Postgres database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ HistoryStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = 4
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "reelforge"

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(dialCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	return s.queryJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at ASC")
}

// QueryJobs lists archived jobs newest first.
func (s *PostgresStore) QueryJobs(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error) {
	query, args := historySQL(q, postgresPlaceholder)
	return s.queryJobs(ctx, query, args...)
}

func (s *PostgresStore) queryJobs(ctx context.Context, query string, args ...any) ([]*jobs.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*jobs.Job, error) {
		var r jobRow
		var completed *time.Time
		if err := row.Scan(
			&r.ID, &r.Type, &r.Niche, &r.Status, &r.Progress, &r.Stage,
			&r.Payload, &r.Result, &r.Error, &r.CreatedAt, &r.UpdatedAt, &completed,
		); err != nil {
			return nil, err
		}
		if completed != nil {
			r.CompletedAt.Time, r.CompletedAt.Valid = *completed, true
		}
		return r.job(), nil
	})
}

func postgresPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (s *PostgresStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	r := toRow(job)
	var completed *time.Time
	if r.CompletedAt.Valid {
		completed = &r.CompletedAt.Time
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			stage = EXCLUDED.stage,
			result_json = EXCLUDED.result_json,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`,
		r.ID, r.Type, r.Niche, r.Status, r.Progress, r.Stage,
		r.Payload, r.Result, r.Error, r.CreatedAt, r.UpdatedAt, completed,
	)
	return err
}

func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	return err
}

func (s *PostgresStore) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE created_at < $1 AND status IN ($2, $3)`,
		cutoff.UTC(), string(jobs.StatusCompleted), string(jobs.StatusFailed),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
