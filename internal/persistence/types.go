package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/MimeLyc/reelforge/internal/jobs"
)

// HistoryStore is a job archive that can filter listings and drop old
// records.
type HistoryStore interface {
	jobs.Store
	QueryJobs(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error)
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// jobColumns is the select and insert order used by both drivers.
const jobColumns = "id, type, niche, status, progress, stage, payload_json, result_json, error, created_at, updated_at, completed_at"

// historySQL builds the archive listing statement. placeholder renders the
// n-th bind parameter in the driver's syntax.
func historySQL(q jobs.HistoryQuery, placeholder func(n int) string) (string, []any) {
	var b strings.Builder
	var args []any
	b.WriteString("SELECT " + jobColumns + " FROM jobs")
	if q.Status != "" {
		args = append(args, string(q.Status))
		b.WriteString(" WHERE status = " + placeholder(len(args)))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT " + placeholder(len(args)))
	}
	return b.String(), args
}

// Open returns the store selected by cfg.Driver, or nil when archiving is
// off.
func Open(ctx context.Context, cfg config.StoreConfig) (HistoryStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown job store driver %q", cfg.Driver)
	}
}

// jobRow mirrors jobColumns.
type jobRow struct {
	ID          string
	Type        string
	Niche       string
	Status      string
	Progress    int
	Stage       string
	Payload     string
	Result      string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt sql.NullTime
}

func toRow(job *jobs.Job) jobRow {
	row := jobRow{
		ID:        job.ID,
		Type:      job.Type,
		Niche:     job.Niche,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Stage:     job.Stage,
		Payload:   string(job.Payload),
		Result:    string(job.Result),
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC(),
		UpdatedAt: job.UpdatedAt.UTC(),
	}
	if job.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: job.CompletedAt.UTC(), Valid: true}
	}
	return row
}

func (r jobRow) job() *jobs.Job {
	job := &jobs.Job{
		ID:        r.ID,
		Type:      r.Type,
		Niche:     r.Niche,
		Status:    jobs.Status(r.Status),
		Progress:  r.Progress,
		Stage:     r.Stage,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Payload != "" {
		job.Payload = json.RawMessage(r.Payload)
	}
	if r.Result != "" {
		job.Result = json.RawMessage(r.Result)
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job
}
