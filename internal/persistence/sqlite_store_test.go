package persistence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(id string, status jobs.Status, created time.Time) *jobs.Job {
	return &jobs.Job{
		ID:        id,
		Type:      "short_video",
		Niche:     "horror",
		Status:    status,
		Payload:   json.RawMessage(`{"prompt":"abandoned lighthouse"}`),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()
	store := openSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	job := newJob("job-1", jobs.StatusPending, now)
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusCompleted
	job.Progress = 100
	job.Stage = "COMPLETED"
	job.Result = json.RawMessage(`{"videoUrl":"http://localhost:8080/output/a.mp4"}`)
	done := now.Add(time.Minute)
	job.CompletedAt = &done
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "horror", got.Niche)
	assert.JSONEq(t, string(job.Payload), string(got.Payload))
	assert.JSONEq(t, string(job.Result), string(got.Result))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestSQLiteStore_EmptyResultLoadsAsNil(t *testing.T) {
	t.Parallel()
	store := openSQLite(t)
	ctx := context.Background()

	job := newJob("job-1", jobs.StatusFailed, time.Now().UTC())
	job.Error = "[Safety] story failed content checks"
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].Result)
	assert.Nil(t, all[0].CompletedAt)
	assert.Equal(t, job.Error, all[0].Error)
}

func TestSQLiteStore_DeleteJobsBefore(t *testing.T) {
	t.Parallel()
	store := openSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertJob(ctx, newJob("old-done", jobs.StatusCompleted, now.Add(-48*time.Hour))))
	require.NoError(t, store.UpsertJob(ctx, newJob("old-running", jobs.StatusRunning, now.Add(-48*time.Hour))))
	require.NoError(t, store.UpsertJob(ctx, newJob("fresh", jobs.StatusCompleted, now)))

	n, err := store.DeleteJobsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, j := range all {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"old-running", "fresh"}, ids)

	require.NoError(t, store.DeleteJob(ctx, "fresh"))
	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_ReopenKeepsHistory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertJob(ctx, newJob("job-1", jobs.StatusCompleted, time.Now().UTC())))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

func TestSQLiteStore_QueryJobs(t *testing.T) {
	t.Parallel()
	store := openSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertJob(ctx, newJob("a", jobs.StatusCompleted, base)))
	require.NoError(t, store.UpsertJob(ctx, newJob("b", jobs.StatusFailed, base.Add(time.Minute))))
	require.NoError(t, store.UpsertJob(ctx, newJob("c", jobs.StatusCompleted, base.Add(2*time.Minute))))

	ids := func(list []*jobs.Job) []string {
		ret := make([]string, 0, len(list))
		for _, j := range list {
			ret = append(ret, j.ID)
		}
		return ret
	}

	all, err := store.QueryJobs(ctx, jobs.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	completed, err := store.QueryJobs(ctx, jobs.HistoryQuery{Status: jobs.StatusCompleted, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(completed))

	// in-memory filtering must agree with the SQL one
	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids(completed), ids(jobs.HistoryQuery{Status: jobs.StatusCompleted, Limit: 1}.Apply(loaded)))
}

func TestHistorySQL_Placeholders(t *testing.T) {
	query, args := historySQL(jobs.HistoryQuery{Status: jobs.StatusFailed, Limit: 20}, postgresPlaceholder)
	assert.Contains(t, query, "WHERE status = $1")
	assert.Contains(t, query, "ORDER BY created_at DESC LIMIT $2")
	assert.Equal(t, []any{"failed", 20}, args)

	query, args = historySQL(jobs.HistoryQuery{}, postgresPlaceholder)
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_history_index.sql": {Data: []byte("CREATE INDEX x ON jobs (niche);")},
		"migrations/001_init.sql":          {Data: []byte("CREATE TABLE jobs (id TEXT);")},
		"migrations/README.sql":            {Data: []byte("-- notes")},
	}

	all, err := loadMigrations(fsys, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "001_init.sql", all[0].name)
	assert.Equal(t, 2, all[1].version)

	pending, err := loadMigrations(fsys, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "002_history_index.sql", pending[0].name)
}

func TestSQLiteStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jobs.db")

	for range 2 {
		store, err := NewSQLiteStore(path)
		require.NoError(t, err)
		var applied int
		require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
		assert.Equal(t, 1, applied)
		require.NoError(t, store.Close())
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "a.db")})
	require.NoError(t, err)
	require.NotNil(t, store)
	_ = store.Close()

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	id := jobs.NewJobID()
	require.NoError(t, store.UpsertJob(ctx, newJob(id, jobs.StatusPending, time.Now().UTC())))
	t.Cleanup(func() { _ = store.DeleteJob(ctx, id) })

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	found := false
	for _, j := range all {
		if j.ID == id {
			found = true
			assert.Equal(t, jobs.StatusPending, j.Status)
		}
	}
	assert.True(t, found)
}
