package janitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/reelforge/pkg/file"
	"github.com/MimeLyc/reelforge/pkg/icron"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// JobSource reports which jobs are still in progress.
type JobSource interface {
	RunningJobs() []string
}

// HistoryPruner drops archived job records.
type HistoryPruner interface {
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Option func(*Janitor)

// WithHistory also prunes finished jobs from the archive.
func WithHistory(h HistoryPruner) Option {
	return func(j *Janitor) {
		j.history = h
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// Report summarizes one sweep.
type Report struct {
	RemovedDirs    []string `json:"removedDirs"`
	SkippedRunning int      `json:"skippedRunning"`
	PrunedHistory  int64    `json:"prunedHistory"`
}

// Janitor removes per-job scratch directories once they are older than the
// retention window. Directories of running jobs are never touched.
type Janitor struct {
	jobsDir   string
	retention time.Duration
	source    JobSource
	history   HistoryPruner
	cron      *cron.Cron
	now       func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	ctx      context.Context
	cronExpr string
	entryID  cron.EntryID
	hasEntry bool
}

// New returns a janitor sweeping jobsDir, the parent of every job's
// scratch directory.
func New(jobsDir string, retention time.Duration, source JobSource, c *cron.Cron, opts ...Option) *Janitor {
	j := &Janitor{
		jobsDir:   jobsDir,
		retention: retention,
		source:    source,
		cron:      c,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Schedule registers the sweep under cronExpr. An empty expression leaves
// the janitor unscheduled.
func (j *Janitor) Schedule(ctx context.Context, cronExpr string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ctx = ctx
	return j.scheduleLocked(cronExpr)
}

// Reschedule swaps the cron expression of a scheduled janitor.
func (j *Janitor) Reschedule(cronExpr string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if strings.TrimSpace(cronExpr) == j.cronExpr {
		return nil
	}
	return j.scheduleLocked(cronExpr)
}

func (j *Janitor) scheduleLocked(cronExpr string) error {
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr != "" {
		if err := icron.Validate(cronExpr); err != nil {
			return fmt.Errorf("janitor schedule: %w", err)
		}
	}
	if j.hasEntry {
		j.cron.Remove(j.entryID)
		j.hasEntry = false
	}
	j.cronExpr = cronExpr
	if cronExpr == "" {
		log.Info("Janitor disabled")
		return nil
	}

	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := j.cron.AddFunc(cronExpr, func() {
		if _, err := j.Sweep(ctx); err != nil {
			log.Error("Janitor sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	j.entryID = id
	j.hasEntry = true
	log.Info("Janitor scheduled with %q, retention %s", cronExpr, j.retention)
	return nil
}

// CronExpr returns the active schedule, empty when disabled.
func (j *Janitor) CronExpr() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cronExpr
}

// NextRun returns the next scheduled sweep.
func (j *Janitor) NextRun() (time.Time, bool) {
	expr := j.CronExpr()
	if expr == "" {
		return time.Time{}, false
	}
	trigger, err := icron.Describe(expr, j.now())
	if err != nil {
		return time.Time{}, false
	}
	return trigger.Next, true
}

// Sweep runs one cleanup pass. Concurrent callers share a single pass.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	v, err, _ := j.group.Do("sweep", func() (any, error) {
		return j.sweep(ctx)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (j *Janitor) sweep(ctx context.Context) (Report, error) {
	var report Report
	cutoff := j.now().Add(-j.retention)

	running := make(map[string]bool)
	if j.source != nil {
		for _, id := range j.source.RunningJobs() {
			running[id] = true
		}
	}

	stale, err := file.FindOlderThan(j.jobsDir, cutoff)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", j.jobsDir, err)
	}
	for _, dir := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if running[filepath.Base(dir)] {
			report.SkippedRunning++
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Janitor could not remove %s: %v", dir, err)
			continue
		}
		report.RemovedDirs = append(report.RemovedDirs, dir)
	}

	if j.history != nil {
		n, err := j.history.DeleteJobsBefore(ctx, cutoff)
		if err != nil {
			return report, fmt.Errorf("prune job history: %w", err)
		}
		report.PrunedHistory = n
	}

	log.Info("Janitor removed %d job dirs, skipped %d running, pruned %d archived jobs",
		len(report.RemovedDirs), report.SkippedRunning, report.PrunedHistory)
	return report, nil
}
