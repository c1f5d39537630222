package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/google/uuid"
)

// Reporter lets an executor publish coarse progress for its job.
type Reporter interface {
	Progress(percent int, stage string)
}

// Executor runs one job and returns the result payload to attach.
type Executor func(ctx context.Context, job *Job, report Reporter) (any, error)

type Queue struct {
	workerCount int
	store       Store
	events      *eventRing

	mu        sync.RWMutex
	jobs      map[string]*Job
	pending   []string
	processed int
	failed    int
	started   bool
	wake      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent workers. The default is one.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workerCount = n
		}
	}
}

// WithStore archives every job change into store.
func WithStore(store Store) QueueOption {
	return func(q *Queue) {
		q.store = store
	}
}

// WithEventCapacity bounds the number of retained events.
func WithEventCapacity(n int) QueueOption {
	return func(q *Queue) {
		q.events = newEventRing(n)
	}
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		workerCount: 1,
		events:      newEventRing(defaultEventCapacity),
		jobs:        make(map[string]*Job),
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewJobID returns job_<unix ms>_<8 random hex chars>.
func NewJobID() string {
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Enqueue records a pending job and returns immediately.
func (q *Queue) Enqueue(req EnqueueRequest) *Job {
	now := time.Now()
	job := &Job{
		ID:        NewJobID(),
		Type:      req.Type,
		Niche:     req.Niche,
		Status:    StatusPending,
		Payload:   append(json.RawMessage(nil), req.Payload...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.record(snapshot)
	q.signal()
	log.Info("Job %s queued type=%s niche=%s", job.ID, job.Type, job.Niche)
	return snapshot
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns snapshots of every job, oldest first.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := Stats{Total: len(q.jobs), Processed: q.processed, FailedCount: q.failed}
	for _, job := range q.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Running returns the IDs of jobs currently being processed.
func (q *Queue) Running() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var ret []string
	for id, job := range q.jobs {
		if job.Status == StatusRunning {
			ret = append(ret, id)
		}
	}
	sort.Strings(ret)
	return ret
}

// Events returns retained events newer than seq.
func (q *Queue) Events(after uint64) []Event {
	return q.events.since(after)
}

// LastEventSeq is the sequence number of the newest event.
func (q *Queue) LastEventSeq() uint64 {
	return q.events.lastSeq()
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
	q.signal()
}

// Stop lets the active job finish and stops the workers. Pending jobs
// stay pending.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		job, ok := q.dequeue()
		if !ok {
			select {
			case <-q.stopCh:
				return
			case <-q.wake:
			}
			continue
		}
		// more work may be waiting for another worker
		q.signal()
		q.run(exec, job)
	}
}

// dequeue pops the oldest pending job and marks it running.
func (q *Queue) dequeue() (*Job, bool) {
	q.mu.Lock()
	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		job, ok := q.jobs[id]
		if !ok || !isValidTransition(job.Status, StatusRunning) {
			continue
		}
		job.Status = StatusRunning
		job.Progress = RunningProgress
		job.Stage = "INIT"
		job.UpdatedAt = time.Now()
		snapshot := cloneJob(job)
		q.mu.Unlock()

		q.record(snapshot)
		return snapshot, true
	}
	q.mu.Unlock()
	return nil, false
}

func (q *Queue) run(exec Executor, job *Job) {
	start := time.Now()
	result, err := exec(context.Background(), job, &reporter{q: q, id: job.ID})
	if err != nil {
		q.Fail(job.ID, err)
		log.Error("Job %s failed after %s: %v", job.ID, time.Since(start).Round(time.Millisecond), err)
		return
	}
	if err := q.Complete(job.ID, result); err != nil {
		q.Fail(job.ID, err)
		return
	}
	log.Info("Job %s completed in %s", job.ID, time.Since(start).Round(time.Millisecond))
}

// UpdateProgress moves a running job forward. Lower values than the
// current progress are ignored; 100 is reserved for completion.
func (q *Queue) UpdateProgress(id string, percent int, stage string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusRunning {
		q.mu.Unlock()
		return
	}
	if percent > 99 {
		percent = 99
	}
	if percent < job.Progress {
		percent = job.Progress
	}
	job.Progress = percent
	if stage != "" {
		job.Stage = stage
	}
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.record(snapshot)
}

// Complete attaches the result and forces progress to 100. Status and
// result become visible together.
func (q *Queue) Complete(id string, result any) error {
	var payload json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode job result: %w", err)
		}
		payload = data
	}

	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if !isValidTransition(job.Status, StatusCompleted) {
		from := job.Status
		q.mu.Unlock()
		return fmt.Errorf("job %s cannot complete from %s", id, from)
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.Progress = 100
	job.Stage = "COMPLETED"
	job.Result = payload
	job.Error = ""
	job.UpdatedAt = now
	job.CompletedAt = &now
	q.processed++
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.record(snapshot)
	return nil
}

// Fail records err on a running or pending job. Terminal jobs are left
// untouched.
func (q *Queue) Fail(id string, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || !isValidTransition(job.Status, StatusFailed) {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.Result = nil
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = now
	job.CompletedAt = &now
	q.processed++
	q.failed++
	snapshot := cloneJob(job)
	q.mu.Unlock()

	q.record(snapshot)
}

func isValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

func (q *Queue) record(job *Job) {
	q.events.add(Event{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Stage:    job.Stage,
		Error:    job.Error,
		At:       job.UpdatedAt,
	})
	if q.store == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

type reporter struct {
	q  *Queue
	id string
}

func (r *reporter) Progress(percent int, stage string) {
	r.q.UpdateProgress(r.id, percent, stage)
	log.Info("Job %s stage %s %d%%", r.id, stage, percent)
}
