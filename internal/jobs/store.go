package jobs

import (
	"context"
	"sort"
)

// Store archives job records. The archive is history only: jobs loaded
// from it are never put back on the queue.
type Store interface {
	LoadJobs(ctx context.Context) ([]*Job, error)
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, jobID string) error
	Close() error
}

// HistoryQuery narrows an archive listing. Zero values mean no filter.
type HistoryQuery struct {
	Status Status
	Limit  int
}

// Apply filters jobs by status, orders them newest first and truncates
// to Limit. Stores that cannot filter in their backend use it after
// LoadJobs.
func (q HistoryQuery) Apply(all []*Job) []*Job {
	ret := make([]*Job, 0, len(all))
	for _, job := range all {
		if q.Status == "" || job.Status == q.Status {
			ret = append(ret, job)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	if q.Limit > 0 && len(ret) > q.Limit {
		ret = ret[:q.Limit]
	}
	return ret
}
