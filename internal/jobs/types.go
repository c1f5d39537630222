package jobs

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Initial progress of a job the worker just picked up.
const RunningProgress = 5

type EnqueueRequest struct {
	Type  string
	Niche string
	// Payload is the validated submission, kept for history and reruns.
	Payload json.RawMessage
}

type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Niche       string          `json:"niche,omitempty"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Stage       string          `json:"stage,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Stats counts jobs by status. Processed and FailedCount are lifetime
// counters of jobs that reached a terminal state in this process.
type Stats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Processed   int `json:"processed"`
	FailedCount int `json:"failedCount"`
}

// Event records one observable change of a job.
type Event struct {
	Seq      uint64    `json:"seq"`
	JobID    string    `json:"jobId"`
	Status   Status    `json:"status"`
	Progress int       `json:"progress"`
	Stage    string    `json:"stage,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Payload = append(json.RawMessage(nil), job.Payload...)
	tmp.Result = append(json.RawMessage(nil), job.Result...)
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		tmp.CompletedAt = &at
	}
	return &tmp
}
