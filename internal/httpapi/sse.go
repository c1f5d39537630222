package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/jobs"
)

// jobStream writes server-sent events for one client. Transition events
// carry their sequence number as the SSE id so a reconnecting client can
// resume with Last-Event-ID.
type jobStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	svc     JobService
	jobID   string
	lastSeq uint64
}

// handleJobStream pushes a snapshot on every tick, preceded by a "job" event
// for each transition since the previous tick. With ?job=<id> the stream
// follows a single job and ends with a "done" event once it is terminal.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream := &jobStream{w: w, flusher: flusher, svc: s.jobs, jobID: strings.TrimSpace(r.URL.Query().Get("job"))}
	if stream.jobID != "" {
		if _, ok := s.jobs.GetJob(stream.jobID); !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
	}
	stream.lastSeq = s.resumeFrom(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	done, err := stream.send()
	if err != nil || done {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if done, err := stream.send(); err != nil || done {
				return
			}
		}
	}
}

// resumeFrom returns the sequence after which events are replayed. Without
// Last-Event-ID only transitions after the connection are sent.
func (s *Server) resumeFrom(r *http.Request) uint64 {
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		if seq, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil {
			return seq
		}
	}
	var last uint64
	for _, ev := range s.jobs.Events(0) {
		last = ev.Seq
	}
	return last
}

// send writes pending events and a snapshot. done is true when a followed
// job has reached a terminal state.
func (st *jobStream) send() (bool, error) {
	for _, ev := range st.svc.Events(st.lastSeq) {
		st.lastSeq = ev.Seq
		if st.jobID != "" && ev.JobID != st.jobID {
			continue
		}
		if err := st.write("job", strconv.FormatUint(ev.Seq, 10), ev); err != nil {
			return false, err
		}
	}

	if st.jobID == "" {
		if err := st.write("", "", st.svc.ListJobs()); err != nil {
			return false, err
		}
		st.flusher.Flush()
		return false, nil
	}

	job, ok := st.svc.GetJob(st.jobID)
	if !ok {
		return true, nil
	}
	if err := st.write("", "", job); err != nil {
		return false, err
	}
	if job.Status.Terminal() {
		if err := st.write("done", "", map[string]string{"jobId": job.ID, "status": string(job.Status)}); err != nil {
			return false, err
		}
	}
	st.flusher.Flush()
	return job.Status.Terminal(), nil
}

func (st *jobStream) write(event, id string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	fmt.Fprintf(&b, "data: %s\n\n", payload)
	_, err = fmt.Fprint(st.w, b.String())
	return err
}
