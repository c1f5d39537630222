package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/pipeline"
)

type createJobResponse struct {
	JobID     string      `json:"jobId"`
	Status    jobs.Status `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	Job       *jobs.Job   `json:"job"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobs.ListJobs())
	case http.MethodPost:
		s.createJob(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	job, err := s.jobs.CreateJob(r.Context(), req)
	if err != nil {
		if pipeline.IsErrorType(err, pipeline.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createJobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		Job:       job,
	})
}

func (s *Server) handleLegacyCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.createJob(w, r)
}

func (s *Server) handleLegacyGet(w http.ResponseWriter, r *http.Request) {
	jobID, action, ok := splitJobPath(r.URL.Path, "/jobs/")
	if !ok || action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.handleJobDetail(w, r, jobID)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.QueueStats())
}

type nichesResponse struct {
	Default  string          `json:"default"`
	Profiles []niche.Profile `json:"profiles"`
}

func (s *Server) handleNiches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.niches == nil {
		writeJSON(w, http.StatusOK, nichesResponse{Profiles: []niche.Profile{}})
		return
	}
	writeJSON(w, http.StatusOK, nichesResponse{
		Default:  s.niches.DefaultID(),
		Profiles: s.niches.All(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := s.jobs.History(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, history)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func parseHistoryQuery(r *http.Request) (jobs.HistoryQuery, error) {
	q := jobs.HistoryQuery{Limit: defaultHistoryLimit}
	values := r.URL.Query()
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status := jobs.Status(strings.ToLower(raw))
		switch status {
		case jobs.StatusPending, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed:
			q.Status = status
		default:
			return q, fmt.Errorf("unknown status %q", raw)
		}
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("limit must be a positive integer")
		}
		q.Limit = min(n, maxHistoryLimit)
	}
	return q, nil
}

type healthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version,omitempty"`
	FFmpeg      bool       `json:"ffmpeg"`
	Jobs        jobs.Stats `json:"jobs"`
	NextCleanup *time.Time `json:"nextCleanup,omitempty"`
	Time        time.Time  `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := healthResponse{
		Status:  "ok",
		Version: s.version,
		FFmpeg:  true,
		Jobs:    s.jobs.QueueStats(),
		Time:    time.Now(),
	}
	if s.toolsAvailable != nil && !s.toolsAvailable() {
		resp.FFmpeg = false
		resp.Status = "degraded"
	}
	if s.nextCleanup != nil {
		if next, ok := s.nextCleanup(); ok {
			resp.NextCleanup = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.niches != nil && !s.niches.Has(req.DefaultNiche) {
			writeError(w, http.StatusBadRequest, "unknown default_niche "+req.DefaultNiche)
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
