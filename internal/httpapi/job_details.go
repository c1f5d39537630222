package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/internal/jobs"
)

const (
	defaultCaptionLimit = 200
	maxCaptionLimit     = 1000
)

var (
	errJobNotFound     = errors.New("job not found")
	errJobNotCompleted = errors.New("job is not completed")
	errNoCaptions      = errors.New("job has no captions")
	errNoVideo         = errors.New("job video is missing")
)

type captionLine struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type captionsResponse struct {
	JobID    string        `json:"jobId"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
	Lines    []captionLine `json:"lines"`
}

// jobArtifacts is the subset of a job result that points at files on disk.
type jobArtifacts struct {
	VideoPath    string `json:"videoPath"`
	SubtitlePath string `json:"subtitlePath"`
}

// handleJobDetailRoutes serves /api/jobs/{id}, /api/jobs/{id}/captions and
// /api/jobs/{id}/video.
func (s *Server) handleJobDetailRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, action, ok := splitJobPath(r.URL.Path, "/api/jobs/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "":
		s.handleJobDetail(w, r, jobID)
	case "captions":
		s.handleJobCaptions(w, r, jobID)
	case "video":
		s.handleJobVideo(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, errJobNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// splitJobPath returns the escaped-decoded job id and optional action that
// follow prefix. At most one action segment is allowed.
func splitJobPath(path, prefix string) (jobID, action string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", "", false
	}
	rawID, action, _ := strings.Cut(rest, "/")
	if strings.Contains(action, "/") {
		return "", "", false
	}
	id, err := url.PathUnescape(rawID)
	if err != nil || strings.TrimSpace(id) == "" {
		return "", "", false
	}
	return id, action, true
}

// artifacts loads the file paths of a completed job.
func (s *Server) artifacts(jobID string) (jobArtifacts, error) {
	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		return jobArtifacts{}, errJobNotFound
	}
	if job.Status != jobs.StatusCompleted {
		return jobArtifacts{}, errJobNotCompleted
	}
	var a jobArtifacts
	if err := json.Unmarshal(job.Result, &a); err != nil {
		return jobArtifacts{}, err
	}
	return a, nil
}

func writeArtifactError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errJobNotCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errJobNotFound), errors.Is(err, errNoCaptions), errors.Is(err, errNoVideo):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleJobCaptions pages through the caption cues as JSON, or returns the
// SRT file itself with ?format=srt.
func (s *Server) handleJobCaptions(w http.ResponseWriter, r *http.Request, jobID string) {
	a, err := s.artifacts(jobID)
	if err == nil && !fileExists(a.SubtitlePath) {
		err = errNoCaptions
	}
	if err != nil {
		writeArtifactError(w, err)
		return
	}

	query := r.URL.Query()
	if strings.EqualFold(query.Get("format"), "srt") {
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		http.ServeFile(w, r, a.SubtitlePath)
		return
	}

	offset := intParam(query.Get("offset"), 0)
	limit := intParam(query.Get("limit"), defaultCaptionLimit)
	if limit == 0 || limit > maxCaptionLimit {
		limit = maxCaptionLimit
	}
	resp, err := s.readCaptions(jobID, a.SubtitlePath, offset, limit)
	if err != nil {
		writeArtifactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJobVideo streams the rendered MP4 with range support.
func (s *Server) handleJobVideo(w http.ResponseWriter, r *http.Request, jobID string) {
	a, err := s.artifacts(jobID)
	if err == nil && !fileExists(a.VideoPath) {
		err = errNoVideo
	}
	if err != nil {
		writeArtifactError(w, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(a.VideoPath)+`"`)
	http.ServeFile(w, r, a.VideoPath)
}

// intParam parses a non-negative integer, falling back to def.
func intParam(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Server) readCaptions(jobID, path string, offset, limit int) (captionsResponse, error) {
	file, err := s.captions.Read(path)
	if err != nil {
		return captionsResponse{}, err
	}

	total := len(file.Lines)
	offset = min(offset, total)
	end := min(offset+limit, total)
	lines := make([]captionLine, 0, end-offset)
	for _, line := range file.Lines[offset:end] {
		lines = append(lines, captionLine{Index: line.Index, Start: line.Start(), End: line.End(), Text: line.Text})
	}
	return captionsResponse{
		JobID:    jobID,
		Language: file.Language,
		Duration: file.Duration().Seconds(),
		Total:    total,
		Offset:   offset,
		Limit:    limit,
		Lines:    lines,
	}, nil
}
