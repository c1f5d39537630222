package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/reelforge/internal/config"
	"github.com/MimeLyc/reelforge/internal/jobs"
	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/pipeline"
	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/internal/subtitle"
)

// JobService is the pipeline surface the API drives.
type JobService interface {
	CreateJob(ctx context.Context, req pipeline.Request) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, bool)
	ListJobs() []*jobs.Job
	QueueStats() jobs.Stats
	Events(after uint64) []jobs.Event
	History(ctx context.Context, q jobs.HistoryQuery) ([]*jobs.Job, error)
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	jobs     JobService
	niches   *niche.Registry
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier
	captions subtitle.Reader

	outputDir      string
	version        string
	toolsAvailable func() bool
	nextCleanup    func() (time.Time, bool)
	streamInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithOutputDir serves finished assets under /output/.
func WithOutputDir(dir string) Option {
	return func(s *Server) {
		s.outputDir = dir
	}
}

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithToolCheck reports encoder availability on /health.
func WithToolCheck(check func() bool) Option {
	return func(s *Server) {
		s.toolsAvailable = check
	}
}

// WithCleanupSchedule reports the next janitor run on /health.
func WithCleanupSchedule(next func() (time.Time, bool)) Option {
	return func(s *Server) {
		s.nextCleanup = next
	}
}

func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(svc JobService, niches *niche.Registry, opts ...Option) *Server {
	s := &Server{
		jobs:           svc,
		niches:         niches,
		captions:       subtitle.NewReader(),
		streamInterval: time.Second,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobDetailRoutes)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/niches", s.handleNiches)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/health", s.handleHealth)

	// older clients
	s.mux.HandleFunc("/jobs", s.handleLegacyCreate)
	s.mux.HandleFunc("/jobs/", s.handleLegacyGet)

	if s.outputDir != "" {
		s.mux.Handle(storage.PublicPrefix, http.StripPrefix(storage.PublicPrefix, http.FileServer(http.Dir(s.outputDir))))
	}
}
