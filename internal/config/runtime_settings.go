package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/reelforge/pkg/icron"
)

const DefaultRuntimeSettingsFile = "./data/settings.json"

// RuntimeSettings are the defaults an operator may change without a restart.
// They apply to jobs created after the update.
type RuntimeSettings struct {
	DefaultNiche      string  `json:"default_niche"`
	IncludeCaptions   bool    `json:"include_captions"`
	IncludeMusic      bool    `json:"include_music"`
	DarkGrade         bool    `json:"dark_grade"`
	Vignette          bool    `json:"vignette"`
	GlitchTransitions bool    `json:"glitch_transitions"`
	MusicVolume       float64 `json:"music_volume"`
	// NarrationVolume of 0 keeps the configured gain.
	NarrationVolume float64 `json:"narration_volume,omitempty"`
	JanitorCron     string  `json:"janitor_cron"`
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.DefaultNiche) == "" {
		return fmt.Errorf("default_niche is required")
	}
	if s.MusicVolume < 0 || s.MusicVolume > 1 {
		return fmt.Errorf("music_volume must be between 0 and 1")
	}
	if s.NarrationVolume < 0 || s.NarrationVolume > 2 {
		return fmt.Errorf("narration_volume must be between 0 and 2")
	}
	if strings.TrimSpace(s.JanitorCron) != "" {
		if err := icron.Validate(s.JanitorCron); err != nil {
			return fmt.Errorf("invalid janitor_cron: %w", err)
		}
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		DefaultNiche:      c.Story.DefaultNiche,
		IncludeCaptions:   c.Render.IncludeCaptions,
		IncludeMusic:      c.Render.IncludeMusic,
		DarkGrade:         c.Render.DarkGrade,
		Vignette:          c.Render.Vignette,
		GlitchTransitions: c.Render.GlitchTransitions,
		MusicVolume:       c.Render.MusicVolume,
		NarrationVolume:   c.Render.NarrationVolume,
		JanitorCron:       c.Janitor.CronExpr,
	}
}

// WithRuntimeSettings overlays a previously saved settings file.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.DefaultNiche) != "" {
			c.Story.DefaultNiche = settings.DefaultNiche
		}
		c.Render.IncludeCaptions = settings.IncludeCaptions
		c.Render.IncludeMusic = settings.IncludeMusic
		c.Render.DarkGrade = settings.DarkGrade
		c.Render.Vignette = settings.Vignette
		c.Render.GlitchTransitions = settings.GlitchTransitions
		if settings.MusicVolume >= 0 && settings.MusicVolume <= 1 {
			c.Render.MusicVolume = settings.MusicVolume
		}
		if settings.NarrationVolume > 0 && settings.NarrationVolume <= 2 {
			c.Render.NarrationVolume = settings.NarrationVolume
		}
		c.Janitor.CronExpr = strings.TrimSpace(settings.JanitorCron)
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
