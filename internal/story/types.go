package story

import (
	"context"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/niche"
)

// Scene is one narrated beat. Index is 1-based and never changes after the
// story is built; render order follows it.
type Scene struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Narration   string  `json:"narration"`
	ImagePrompt string  `json:"imagePrompt,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	AssetPath   string  `json:"assetPath,omitempty"`
}

// Prompt returns the image prompt, falling back to the description.
func (s Scene) Prompt() string {
	if strings.TrimSpace(s.ImagePrompt) != "" {
		return s.ImagePrompt
	}
	return s.Description
}

type Story struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Hook          string    `json:"hook,omitempty"`
	Scenes        []Scene   `json:"scenes"`
	TotalDuration float64   `json:"totalDuration"`
	WordCount     int       `json:"wordCount"`
	Hashtags      []string  `json:"hashtags,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Clone returns a deep copy; scenes are mutated in place by later stages.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	out := *s
	out.Scenes = append([]Scene(nil), s.Scenes...)
	out.Hashtags = append([]string(nil), s.Hashtags...)
	return &out
}

// Narration joins every scene's narration in index order.
func (s *Story) Narration() string {
	parts := make([]string, 0, len(s.Scenes))
	for _, scene := range s.Scenes {
		if text := strings.TrimSpace(scene.Narration); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Narrations returns the per-scene narration texts in index order.
func (s *Story) Narrations() []string {
	ret := make([]string, len(s.Scenes))
	for i, scene := range s.Scenes {
		ret[i] = scene.Narration
	}
	return ret
}

// Script is a caller-supplied story. Scenes are taken verbatim.
type Script struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Hook        string        `json:"hook,omitempty"`
	Scenes      []ScriptScene `json:"scenes"`
	Hashtags    []string      `json:"hashtags,omitempty"`
}

type ScriptScene struct {
	Description string `json:"description"`
	Narration   string `json:"narration"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
}

// Request carries everything a Generator needs to draft a story.
type Request struct {
	Prompt      string
	Profile     niche.Profile
	SceneCount  int
	TargetWords int
}

// Generator drafts a story from a free-text prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Story, error)
}
