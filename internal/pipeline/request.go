package pipeline

import (
	"strings"

	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/story"
)

const (
	JobTypeShortVideo = "short_video"
	// JobTypeHorrorVideo is the older name clients still send.
	JobTypeHorrorVideo = "horror_video"
)

// Request is a job submission.
type Request struct {
	Type    string                 `json:"type,omitempty"`
	Prompt  string                 `json:"prompt,omitempty"`
	NicheID string                 `json:"niche,omitempty"`
	Story   *story.Script          `json:"story,omitempty"`
	Options *media.RenderOverrides `json:"options,omitempty"`
}

// normalize fills the job type and trims text fields.
func (r Request) normalize() Request {
	r.Type = strings.TrimSpace(strings.ToLower(r.Type))
	if r.Type == "" {
		r.Type = JobTypeShortVideo
	}
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.NicheID = strings.TrimSpace(r.NicheID)
	if r.NicheID == "" && r.Type == JobTypeHorrorVideo {
		r.NicheID = "horror"
	}
	return r
}

func supportedType(t string) bool {
	return t == JobTypeShortVideo || t == JobTypeHorrorVideo
}
