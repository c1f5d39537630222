package imagegen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/internal/niche"
)

// Request describes the still image for one scene.
type Request struct {
	JobID      string
	SceneIndex int
	Prompt     string
	// Title is drawn on placeholder cards.
	Title   string
	Profile niche.Profile
	// Dir is where the image is written.
	Dir string
}

// Generator produces a scene image and returns its path.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// ComposePrompt appends the profile's base style to the scene prompt
// unless the prompt already carries it.
func ComposePrompt(prompt string, profile niche.Profile) string {
	prompt = strings.TrimSpace(prompt)
	style := strings.TrimSpace(profile.Visuals.BaseStylePrompt)
	if style == "" || strings.Contains(strings.ToLower(prompt), strings.ToLower(style)) {
		return prompt
	}
	if prompt == "" {
		return style
	}
	return strings.TrimRight(prompt, ".,; ") + ", " + style
}

// ParseSize splits a "WxH" size string.
func ParseSize(size string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid image size %q", size)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid image width in %q", size)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid image height in %q", size)
	}
	return width, height, nil
}

func imageSize(p niche.Profile) string {
	if p.Visuals.ImageSize == "" {
		return "1024x1792"
	}
	return p.Visuals.ImageSize
}

func validate(req Request) error {
	if req.JobID == "" {
		return fmt.Errorf("image request needs a job id")
	}
	if req.SceneIndex <= 0 {
		return fmt.Errorf("image request needs a 1-based scene index, got %d", req.SceneIndex)
	}
	if req.Dir == "" {
		return fmt.Errorf("image request needs an output dir")
	}
	return nil
}
