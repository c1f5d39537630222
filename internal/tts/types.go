package tts

import (
	"context"
)

// Request describes one narration to synthesize.
type Request struct {
	JobID   string
	Text    string
	VoiceID string
	Speed   float64
	Model   string
	// Dir is where the audio file is written.
	Dir string
}

// Synthesizer turns narration text into an audio file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
	Name() string
}
