package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/pkg/log"
)

const mockMinSeconds = 10.0

// MockSynthesizer renders a placeholder tone whose length matches what a
// narrator would need for the text at the reference speaking rate.
type MockSynthesizer struct {
	ff *media.FFmpeg
}

func NewMockSynthesizer(ff *media.FFmpeg) *MockSynthesizer {
	return &MockSynthesizer{ff: ff}
}

func (m *MockSynthesizer) Name() string { return "mock" }

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create narration dir: %w", err)
	}

	duration := MockDuration(req.Text, req.Speed)
	output := filepath.Join(req.Dir, storage.JobFileName("narration", req.JobID, 0, "mp3"))
	d := strconv.FormatFloat(duration, 'f', 2, 64)
	err := m.ff.Run(ctx, "mock narration",
		"-y",
		"-f", "lavfi", "-i", "sine=frequency=196:duration="+d,
		"-f", "lavfi", "-i", "anoisesrc=color=pink:amplitude=0.02:duration="+d,
		"-filter_complex", "[0:a]volume=0.3[tone];[tone][1:a]amix=inputs=2:duration=first[aout]",
		"-map", "[aout]",
		"-t", d,
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		output,
	)
	if err != nil {
		return "", err
	}
	log.Info("Job %s mock narration %.2fs -> %s", req.JobID, duration, output)
	return output, nil
}

// MockDuration estimates the spoken length of text, never below ten seconds.
func MockDuration(text string, speed float64) float64 {
	if speed <= 0 {
		speed = 1
	}
	seconds := float64(story.WordCount(text)) / story.WordsPerMinute * 60 / speed
	if seconds < mockMinSeconds {
		seconds = mockMinSeconds
	}
	return float64(int(seconds*100+0.5)) / 100
}

func validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("narration text is empty")
	}
	if req.JobID == "" {
		return fmt.Errorf("narration request needs a job id")
	}
	if req.Dir == "" {
		return fmt.Errorf("narration request needs an output dir")
	}
	return nil
}
