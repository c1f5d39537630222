package imagegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/reelforge/internal/media"
	"github.com/MimeLyc/reelforge/internal/storage"
)

// MockGenerator renders a dark title card per scene with ffmpeg.
type MockGenerator struct {
	ff *media.FFmpeg
}

func NewMockGenerator(ff *media.FFmpeg) *MockGenerator {
	return &MockGenerator{ff: ff}
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	w, h, err := ParseSize(imageSize(req.Profile))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	output := filepath.Join(req.Dir, storage.JobFileName("scene", req.JobID, req.SceneIndex, "png"))
	label := fmt.Sprintf("Scene %d", req.SceneIndex)
	if t := strings.TrimSpace(req.Title); t != "" {
		label = t + " - " + label
	}
	draw := fmt.Sprintf("drawtext=text='%s':fontcolor=white@0.85:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2",
		drawtextEscape(label), w/18)
	err = m.ff.Run(ctx, fmt.Sprintf("mock image %d", req.SceneIndex),
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x05050a:s=%dx%d", w, h),
		"-vf", draw,
		"-frames:v", "1",
		output,
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func drawtextEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\\\`, `'`, `\\\'`, `:`, `\\:`, `%`, `\\%`)
	return r.Replace(s)
}
