package media

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	result CommandResult
	err    error
	name   string
	args   []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	s.name = name
	s.args = args
	return s.result, s.err
}

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected ProbeResult
		wantErr  bool
	}{
		{
			name:     "vertical video",
			output:   `{"streams":[{"width":1080,"height":1920,"r_frame_rate":"30/1"}],"format":{"duration":"17.550000"}}`,
			expected: ProbeResult{Duration: 17.55, Width: 1080, Height: 1920, FPS: 30},
		},
		{
			name:     "ntsc rate",
			output:   `{"streams":[{"width":720,"height":1280,"r_frame_rate":"30000/1001"}],"format":{"duration":"3.0"}}`,
			expected: ProbeResult{Duration: 3, Width: 720, Height: 1280, FPS: 30000.0 / 1001.0},
		},
		{
			name:     "audio only",
			output:   `{"streams":[],"format":{"duration":"61.2"}}`,
			expected: ProbeResult{Duration: 61.2},
		},
		{
			name:    "invalid json",
			output:  `not json`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{result: CommandResult{Stdout: tt.output}}
			got, err := NewProber(runner, "").Probe(context.Background(), "/tmp/x.mp4")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected.Duration, got.Duration, 1e-6)
			assert.Equal(t, tt.expected.Width, got.Width)
			assert.Equal(t, tt.expected.Height, got.Height)
			assert.InDelta(t, tt.expected.FPS, got.FPS, 1e-6)
			assert.Equal(t, "ffprobe", runner.name)
			assert.Equal(t, "/tmp/x.mp4", runner.args[len(runner.args)-1])
		})
	}
}

func TestProber_ProbeDurationRequiresValue(t *testing.T) {
	runner := &stubRunner{result: CommandResult{Stdout: `{"format":{"duration":"N/A"}}`}}
	_, err := NewProber(runner, "ffprobe").ProbeDuration(context.Background(), "a.mp3")
	require.Error(t, err)
}

func TestRun_WrapsFailureAsCommandError(t *testing.T) {
	runner := &stubRunner{
		result: CommandResult{ExitCode: 1, Stderr: "line one\nInvalid data found when processing input"},
		err:    errors.New("exit status 1"),
	}
	_, err := NewProber(runner, "ffprobe").Probe(context.Background(), "broken.mp4")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Equal(t, "probe", cmdErr.Label)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestRun_NonZeroExitWithoutError(t *testing.T) {
	runner := &stubRunner{result: CommandResult{ExitCode: 2}}
	_, err := NewProber(runner, "ffprobe").Probe(context.Background(), "x.mp4")
	require.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, parseFrameRate("30/1"))
	assert.Equal(t, 25.0, parseFrameRate("25"))
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
	assert.Equal(t, 0.0, parseFrameRate("abc"))
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `C\:/jobs/a/captions.srt`, EscapeFilterPath(`C:\jobs\a\captions.srt`))
	assert.Equal(t, `/out/it\'s\:here.srt`, EscapeFilterPath(`/out/it's:here.srt`))
}

func TestConcatListEntry(t *testing.T) {
	assert.Equal(t, `file '/tmp/scene_01.mp4'`, concatListEntry("/tmp/scene_01.mp4"))
	assert.Equal(t, `file '/tmp/it'\''s.mp4'`, concatListEntry("/tmp/it's.mp4"))
}

func TestRenderOptions_Merge(t *testing.T) {
	base := RenderOptions{IncludeCaptions: true, IncludeMusic: true, MusicVolume: 0.18, CRF: 20, Preset: "medium"}
	off := false
	vol := 0.3
	bad := 7.0
	crf := 28

	got := base.Merge(&RenderOverrides{IncludeMusic: &off, MusicVolume: &vol, CRF: &crf})
	assert.False(t, got.IncludeMusic)
	assert.True(t, got.IncludeCaptions)
	assert.Equal(t, 0.3, got.MusicVolume)
	assert.Equal(t, 28, got.CRF)

	got = base.Merge(&RenderOverrides{MusicVolume: &bad})
	assert.Equal(t, 0.18, got.MusicVolume)
	assert.Equal(t, base, base.Merge(nil))
}

func TestFinalArgs(t *testing.T) {
	opts := RenderOptions{Width: 1080, Height: 1920, FPS: 30, CRF: 20, Preset: "medium", NarrationVolume: 1}

	withBed := finalArgs("v.mp4", "n.mp3", "amb.wav", "/data/c:1.srt", "out.mp4", opts)
	assert.Contains(t, withBed, "-filter_complex")
	assert.Contains(t, withBed, "[aout]")
	assert.Contains(t, withBed, "[vout]")
	assert.Contains(t, withBed, "-shortest")
	assert.Equal(t, "out.mp4", withBed[len(withBed)-1])
	graph := withBed[indexOf(withBed, "-filter_complex")+1]
	assert.Contains(t, graph, `subtitles=/data/c\:1.srt`)
	assert.Contains(t, graph, "amix=inputs=2:duration=longest")

	plain := finalArgs("v.mp4", "n.mp3", "", "", "out.mp4", opts)
	assert.NotContains(t, plain, "-filter_complex")
	assert.Equal(t, "0:v:0", plain[indexOf(plain, "-map")+1])
	assert.Contains(t, plain, "1:a:0")
}

func TestSceneFilter(t *testing.T) {
	opts := RenderOptions{Width: 1080, Height: 1920, DarkGrade: true, Vignette: true}
	assert.Equal(t,
		"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,format=yuv420p,eq=brightness=-0.08:saturation=0.92,vignette=PI/6",
		sceneFilter(opts))

	opts.DarkGrade, opts.Vignette = false, false
	assert.Equal(t, "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,format=yuv420p", sceneFilter(opts))
}

// TestRealFFmpeg renders a tiny clip when the binaries are installed.
func TestRealFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test that requires actual ffmpeg")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping real test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available, skipping real test")
	}

	ctx := context.Background()
	dir := t.TempDir()
	runner := NewExecRunner()
	image := filepath.Join(dir, "card.png")
	narration := filepath.Join(dir, "narration.wav")
	_, err := run(ctx, runner, "card", "ffmpeg", "-y", "-f", "lavfi", "-i", "color=c=0x05050a:s=320x240", "-frames:v", "1", image)
	require.NoError(t, err)
	_, err = run(ctx, runner, "tone", "ffmpeg", "-y", "-f", "lavfi", "-i", "sine=frequency=220:duration=3", narration)
	require.NoError(t, err)

	composer := NewComposer(runner, "ffmpeg", "ffprobe", dir)
	res, err := composer.Render(ctx, RenderRequest{
		JobID: "real",
		Scenes: []SceneClip{
			{ImagePath: image, Duration: 1},
			{ImagePath: image, Duration: 1.5},
		},
		NarrationPath:     narration,
		NarrationDuration: 3,
		Options: RenderOptions{
			Width: 180, Height: 320, FPS: 24, CRF: 30, Preset: "ultrafast",
			GlitchTransitions: true, IncludeMusic: true, MusicVolume: 0.2, NarrationVolume: 1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 180, res.Width)
	assert.Equal(t, 320, res.Height)
	assert.InDelta(t, 2.9, res.VisualDuration, 0.2)
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
