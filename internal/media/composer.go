package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/pkg/log"
)

// TransitionSeconds is the length of the glitch clip between scenes.
const TransitionSeconds = 0.4

const ambientAmplitude = 0.04

// Composer drives ffmpeg through the fixed sequence of render steps.
type Composer struct {
	ff      *FFmpeg
	prober  *Prober
	workDir string
}

func NewComposer(runner Runner, ffmpegCmd, ffprobeCmd, workDir string) *Composer {
	return &Composer{
		ff:      NewFFmpeg(runner, ffmpegCmd),
		prober:  NewProber(runner, ffprobeCmd),
		workDir: workDir,
	}
}

// FFmpeg exposes the composer's encoder wrapper.
func (c *Composer) FFmpeg() *FFmpeg {
	return c.ff
}

// Prober exposes the composer's ffprobe wrapper.
func (c *Composer) Prober() *Prober {
	return c.prober
}

// JobDir is the scratch directory for one job.
func (c *Composer) JobDir(jobID string) string {
	return filepath.Join(c.workDir, "jobs", jobID)
}

// Render builds the final video. Any failed encoder call aborts the render.
func (c *Composer) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	opts := req.Options
	jobDir := c.JobDir(req.JobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	output := req.OutputPath
	if output == "" {
		output = filepath.Join(jobDir, "final.mp4")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	segments, err := c.buildSegments(ctx, jobDir, req.Scenes, opts)
	if err != nil {
		return nil, err
	}

	visual := filepath.Join(jobDir, "visual.mp4")
	if err := c.concat(ctx, jobDir, segments, visual); err != nil {
		return nil, err
	}
	visualDuration, err := c.prober.ProbeDuration(ctx, visual)
	if err != nil {
		return nil, err
	}
	log.Debug("Job %s visual track %.2fs from %d segments", req.JobID, visualDuration, len(segments))

	ambient := ""
	if opts.IncludeMusic && opts.MusicVolume > 0 {
		ambient = filepath.Join(jobDir, "ambient.wav")
		if err := c.ffmpeg(ctx, "ambient bed", ambientArgs(ambient, req.NarrationDuration, opts.MusicVolume)...); err != nil {
			return nil, err
		}
	}

	subtitles := ""
	if opts.IncludeCaptions && req.SubtitlePath != "" {
		if _, err := os.Stat(req.SubtitlePath); err == nil {
			subtitles = req.SubtitlePath
		} else {
			log.Warn("Job %s subtitles %s missing, rendering without captions", req.JobID, req.SubtitlePath)
		}
	}

	if err := c.ffmpeg(ctx, "final encode", finalArgs(visual, req.NarrationPath, ambient, subtitles, output, opts)...); err != nil {
		return nil, err
	}

	probe, err := c.prober.Probe(ctx, output)
	if err != nil {
		return nil, err
	}
	return &RenderResult{
		VideoPath:      output,
		Duration:       probe.Duration,
		Width:          probe.Width,
		Height:         probe.Height,
		FPS:            probe.FPS,
		VisualDuration: visualDuration,
		Segments:       len(segments),
	}, nil
}

func validateRequest(req RenderRequest) error {
	if strings.TrimSpace(req.JobID) == "" {
		return fmt.Errorf("render request needs a job id")
	}
	if len(req.Scenes) == 0 {
		return fmt.Errorf("render request has no scenes")
	}
	for i, scene := range req.Scenes {
		if scene.ImagePath == "" {
			return fmt.Errorf("scene %d has no image", i+1)
		}
		if scene.Duration <= 0 {
			return fmt.Errorf("scene %d has non-positive duration %.2f", i+1, scene.Duration)
		}
	}
	if req.NarrationPath == "" {
		return fmt.Errorf("render request has no narration")
	}
	o := req.Options
	if o.Width <= 0 || o.Height <= 0 || o.FPS <= 0 {
		return fmt.Errorf("invalid render size %dx%d@%d", o.Width, o.Height, o.FPS)
	}
	return nil
}

// buildSegments renders one clip per scene, with a glitch clip between
// each adjacent pair when transitions are on. Order follows req.Scenes.
func (c *Composer) buildSegments(ctx context.Context, jobDir string, scenes []SceneClip, opts RenderOptions) ([]string, error) {
	segments := make([]string, 0, len(scenes)*2)
	for i, scene := range scenes {
		if i > 0 && opts.GlitchTransitions {
			glitch := filepath.Join(jobDir, fmt.Sprintf("transition_%02d.mp4", i))
			if err := c.ffmpeg(ctx, fmt.Sprintf("transition %d", i), transitionArgs(glitch, opts)...); err != nil {
				return nil, err
			}
			segments = append(segments, glitch)
		}

		segment := filepath.Join(jobDir, fmt.Sprintf("scene_%02d.mp4", i+1))
		if err := c.ffmpeg(ctx, fmt.Sprintf("scene segment %d", i+1), sceneArgs(scene, segment, opts)...); err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func (c *Composer) concat(ctx context.Context, jobDir string, segments []string, output string) error {
	listPath := filepath.Join(jobDir, "concat.txt")
	var b strings.Builder
	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			return err
		}
		b.WriteString(concatListEntry(abs))
		b.WriteString("\n")
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return c.ffmpeg(ctx, "concat", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c", "copy",
		output,
	)
}

func (c *Composer) ffmpeg(ctx context.Context, label string, args ...string) error {
	return c.ff.Run(ctx, label, args...)
}

func sceneFilter(opts RenderOptions) string {
	w, h := opts.Width, opts.Height
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
		fmt.Sprintf("crop=%d:%d", w, h),
		"format=yuv420p",
	}
	if opts.DarkGrade {
		filters = append(filters, "eq=brightness=-0.08:saturation=0.92")
	}
	if opts.Vignette {
		filters = append(filters, "vignette=PI/6")
	}
	return strings.Join(filters, ",")
}

func sceneArgs(scene SceneClip, output string, opts RenderOptions) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", scene.ImagePath,
		"-t", seconds(scene.Duration),
		"-r", strconv.Itoa(opts.FPS),
		"-vf", sceneFilter(opts),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-an",
		output,
	}
}

func transitionArgs(output string, opts RenderOptions) []string {
	src := fmt.Sprintf("rgbtestsrc=size=%dx%d:rate=%d", opts.Width, opts.Height, opts.FPS)
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", src,
		"-t", seconds(TransitionSeconds),
		"-vf", "hue=s=2,tblend=all_mode=xor,noise=alls=60:allf=t,format=yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-an",
		output,
	}
}

func ambientArgs(output string, duration, volume float64) []string {
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anoisesrc=color=brown:amplitude=%s:duration=%s", seconds(ambientAmplitude), seconds(duration)),
		"-t", seconds(duration),
		"-af", "volume=" + seconds(volume),
		"-c:a", "pcm_s16le",
		output,
	}
}

// finalArgs muxes narration and the optional ambient bed against the
// visual track, burns subtitles when given and encodes the deliverable.
func finalArgs(visual, narration, ambient, subtitles, output string, opts RenderOptions) []string {
	args := []string{"-y", "-i", visual, "-i", narration}
	if ambient != "" {
		args = append(args, "-i", ambient)
	}

	var graph []string
	videoLabel := "0:v:0"
	if subtitles != "" {
		graph = append(graph, fmt.Sprintf("[0:v]subtitles=%s[vout]", EscapeFilterPath(subtitles)))
		videoLabel = "[vout]"
	}

	narrationVolume := opts.NarrationVolume
	if narrationVolume <= 0 {
		narrationVolume = 1
	}
	audioLabel := "1:a:0"
	switch {
	case ambient != "":
		graph = append(graph,
			fmt.Sprintf("[1:a]volume=%s[narr]", seconds(narrationVolume)),
			"[narr][2:a]amix=inputs=2:duration=longest:dropout_transition=0:normalize=0[aout]",
		)
		audioLabel = "[aout]"
	case narrationVolume != 1:
		graph = append(graph, fmt.Sprintf("[1:a]volume=%s[aout]", seconds(narrationVolume)))
		audioLabel = "[aout]"
	}

	if len(graph) > 0 {
		args = append(args, "-filter_complex", strings.Join(graph, ";"))
	}
	preset := opts.Preset
	if preset == "" {
		preset = "medium"
	}
	args = append(args,
		"-map", videoLabel,
		"-map", audioLabel,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(opts.FPS),
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		output,
	)
	return args
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
