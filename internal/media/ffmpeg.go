package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MimeLyc/reelforge/pkg/log"
)

// ProbeResult is the subset of ffprobe output the pipeline uses.
type ProbeResult struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// Prober reads media metadata through ffprobe.
type Prober struct {
	runner     Runner
	ffprobeCmd string
}

func NewProber(runner Runner, ffprobeCmd string) *Prober {
	if ffprobeCmd == "" {
		ffprobeCmd = "ffprobe"
	}
	return &Prober{runner: runner, ffprobeCmd: ffprobeCmd}
}

// Probe returns duration, first video stream size and frame rate.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	res, err := run(ctx, p.runner, "probe", p.ffprobeCmd, readProbeArgs(path)...)
	if err != nil {
		return ProbeResult{}, err
	}
	return parseProbe(res.Stdout)
}

// ProbeDuration returns the container duration in seconds.
func (p *Prober) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := run(ctx, p.runner, "probe duration", p.ffprobeCmd, durationProbeArgs(path)...)
	if err != nil {
		return 0, err
	}
	probe, err := parseProbe(res.Stdout)
	if err != nil {
		return 0, err
	}
	if probe.Duration <= 0 {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return probe.Duration, nil
}

func parseProbe(output string) (ProbeResult, error) {
	var probeResult struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal([]byte(output), &probeResult); err != nil {
		log.Error("Failed to parse ffprobe output: %v", err)
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var ret ProbeResult
	if d := strings.TrimSpace(probeResult.Format.Duration); d != "" && d != "N/A" {
		duration, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("parse duration %q: %w", d, err)
		}
		ret.Duration = duration
	}
	if len(probeResult.Streams) > 0 {
		stream := probeResult.Streams[0]
		ret.Width = stream.Width
		ret.Height = stream.Height
		ret.FPS = parseFrameRate(stream.RFrameRate)
	}
	return ret, nil
}

// parseFrameRate turns an ffprobe ratio such as "30000/1001" into fps.
func parseFrameRate(ratio string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(ratio), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func readProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}
}

func durationProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}
}

// EscapeFilterPath escapes a file path for use as a filter argument.
// Colons separate filter options, so they must be escaped.
func EscapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.NewReplacer(
		":", `\:`,
		"'", `\'`,
		",", `\,`,
		"[", `\[`,
		"]", `\]`,
		";", `\;`,
	).Replace(path)
}

// concatListEntry renders one line of an ffmpeg concat demuxer list.
func concatListEntry(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// ToolsAvailable reports whether both encoder binaries are on PATH.
func ToolsAvailable(ffmpegCmd, ffprobeCmd string) bool {
	for _, name := range []string{ffmpegCmd, ffprobeCmd} {
		if _, err := exec.LookPath(name); err != nil {
			return false
		}
	}
	return true
}
