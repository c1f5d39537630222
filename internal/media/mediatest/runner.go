// Package mediatest provides a fake encoder for tests that exercise code
// paths driving ffmpeg and ffprobe.
package mediatest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/MimeLyc/reelforge/internal/media"
)

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// Joined returns the arguments as one space separated string.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

// Runner simulates ffmpeg and ffprobe. Every ffmpeg output gets a small
// placeholder file and a simulated duration derived from its arguments;
// ffprobe reports those durations back.
type Runner struct {
	Width  int
	Height int
	// FrameRate is reported verbatim as r_frame_rate.
	FrameRate string
	// FailOn makes any ffmpeg call whose arguments contain it exit 1.
	FailOn string

	mu        sync.Mutex
	calls     []Call
	durations map[string]float64
}

func NewRunner() *Runner {
	return &Runner{
		Width:     1080,
		Height:    1920,
		FrameRate: "30/1",
		durations: make(map[string]float64),
	}
}

var _ media.Runner = (*Runner)(nil)

func (r *Runner) Run(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return media.CommandResult{ExitCode: -1}, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if len(args) == 0 {
		return media.CommandResult{ExitCode: 1, Stderr: "no arguments"}, fmt.Errorf("exit status 1")
	}
	if strings.Contains(filepath.Base(name), "ffprobe") {
		return r.probe(args[len(args)-1])
	}

	if r.FailOn != "" && strings.Contains(strings.Join(args, " "), r.FailOn) {
		return media.CommandResult{ExitCode: 1, Stderr: "simulated encoder failure: " + r.FailOn}, fmt.Errorf("exit status 1")
	}

	output := args[len(args)-1]
	duration, err := r.simulate(args)
	if err != nil {
		return media.CommandResult{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("exit status 1")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return media.CommandResult{ExitCode: 1, Stderr: err.Error()}, err
	}
	if err := os.WriteFile(output, []byte("fake media"), 0o644); err != nil {
		return media.CommandResult{ExitCode: 1, Stderr: err.Error()}, err
	}
	r.SetDuration(output, duration)
	return media.CommandResult{}, nil
}

// SetDuration registers the duration ffprobe reports for path.
func (r *Runner) SetDuration(path string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[key(path)] = seconds
}

// Duration returns the simulated duration of path.
func (r *Runner) Duration(path string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durations[key(path)]
}

// Calls returns a copy of every recorded invocation.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsContaining returns the invocations whose arguments contain substr.
func (r *Runner) CallsContaining(substr string) []Call {
	var ret []Call
	for _, c := range r.Calls() {
		if strings.Contains(c.Joined(), substr) {
			ret = append(ret, c)
		}
	}
	return ret
}

func (r *Runner) simulate(args []string) (float64, error) {
	inputs := argValues(args, "-i")

	if hasPair(args, "-f", "concat") {
		if len(inputs) == 0 {
			return 0, fmt.Errorf("concat without list")
		}
		return r.concatDuration(inputs[0])
	}

	if contains(args, "-shortest") {
		if len(inputs) < 2 {
			return 0, fmt.Errorf("mux needs video and audio inputs")
		}
		video := r.Duration(inputs[0])
		audio := r.Duration(inputs[1])
		if len(inputs) > 2 && strings.Contains(strings.Join(args, " "), "duration=longest") {
			if amb := r.Duration(inputs[2]); amb > audio {
				audio = amb
			}
		}
		if audio < video {
			return audio, nil
		}
		return video, nil
	}

	if values := argValues(args, "-t"); len(values) > 0 {
		return strconv.ParseFloat(values[len(values)-1], 64)
	}
	return 0, nil
}

func (r *Runner) concatDuration(listPath string) (float64, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	total := 0.0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "file '") || !strings.HasSuffix(line, "'") {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		path = strings.ReplaceAll(path, `'\''`, "'")
		if _, err := os.Stat(path); err != nil {
			return 0, fmt.Errorf("concat input %s: %w", path, err)
		}
		total += r.Duration(path)
	}
	return total, scanner.Err()
}

func (r *Runner) probe(path string) (media.CommandResult, error) {
	if _, err := os.Stat(path); err != nil {
		return media.CommandResult{ExitCode: 1, Stderr: path + ": No such file or directory"}, fmt.Errorf("exit status 1")
	}
	out := fmt.Sprintf(`{"streams":[{"width":%d,"height":%d,"r_frame_rate":%q}],"format":{"duration":"%s"}}`,
		r.Width, r.Height, r.FrameRate, strconv.FormatFloat(r.Duration(path), 'f', 6, 64))
	return media.CommandResult{Stdout: out}, nil
}

func key(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

func argValues(args []string, flag string) []string {
	var ret []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			ret = append(ret, args[i+1])
		}
	}
	return ret
}

func hasPair(args []string, flag, value string) bool {
	for _, v := range argValues(args, flag) {
		if v == value {
			return true
		}
	}
	return false
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}
