package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MimeLyc/reelforge/pkg/log"
)

// CommandResult holds the captured output of one process run.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so encoder calls can be faked.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes one command and captures stdout/stderr and exit code.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// CommandError is returned when an encoder invocation fails. It carries
// the diagnostic text the tool wrote to stderr.
type CommandError struct {
	Label    string
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed (%s exit %d)", e.Label, e.Name, e.ExitCode)
	if stderr := lastLines(e.Stderr, 5); stderr != "" {
		msg += ": " + stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// run executes name through runner and converts failures to *CommandError.
func run(ctx context.Context, runner Runner, label, name string, args ...string) (CommandResult, error) {
	res, err := runner.Run(ctx, name, args...)
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("exit status %d", res.ExitCode)
	}
	if err != nil {
		return res, &CommandError{
			Label:    label,
			Name:     name,
			Args:     append([]string(nil), args...),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return res, nil
}

// FFmpeg runs ffmpeg with quiet logging through a Runner.
type FFmpeg struct {
	runner Runner
	cmd    string
}

func NewFFmpeg(runner Runner, cmd string) *FFmpeg {
	if cmd == "" {
		cmd = "ffmpeg"
	}
	return &FFmpeg{runner: runner, cmd: cmd}
}

// Run invokes ffmpeg. label names the step in logs and errors.
func (f *FFmpeg) Run(ctx context.Context, label string, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error"}, args...)
	log.Debug("ffmpeg %s: %s", label, strings.Join(full, " "))
	if _, err := run(ctx, f.runner, label, f.cmd, full...); err != nil {
		log.Error("ffmpeg %s failed: %v", label, err)
		return err
	}
	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
