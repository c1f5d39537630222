package subtitle

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultWriter writes SRT files. The file appears at its final path only
// once fully written, so the captions endpoint never serves a partial file.
type DefaultWriter struct{}

func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write renders captions as SRT at path, creating parent directories.
func (w *DefaultWriter) Write(path string, captions *File) error {
	if captions == nil {
		return fmt.Errorf("caption data is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create caption dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create caption file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(FormatSRT(captions.Lines)); err != nil {
		tmp.Close()
		return fmt.Errorf("write caption file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close caption file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish caption file: %w", err)
	}
	return nil
}

// FormatSRT renders lines as SRT: index, time range, text, blank line.
func FormatSRT(lines []Line) []byte {
	var buf bytes.Buffer
	for _, line := range lines {
		fmt.Fprintf(&buf, "%d\n", line.Index)
		fmt.Fprintf(&buf, "%s --> %s\n", formatDuration(line.StartTime), formatDuration(line.EndTime))
		fmt.Fprintf(&buf, "%s\n\n", line.Text)
	}
	return buf.Bytes()
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, floored to milliseconds.
func FormatTimestamp(seconds float64) string {
	return formatDuration(secondsToDuration(seconds))
}

// secondsToDuration floors to whole milliseconds. The epsilon absorbs
// binary representation error such as 0.29*1000 = 289.999...
func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	ms := math.Floor(seconds*1000 + 1e-6)
	return time.Duration(ms) * time.Millisecond
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
