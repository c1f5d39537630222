package subtitle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// minDetectConfidence is the whatlanggo confidence below which the caption
// language is reported as undetermined.
const minDetectConfidence = 0.5

// DefaultReader reads SRT caption files written by DefaultWriter.
type DefaultReader struct{}

// NewReader creates a new subtitle file reader
func NewReader() Reader {
	return &DefaultReader{}
}

// Read parses the SRT file at path.
func (r *DefaultReader) Read(path string) (*File, error) {
	if !strings.EqualFold(filepath.Ext(path), ".srt") {
		return nil, fmt.Errorf("only SRT captions are supported: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("caption file does not exist: %s", path)
		}
		return nil, fmt.Errorf("read caption file: %w", err)
	}
	return Parse(data, path)
}

// Parse reads SRT cues from data. Cues are blank-line separated blocks of
// index, time range and one or more text lines. path is informational.
func Parse(data []byte, path string) (*File, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")

	var lines []Line
	for n, block := range strings.Split(normalized, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		line, err := parseCue(block)
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		if k := len(lines); k > 0 && line.StartTime < lines[k-1].StartTime {
			return nil, fmt.Errorf("cue %d starts before cue %d", line.Index, lines[k-1].Index)
		}
		lines = append(lines, line)
	}

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines).String(),
		Format:   "SRT",
		Path:     path,
	}, nil
}

func parseCue(block string) (Line, error) {
	rows := strings.Split(block, "\n")
	if len(rows) < 3 {
		return Line{}, fmt.Errorf("expected index, time range and text, got %d lines", len(rows))
	}
	index, err := strconv.Atoi(strings.TrimSpace(rows[0]))
	if err != nil {
		return Line{}, fmt.Errorf("invalid index %q", rows[0])
	}
	start, end, ok := strings.Cut(rows[1], "-->")
	if !ok {
		return Line{}, fmt.Errorf("invalid time range %q", rows[1])
	}
	startTime, err := ParseTimestamp(start)
	if err != nil {
		return Line{}, err
	}
	endTime, err := ParseTimestamp(end)
	if err != nil {
		return Line{}, err
	}
	if endTime < startTime {
		return Line{}, fmt.Errorf("cue %d ends before it starts", index)
	}

	text := make([]string, 0, len(rows)-2)
	for _, row := range rows[2:] {
		text = append(text, strings.TrimSpace(row))
	}
	return Line{Index: index, StartTime: startTime, EndTime: endTime, Text: strings.Join(text, "\n")}, nil
}

// ParseTimestamp reads HH:MM:SS,mmm, the inverse of FormatTimestamp. A dot
// is accepted in place of the comma.
func ParseTimestamp(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	clock, millis, ok := strings.Cut(strings.Replace(raw, ".", ",", 1), ",")
	parts := strings.Split(clock, ":")
	if !ok || len(parts) != 3 || len(millis) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}

	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || (i > 0 && v > 59) {
			return 0, fmt.Errorf("invalid timestamp %q", raw)
		}
		d += time.Duration(v) * units[i]
	}
	ms, err := strconv.Atoi(millis)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	return d + time.Duration(ms)*time.Millisecond, nil
}

// detectLanguage guesses the language of the whole caption text. Captions
// are short fragments of one narration, so detection runs once over the
// joined text rather than per cue.
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line.Text)
		b.WriteString(" ")
	}
	info := whatlanggo.Detect(b.String())
	if info.Confidence < minDetectConfidence {
		return language.Und
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return language.Und
	}
	return tag
}
