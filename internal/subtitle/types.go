package subtitle

import "time"

type Reader interface {
	Read(path string) (*File, error)
}

type Writer interface {
	Write(path string, captions *File) error
}

// Line is one time-bounded caption segment. Index is 1-based.
type Line struct {
	Index     int           `json:"index"`
	StartTime time.Duration `json:"-"`
	EndTime   time.Duration `json:"-"`
	Text      string        `json:"text"`
}

// Start returns the start offset in seconds.
func (l Line) Start() float64 { return l.StartTime.Seconds() }

// End returns the end offset in seconds.
func (l Line) End() float64 { return l.EndTime.Seconds() }

// File is a parsed or generated caption track. Language is a BCP 47 tag,
// "und" when detection is not confident.
type File struct {
	Lines    []Line
	Language string
	Format   string
	Path     string
}

// Duration is the end of the last cue.
func (f *File) Duration() time.Duration {
	if f == nil || len(f.Lines) == 0 {
		return 0
	}
	return f.Lines[len(f.Lines)-1].EndTime
}
