// Package icron answers "when does this cron expression fire" questions for
// the cleanup schedule shown on the health endpoint.
package icron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard five-field expressions and @descriptors, the
// same syntax cron.ParseStandard validates at config load.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// lookback windows tried in order when searching for the previous firing.
var lookback = []time.Duration{
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	32 * 24 * time.Hour,
	367 * 24 * time.Hour,
}

type Trigger struct {
	Expression string    `json:"expression"`
	Next       time.Time `json:"next"`
	Previous   time.Time `json:"previous,omitempty"`
}

// Until is the time left before Next, measured from ref.
func (t *Trigger) Until(ref time.Time) time.Duration {
	return t.Next.Sub(ref)
}

// Validate reports whether expr can be scheduled.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// Describe returns the next firing after ref and the latest firing at or
// before ref. Previous stays zero when nothing fired within a year.
func Describe(expr string, ref time.Time) (*Trigger, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return &Trigger{
		Expression: strings.TrimSpace(expr),
		Next:       schedule.Next(ref),
		Previous:   previous(schedule, ref),
	}, nil
}

func previous(schedule cron.Schedule, ref time.Time) time.Time {
	for _, window := range lookback {
		t := schedule.Next(ref.Add(-window))
		if t.After(ref) {
			continue
		}
		for {
			n := schedule.Next(t)
			if n.After(ref) {
				return t
			}
			t = n
		}
	}
	return time.Time{}
}
