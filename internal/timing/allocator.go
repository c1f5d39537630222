package timing

import (
	"math"

	"github.com/MimeLyc/reelforge/internal/story"
)

const minSceneSeconds = 0.01

// Allocate splits total seconds across scenes in proportion to their word
// counts, each weighted at least 1. Values are rounded to 2 decimals and
// the rounding residue goes to the last scene, so the sum equals total.
// Every scene gets at least minSceneSeconds; a total too small for that is
// split evenly without rounding.
func Allocate(narrations []string, total float64) []float64 {
	n := len(narrations)
	if n == 0 {
		return nil
	}
	durations := make([]float64, n)
	if total > 0 && total < float64(n)*minSceneSeconds {
		for i := range durations {
			durations[i] = total / float64(n)
		}
		return durations
	}

	weights := make([]float64, n)
	sum := 0.0
	for i, text := range narrations {
		w := float64(story.WordCount(text))
		if w < 1 {
			w = 1
		}
		weights[i] = w
		sum += w
	}

	assigned := 0.0
	for i := 0; i < n-1; i++ {
		d := round2(total * weights[i] / sum)
		if d < minSceneSeconds && total > 0 {
			d = minSceneSeconds
		}
		durations[i] = d
		assigned += d
	}
	last := round2(total - assigned)
	for total > 0 && last < minSceneSeconds {
		// take the shortfall from the longest earlier scene
		j := 0
		for i := 1; i < n-1; i++ {
			if durations[i] > durations[j] {
				j = i
			}
		}
		durations[j] = round2(durations[j] - minSceneSeconds)
		last = round2(last + minSceneSeconds)
	}
	durations[n-1] = last
	return durations
}

// ApplyDurations re-derives every scene duration from total and sets the
// story's total. It is called again whenever total changes.
func ApplyDurations(s *story.Story, total float64) {
	durations := Allocate(s.Narrations(), total)
	for i := range s.Scenes {
		s.Scenes[i].Duration = durations[i]
	}
	s.TotalDuration = total
}

// Sum adds durations and rounds to 2 decimals.
func Sum(durations []float64) float64 {
	total := 0.0
	for _, d := range durations {
		total += d
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
