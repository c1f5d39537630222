package story

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

const (
	// WordsPerMinute is the narration speaking rate used for estimates.
	WordsPerMinute = 155.0
	// MinDurationSeconds is the floor applied to estimated story length.
	MinDurationSeconds = 45.0

	minStageWords = 25
)

// Stage is one beat of the fixed four-part structure.
type Stage string

const (
	StageHook   Stage = "hook"
	StageBuild  Stage = "build"
	StageTwist  Stage = "twist"
	StageEnding Stage = "ending"
)

// Stages lists the structure in narration order.
var Stages = []Stage{StageHook, StageBuild, StageTwist, StageEnding}

var stageWeights = map[Stage]float64{
	StageHook:   0.20,
	StageBuild:  0.30,
	StageTwist:  0.28,
	StageEnding: 0.22,
}

// WordBand is an inclusive [Min, Max] word-count range.
type WordBand struct {
	Min int
	Max int
}

func (b WordBand) Midpoint() int {
	return (b.Min + b.Max) / 2
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateDuration converts a word count to seconds at WordsPerMinute,
// clamped to [MinDurationSeconds, maxSeconds].
func EstimateDuration(words int, maxSeconds float64) float64 {
	seconds := float64(words) / WordsPerMinute * 60
	seconds = math.Round(seconds*100) / 100
	if seconds < MinDurationSeconds {
		seconds = MinDurationSeconds
	}
	if maxSeconds > 0 && seconds > maxSeconds {
		seconds = maxSeconds
	}
	return seconds
}

// TargetWords picks the word target for a generated story. A requested
// duration is converted at the speaking rate; zero means the band midpoint.
func TargetWords(requestedSeconds float64, band WordBand) int {
	if requestedSeconds <= 0 {
		return band.Midpoint()
	}
	words := int(math.Round(requestedSeconds * WordsPerMinute / 60))
	if words < band.Min {
		return band.Min
	}
	if words > band.Max {
		return band.Max
	}
	return words
}

// StageWords distributes total across the four stages with a floor of 25
// words per stage.
func StageWords(total int) map[Stage]int {
	ret := make(map[Stage]int, len(Stages))
	for _, stage := range Stages {
		words := int(math.Round(float64(total) * stageWeights[stage]))
		if words < minStageWords {
			words = minStageWords
		}
		ret[stage] = words
	}
	return ret
}

// FromScript builds a story from caller-supplied scenes without touching
// their text.
func FromScript(script Script, maxSeconds float64) (*Story, error) {
	if len(script.Scenes) == 0 {
		return nil, fmt.Errorf("script has no scenes")
	}
	title := strings.TrimSpace(script.Title)
	if title == "" {
		return nil, fmt.Errorf("script title is required")
	}

	scenes := make([]Scene, 0, len(script.Scenes))
	words := 0
	for i, s := range script.Scenes {
		if strings.TrimSpace(s.Narration) == "" {
			return nil, fmt.Errorf("scene %d has empty narration", i+1)
		}
		words += WordCount(s.Narration)
		scenes = append(scenes, Scene{
			Index:       i + 1,
			Description: s.Description,
			Narration:   s.Narration,
			ImagePrompt: Scene{ImagePrompt: s.ImagePrompt, Description: s.Description}.Prompt(),
		})
	}

	hook := strings.TrimSpace(script.Hook)
	if hook == "" {
		hook = firstSentence(scenes[0].Narration)
	}

	return &Story{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   script.Description,
		Hook:          hook,
		Scenes:        scenes,
		TotalDuration: EstimateDuration(words, maxSeconds),
		WordCount:     words,
		Hashtags:      append([]string(nil), script.Hashtags...),
		CreatedAt:     time.Now(),
	}, nil
}

// Finalize renumbers scenes, recomputes the word count and the duration
// estimate. Generators call it on whatever they produced.
func Finalize(s *Story, maxSeconds float64) {
	words := 0
	for i := range s.Scenes {
		s.Scenes[i].Index = i + 1
		if strings.TrimSpace(s.Scenes[i].ImagePrompt) == "" {
			s.Scenes[i].ImagePrompt = s.Scenes[i].Description
		}
		words += WordCount(s.Scenes[i].Narration)
	}
	s.WordCount = words
	s.TotalDuration = EstimateDuration(words, maxSeconds)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if strings.TrimSpace(s.Hook) == "" && len(s.Scenes) > 0 {
		s.Hook = firstSentence(s.Scenes[0].Narration)
	}
}

// Bounds are the limits a story must satisfy before rendering.
type Bounds struct {
	MinWords  int
	MaxWords  int
	MinScenes int
	MaxScenes int
}

// BoundsError reports which limit a story violated.
type BoundsError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("story %s %d outside [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

// Validate checks scene count and word count against b.
func Validate(s *Story, b Bounds) error {
	if s == nil {
		return fmt.Errorf("story is nil")
	}
	minScenes := b.MinScenes
	if minScenes <= 0 {
		minScenes = 3
	}
	if n := len(s.Scenes); n < minScenes || n > b.MaxScenes {
		return &BoundsError{Field: "scene count", Value: n, Min: minScenes, Max: b.MaxScenes}
	}
	for _, scene := range s.Scenes {
		if strings.TrimSpace(scene.Narration) == "" {
			return fmt.Errorf("scene %d has empty narration", scene.Index)
		}
	}
	words := 0
	for _, scene := range s.Scenes {
		words += WordCount(scene.Narration)
	}
	if words < b.MinWords || words > b.MaxWords {
		return &BoundsError{Field: "word count", Value: words, Min: b.MinWords, Max: b.MaxWords}
	}
	return nil
}

// DetectLanguage guesses the narration language.
func DetectLanguage(s *Story) language.Tag {
	text := s.Narration()
	if strings.TrimSpace(text) == "" {
		return language.Und
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return language.Und
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return language.Und
	}
	return tag
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		return strings.TrimSpace(text[:idx+1])
	}
	return text
}
