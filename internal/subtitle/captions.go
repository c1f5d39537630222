package subtitle

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLineWidth is the caption wrap width in characters.
const MaxLineWidth = 36

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// SceneTiming is the narration and allocated duration of one scene.
type SceneTiming struct {
	Narration string
	Duration  float64
}

// SplitSentences splits text on terminal punctuation, keeping it. A trailing
// fragment without punctuation becomes its own sentence.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	var ret []string
	for _, m := range sentenceRe.FindAllString(text, -1) {
		if s := strings.TrimSpace(m); s != "" && strings.Trim(s, ".!?") != "" {
			ret = append(ret, s)
		} else if s != "" && len(ret) > 0 {
			// stray punctuation such as "..." after a space
			ret[len(ret)-1] += s
		}
	}
	return ret
}

// WrapLines greedily fills lines up to width. Words are never broken; a
// word longer than width gets a line of its own.
func WrapLines(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

// Wrap joins WrapLines with newlines.
func Wrap(text string, width int) string {
	return strings.Join(WrapLines(text, width), "\n")
}

// BuildCaptions turns timed scenes into caption lines. Each scene's
// sentences share its duration by word count; the cursor runs across scenes
// without gaps and each scene's last caption ends on the scene boundary.
func BuildCaptions(scenes []SceneTiming) []Line {
	var lines []Line
	cursor := 0.0
	for _, scene := range scenes {
		sceneStart := cursor
		sceneEnd := sceneStart + scene.Duration
		sentences := SplitSentences(scene.Narration)

		weights := make([]float64, len(sentences))
		totalWords := 0.0
		for i, s := range sentences {
			weights[i] = float64(len(strings.Fields(s)))
			totalWords += weights[i]
		}
		if totalWords <= 0 {
			for i := range weights {
				weights[i] = 1
			}
			totalWords = float64(len(weights))
		}

		start := sceneStart
		acc := 0.0
		for i, sentence := range sentences {
			acc += weights[i]
			end := sceneStart + scene.Duration*acc/totalWords
			if i == len(sentences)-1 {
				end = sceneEnd
			}
			lines = append(lines, Line{
				Index:     len(lines) + 1,
				StartTime: secondsToDuration(start),
				EndTime:   secondsToDuration(end),
				Text:      Wrap(sentence, MaxLineWidth),
			})
			start = end
		}
		cursor = sceneEnd
	}
	return lines
}
