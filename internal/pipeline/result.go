package pipeline

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/MimeLyc/reelforge/internal/story"
)

const maxHashtags = 10

// Result is attached to a completed job.
type Result struct {
	VideoPath    string       `json:"videoPath"`
	VideoURL     string       `json:"videoUrl"`
	SubtitlePath string       `json:"subtitlePath,omitempty"`
	SubtitleURL  string       `json:"subtitleUrl,omitempty"`
	Description  string       `json:"description"`
	Hashtags     []string     `json:"hashtags"`
	Metadata     Metadata     `json:"metadata"`
	Story        *story.Story `json:"story"`
	Assets       Assets       `json:"assets"`
}

type Metadata struct {
	DurationSeconds float64   `json:"durationSeconds"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	FPS             float64   `json:"fps"`
	NumberOfScenes  int       `json:"numberOfScenes"`
	Niche           string    `json:"niche"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"createdAt"`
	CompletedAt     time.Time `json:"completedAt"`
	OutputPath      string    `json:"outputPath"`
}

type Assets struct {
	NarrationAudio string   `json:"narrationAudio"`
	SceneImages    []string `json:"sceneImages"`
	CaptionsFile   string   `json:"captionsFile"`
}

// BuildDescription is "<title> — <first hook sentence> <cta>".
func BuildDescription(s *story.Story, profile niche.Profile) string {
	hook := strings.TrimSpace(s.Hook)
	if hook == "" && len(s.Scenes) > 0 {
		hook = s.Scenes[0].Narration
	}
	hook = firstSentence(hook)

	desc := strings.TrimSpace(s.Title)
	if hook != "" {
		desc = fmt.Sprintf("%s — %s", desc, hook)
	}
	if cta := pickCTA(s.ID, profile.Hashtags.CTAPhrases); cta != "" {
		desc += " " + cta
	}
	return desc
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}

func pickCTA(seed string, phrases []string) string {
	if len(phrases) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return strings.TrimSpace(phrases[int(h.Sum32()%uint32(len(phrases)))])
}

// MergeHashtags combines story and profile hashtags, story first,
// normalized to a leading '#', de-duplicated case-insensitively.
func MergeHashtags(storyTags, profileTags []string) []string {
	seen := make(map[string]bool)
	ret := make([]string, 0, len(storyTags)+len(profileTags))
	for _, list := range [][]string{storyTags, profileTags} {
		for _, tag := range list {
			tag = normalizeHashtag(tag)
			key := strings.ToLower(tag)
			if tag == "" || seen[key] {
				continue
			}
			seen[key] = true
			ret = append(ret, tag)
			if len(ret) == maxHashtags {
				return ret
			}
		}
	}
	return ret
}

func normalizeHashtag(tag string) string {
	tag = strings.Join(strings.Fields(tag), "")
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}
