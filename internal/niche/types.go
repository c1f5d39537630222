package niche

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Profile is a named bundle of tone, visual style, voice, caption and
// hashtag defaults for one content category.
type Profile struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Language    string     `yaml:"language" json:"language"`
	StoryStyle  StoryStyle `yaml:"story_style" json:"story_style"`
	Visuals     Visuals    `yaml:"visuals" json:"visuals"`
	Voice       Voice      `yaml:"voice" json:"voice"`
	Music       Music      `yaml:"music" json:"music"`
	Captions    Captions   `yaml:"captions" json:"captions"`
	Hashtags    Hashtags   `yaml:"hashtags" json:"hashtags"`
}

type StoryStyle struct {
	DefaultLengthSeconds int       `yaml:"default_length_seconds" json:"default_length_seconds"`
	Tone                 string    `yaml:"tone" json:"tone"`
	StructureTemplate    []string  `yaml:"structure_template" json:"structure_template"`
	TargetWordCount      WordRange `yaml:"target_word_count" json:"target_word_count"`
}

type WordRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type Visuals struct {
	BaseStylePrompt string `yaml:"base_style_prompt" json:"base_style_prompt"`
	NumScenes       int    `yaml:"num_scenes" json:"num_scenes"`
	ImageSize       string `yaml:"image_size" json:"image_size"`
}

type Voice struct {
	Provider string  `yaml:"provider" json:"provider"`
	VoiceID  string  `yaml:"voice_id" json:"voice_id"`
	Speed    float64 `yaml:"speed" json:"speed"`
	Model    string  `yaml:"model" json:"model"`
}

type Music struct {
	AddMusic    bool    `yaml:"add_music" json:"add_music"`
	Mood        string  `yaml:"mood" json:"mood"`
	MusicVolume float64 `yaml:"music_volume" json:"music_volume"`
}

type Captions struct {
	FontFamily string `yaml:"font_family" json:"font_family"`
	FontSize   int    `yaml:"font_size" json:"font_size"`
	FontColor  string `yaml:"font_color" json:"font_color"`
	Placement  string `yaml:"placement" json:"placement"`
}

type Hashtags struct {
	Default    []string `yaml:"default" json:"default"`
	CTAPhrases []string `yaml:"cta_phrases" json:"cta_phrases"`
}

var supportedImageSizes = map[string]bool{
	"1024x1792": true,
	"1024x1024": true,
	"1792x1024": true,
}

// LanguageTag returns the narration language, English when unset or invalid.
func (p Profile) LanguageTag() language.Tag {
	if p.Language == "" {
		return language.English
	}
	tag, err := language.Parse(p.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// Validate enforces the ranges every profile must satisfy at load time.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	if p.Language != "" {
		if _, err := language.Parse(p.Language); err != nil {
			return fmt.Errorf("profile %s: invalid language %q: %w", p.ID, p.Language, err)
		}
	}
	style := p.StoryStyle
	if style.DefaultLengthSeconds < 30 || style.DefaultLengthSeconds > 180 {
		return fmt.Errorf("profile %s: default_length_seconds must be within [30, 180]", p.ID)
	}
	if style.TargetWordCount.Min <= 0 || style.TargetWordCount.Min > style.TargetWordCount.Max {
		return fmt.Errorf("profile %s: invalid target_word_count [%d, %d]",
			p.ID, style.TargetWordCount.Min, style.TargetWordCount.Max)
	}
	if p.Visuals.NumScenes < 3 || p.Visuals.NumScenes > 6 {
		return fmt.Errorf("profile %s: num_scenes must be within [3, 6]", p.ID)
	}
	if p.Visuals.ImageSize != "" && !supportedImageSizes[p.Visuals.ImageSize] {
		return fmt.Errorf("profile %s: unsupported image_size %q", p.ID, p.Visuals.ImageSize)
	}
	if p.Voice.Speed != 0 && (p.Voice.Speed < 0.25 || p.Voice.Speed > 4.0) {
		return fmt.Errorf("profile %s: voice speed must be within [0.25, 4]", p.ID)
	}
	if p.Music.MusicVolume < 0 || p.Music.MusicVolume > 1 {
		return fmt.Errorf("profile %s: music_volume must be within [0, 1]", p.ID)
	}
	if p.Captions.FontSize != 0 && (p.Captions.FontSize < 20 || p.Captions.FontSize > 100) {
		return fmt.Errorf("profile %s: caption font_size must be within [20, 100]", p.ID)
	}
	switch p.Captions.Placement {
	case "", "top", "center", "bottom":
	default:
		return fmt.Errorf("profile %s: unsupported caption placement %q", p.ID, p.Captions.Placement)
	}
	if len(p.Hashtags.Default) < 3 {
		return fmt.Errorf("profile %s: at least 3 default hashtags are required", p.ID)
	}
	return nil
}
