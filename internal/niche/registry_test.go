package niche

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBuiltin_ProfilesAreValid(t *testing.T) {
	profiles, err := Builtin()
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	for _, p := range profiles {
		require.NoError(t, p.Validate(), p.ID)
	}
}

func TestNewDefaultRegistry_HorrorDefaults(t *testing.T) {
	r, err := NewDefaultRegistry("horror", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"horror", "reddit_stories"}, r.IDs())

	p, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "horror", p.ID)
	assert.Equal(t, []string{"hook", "build", "twist", "ending"}, p.StoryStyle.StructureTemplate)
	assert.Equal(t, 140, p.StoryStyle.TargetWordCount.Min)
	assert.Equal(t, 185, p.StoryStyle.TargetWordCount.Max)
	assert.Equal(t, "onyx", p.Voice.VoiceID)
	assert.GreaterOrEqual(t, len(p.Hashtags.Default), 3)
	assert.Equal(t, language.English, p.LanguageTag())
}

func TestRegistry_UnknownProfileListsAvailable(t *testing.T) {
	r, err := NewDefaultRegistry("horror", "")
	require.NoError(t, err)

	_, err = r.Get("cooking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "horror")
	assert.Contains(t, err.Error(), "reddit_stories")
}

func TestNewRegistry_UnknownDefault(t *testing.T) {
	profiles, err := Builtin()
	require.NoError(t, err)

	_, err = NewRegistry("cooking", profiles...)
	require.Error(t, err)
}

func TestLoadFile_OverridesBuiltin(t *testing.T) {
	content := `profiles:
  - id: horror
    name: Quiet Horror
    language: en
    story_style:
      default_length_seconds: 50
      tone: hushed
      structure_template: [hook, build, twist, ending]
      target_word_count: {min: 120, max: 160}
    visuals:
      base_style_prompt: grainy polaroid
      num_scenes: 3
    hashtags:
      default: ["#a", "#b", "#c"]
  - id: true_crime
    name: True Crime
    language: en
    story_style:
      default_length_seconds: 60
      tone: measured
      target_word_count: {min: 140, max: 190}
    visuals:
      base_style_prompt: archival photo
      num_scenes: 5
    hashtags:
      default: ["#truecrime", "#mystery", "#fyp"]
`
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := NewDefaultRegistry("true_crime", path)
	require.NoError(t, err)

	horror, err := r.Get("horror")
	require.NoError(t, err)
	assert.Equal(t, "Quiet Horror", horror.Name)
	assert.Equal(t, 3, horror.Visuals.NumScenes)

	def, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "true_crime", def.ID)
}

func TestProfile_Validate(t *testing.T) {
	base, err := Builtin()
	require.NoError(t, err)
	valid := base[0]

	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{name: "missing id", mutate: func(p *Profile) { p.ID = "" }},
		{name: "too many scenes", mutate: func(p *Profile) { p.Visuals.NumScenes = 7 }},
		{name: "too few scenes", mutate: func(p *Profile) { p.Visuals.NumScenes = 2 }},
		{name: "inverted word band", mutate: func(p *Profile) { p.StoryStyle.TargetWordCount.Min = 500 }},
		{name: "bad language", mutate: func(p *Profile) { p.Language = "not a language!" }},
		{name: "loud music", mutate: func(p *Profile) { p.Music.MusicVolume = 2 }},
		{name: "bad placement", mutate: func(p *Profile) { p.Captions.Placement = "sideways" }},
		{name: "few hashtags", mutate: func(p *Profile) { p.Hashtags.Default = []string{"#one"} }},
		{name: "bad image size", mutate: func(p *Profile) { p.Visuals.ImageSize = "10x10" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			p.Hashtags.Default = append([]string(nil), valid.Hashtags.Default...)
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}
