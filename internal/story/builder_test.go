package story

import (
	"context"
	"testing"

	"github.com/MimeLyc/reelforge/internal/niche"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		name  string
		words int
		max   float64
		want  float64
	}{
		{name: "short story clamps to floor", words: 60, max: 70, want: 45},
		{name: "mid story", words: 155, max: 70, want: 60},
		{name: "long story clamps to max", words: 400, max: 70, want: 70},
		{name: "no max", words: 310, max: 0, want: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateDuration(tt.words, tt.max), 0.001)
		})
	}
}

func TestTargetWords(t *testing.T) {
	band := WordBand{Min: 140, Max: 185}

	assert.Equal(t, 162, TargetWords(0, band))
	assert.Equal(t, 155, TargetWords(60, band))
	assert.Equal(t, 140, TargetWords(30, band))
	assert.Equal(t, 185, TargetWords(120, band))
}

func TestStageWords(t *testing.T) {
	got := StageWords(162)
	assert.Equal(t, 32, got[StageHook])
	assert.Equal(t, 49, got[StageBuild])
	assert.Equal(t, 45, got[StageTwist])
	assert.Equal(t, 36, got[StageEnding])

	small := StageWords(100)
	assert.Equal(t, 25, small[StageHook])
	assert.Equal(t, 30, small[StageBuild])
	assert.Equal(t, 28, small[StageTwist])
	assert.Equal(t, 25, small[StageEnding])
}

func TestFromScript(t *testing.T) {
	script := Script{
		Title:       "Night Shift",
		Description: "A guard hears something.",
		Scenes: []ScriptScene{
			{Description: "empty lobby", Narration: "The lobby was empty. The lights hummed."},
			{Description: "elevator", Narration: "The elevator opened on its own.", ImagePrompt: "steel doors, dim light"},
			{Description: "camera room", Narration: "Every monitor showed the same hallway"},
		},
	}

	s, err := FromScript(script, 70)
	require.NoError(t, err)
	require.Len(t, s.Scenes, 3)
	assert.Equal(t, 1, s.Scenes[0].Index)
	assert.Equal(t, 3, s.Scenes[2].Index)
	assert.Equal(t, "empty lobby", s.Scenes[0].ImagePrompt)
	assert.Equal(t, "steel doors, dim light", s.Scenes[1].ImagePrompt)
	assert.Equal(t, "The elevator opened on its own.", s.Scenes[1].Narration)
	assert.Equal(t, 19, s.WordCount)
	assert.Equal(t, 45.0, s.TotalDuration)
	assert.Equal(t, "The lobby was empty.", s.Hook)
	assert.NotEmpty(t, s.ID)
}

func TestFromScript_RejectsEmptyNarration(t *testing.T) {
	_, err := FromScript(Script{
		Title:  "x",
		Scenes: []ScriptScene{{Description: "a", Narration: "  "}},
	}, 70)
	require.Error(t, err)

	_, err = FromScript(Script{Title: "x"}, 70)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	bounds := Bounds{MinWords: 5, MaxWords: 20, MaxScenes: 4}
	mk := func(narrations ...string) *Story {
		s := &Story{}
		for i, n := range narrations {
			s.Scenes = append(s.Scenes, Scene{Index: i + 1, Narration: n})
		}
		return s
	}

	require.NoError(t, Validate(mk("one two", "three four", "five six"), bounds))

	err := Validate(mk("a", "b"), bounds)
	var be *BoundsError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "scene count", be.Field)

	err = Validate(mk("a b c d e f g h", "a b c d e f g h", "a b c d e f g h"), bounds)
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "word count", be.Field)
	assert.Equal(t, 24, be.Value)

	require.Error(t, Validate(mk("a b", "a b", "a b", "a b", "a b"), bounds))
}

func TestTemplateGenerator_StaysInsideProfileBand(t *testing.T) {
	registry, err := niche.NewDefaultRegistry("horror", "")
	require.NoError(t, err)
	gen := NewTemplateGenerator(70)

	prompts := []string{"abandoned lighthouse", "the motel off route 9", "my new apartment", "Old mill."}
	for _, profile := range registry.All() {
		band := WordBand{Min: profile.StoryStyle.TargetWordCount.Min, Max: profile.StoryStyle.TargetWordCount.Max}
		for _, prompt := range prompts {
			t.Run(profile.ID+"/"+prompt, func(t *testing.T) {
				s, err := gen.Generate(context.Background(), Request{
					Prompt:      prompt,
					Profile:     profile,
					TargetWords: TargetWords(0, band),
				})
				require.NoError(t, err)
				require.Len(t, s.Scenes, 4)
				require.NoError(t, Validate(s, Bounds{MinWords: band.Min, MaxWords: band.Max, MaxScenes: 6}))
				assert.GreaterOrEqual(t, len(s.Hashtags), 3)
				for i, scene := range s.Scenes {
					assert.Equal(t, i+1, scene.Index)
					assert.NotEmpty(t, scene.ImagePrompt)
					assert.Contains(t, scene.ImagePrompt, profile.Visuals.BaseStylePrompt)
					last := scene.Narration[len(scene.Narration)-1]
					assert.Contains(t, ".!?", string(last), "narration must end on a whole line")
				}
			})
		}
	}
}

func TestTemplateGenerator_Deterministic(t *testing.T) {
	registry, err := niche.NewDefaultRegistry("horror", "")
	require.NoError(t, err)
	profile, _ := registry.Get("horror")
	gen := NewTemplateGenerator(70)

	a, err := gen.Generate(context.Background(), Request{Prompt: "abandoned lighthouse", Profile: profile, TargetWords: 162})
	require.NoError(t, err)
	b, err := gen.Generate(context.Background(), Request{Prompt: "Abandoned Lighthouse ", Profile: profile, TargetWords: 162})
	require.NoError(t, err)

	assert.Equal(t, a.Narrations(), b.Narrations())
	assert.Equal(t, "The Abandoned Lighthouse", a.Title)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTemplateGenerator_EmptyPrompt(t *testing.T) {
	_, err := NewTemplateGenerator(70).Generate(context.Background(), Request{Prompt: "  ...  "})
	require.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	s := &Story{Scenes: []Scene{
		{Narration: "Nobody goes near the abandoned lighthouse after dark anymore. The air inside was colder than the night outside."},
		{Narration: "I heard footsteps above me, slow and patient, matching mine, and I told myself it was only the wind."},
	}}
	assert.Equal(t, language.English, DetectLanguage(s))
	assert.Equal(t, language.Und, DetectLanguage(&Story{}))
}
