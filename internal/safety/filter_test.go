package safety

import (
	"testing"

	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storyWith(narrations ...string) *story.Story {
	s := &story.Story{Title: "Test", TotalDuration: 52.5}
	for i, n := range narrations {
		s.Scenes = append(s.Scenes, story.Scene{Index: i + 1, Description: "scene", Narration: n})
	}
	return s
}

func TestCheckText_HardBans(t *testing.T) {
	f := NewFilter()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "clean", text: "The lighthouse keeper never came back down.", want: []string{}},
		{name: "suicide", text: "They called it a suicide, but nobody believed it.", want: []string{LabelSelfHarm}},
		{name: "case insensitive", text: "SUICIDAL thoughts", want: []string{LabelSelfHarm}},
		{name: "assault", text: "He was sexually assaulted.", want: []string{LabelSexualAssault}},
		{name: "minors", text: "An underage guest checked in.", want: []string{LabelMinors}},
		{name: "real world", text: "It reminded me of the school shooting.", want: []string{LabelRealWorldViolence}},
		{name: "multiple sorted", text: "A terror attack, then a suicide note.", want: []string{LabelRealWorldViolence, LabelSelfHarm}},
		{name: "no partial word", text: "The grapes were drapes of mist.", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, flags := f.CheckText(tt.text)
			assert.Equal(t, tt.want, flags)
		})
	}
}

func TestCheckText_SoftReplacements(t *testing.T) {
	f := NewFilter()

	got, flags := f.CheckText("Blood on the floor, gore on the walls, a dismembered doll.")
	assert.Empty(t, flags)
	assert.Equal(t, "Dark stains on the floor, shadows on the walls, a torn apart doll.", got)

	// applied even when the text is banned
	got, flags = f.CheckText("The suicide left blood everywhere.")
	assert.Equal(t, []string{LabelSelfHarm}, flags)
	assert.Equal(t, "The suicide left dark stains everywhere.", got)
}

func TestCheck_Idempotent(t *testing.T) {
	f := NewFilter()
	s := storyWith(
		"The corpse lay in the bloody hallway.",
		"Blood dripped. Gore everywhere. Someone was stabbed.",
		"Then the GORE stopped and the corpses stood up.",
	)

	first := f.Check(s)
	require.True(t, first.Safe)
	second := f.Check(first.Story)

	assert.True(t, second.Safe)
	assert.Empty(t, second.Flags)
	assert.Equal(t, first.Story.Narrations(), second.Story.Narrations())
	assert.Equal(t, "The still figure lay in the stained hallway.", first.Story.Scenes[0].Narration)
	assert.Equal(t, "Then the SHADOWS stopped and the still figures stood up.", first.Story.Scenes[2].Narration)
}

func TestCheck_DoesNotMutateInput(t *testing.T) {
	f := NewFilter()
	s := storyWith("There was blood.", "And more blood.", "The end.")

	res := f.Check(s)
	assert.Equal(t, "There was blood.", s.Scenes[0].Narration)
	assert.Equal(t, "There was dark stains.", res.Story.Scenes[0].Narration)
	assert.Equal(t, 52.5, res.Story.TotalDuration)
	assert.Equal(t, 10, res.Story.WordCount)
}

func TestCheck_SelfHarmScript(t *testing.T) {
	f := NewFilter()
	s := storyWith(
		"The old caretaker wrote letters every night.",
		"The last letter talked about suicide.",
		"Nobody opened the door again.",
	)

	res := f.Check(s)
	assert.False(t, res.Safe)
	assert.Equal(t, []string{LabelSelfHarm}, res.Flags)
}
