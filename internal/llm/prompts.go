package llm

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/reelforge/internal/story"
)

const wordSlack = 20

func systemPrompt(req story.Request) string {
	p := req.Profile
	style := p.Visuals.BaseStylePrompt
	return fmt.Sprintf(`You are an expert %s writer for short vertical videos.

Write %s short-form stories that keep a viewer watching to the last second.

Story structure: %s

Requirements:
1. Hook: the first sentence must grab attention immediately.
2. Pacing: every sentence moves the story forward.
3. Retention: hold the payoff until the final scene.
4. Visual prompts: each scene needs a detailed image prompt in this style: "%s".
5. Keep it suitable for a general audience. No self-harm, sexual violence, minors in danger or real-world tragedies.

Return ONLY a JSON object with this shape:
{
  "title": "short title",
  "hook": "first sentence",
  "scenes": [
    {"description": "what the scene shows", "narration": "what the narrator says", "imagePrompt": "image prompt, %s"}
  ],
  "description": "one line video description",
  "hashtags": ["#tag1", "#tag2", "#tag3"]
}`, p.Name, strings.TrimSpace(p.StoryStyle.Tone), strings.Join(p.StoryStyle.StructureTemplate, " -> "), style, style)
}

func userPrompt(req story.Request) string {
	scenes := req.SceneCount
	if scenes <= 0 {
		scenes = req.Profile.Visuals.NumScenes
	}
	words := req.TargetWords
	if words <= 0 {
		band := story.WordBand{Min: req.Profile.StoryStyle.TargetWordCount.Min, Max: req.Profile.StoryStyle.TargetWordCount.Max}
		words = story.TargetWords(float64(req.Profile.StoryStyle.DefaultLengthSeconds), band)
	}
	low := words - wordSlack
	if low < 1 {
		low = 1
	}
	return fmt.Sprintf(`Create a %s video based on this concept:

"%s"

Requirements:
- Exactly %d scenes
- Total narration of about %d words (%d to %d)
- Tone: %s
- Use hashtags like: %s`,
		req.Profile.Name, strings.TrimSpace(req.Prompt), scenes, words, low, words+wordSlack,
		req.Profile.StoryStyle.Tone, strings.Join(req.Profile.Hashtags.Default, ", "))
}
