package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const storySchemaURL = "mem://reelforge/story.schema.json"

// storySchema is the contract every provider response must satisfy.
const storySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "hook", "scenes", "description", "hashtags"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "hook": {"type": "string"},
    "description": {"type": "string"},
    "scenes": {
      "type": "array",
      "minItems": 3,
      "maxItems": 6,
      "items": {
        "type": "object",
        "required": ["description", "narration", "imagePrompt"],
        "properties": {
          "description": {"type": "string"},
          "narration": {"type": "string", "minLength": 1},
          "imagePrompt": {"type": "string"},
          "sfxHint": {"type": "string"}
        }
      }
    },
    "hashtags": {
      "type": "array",
      "minItems": 3,
      "maxItems": 10,
      "items": {"type": "string"}
    }
  }
}`

var compiledStorySchema = mustCompileStorySchema()

func mustCompileStorySchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(storySchemaURL, strings.NewReader(storySchema)); err != nil {
		panic(err)
	}
	return c.MustCompile(storySchemaURL)
}

// generatedStory mirrors the JSON a model returns.
type generatedStory struct {
	Title       string `json:"title"`
	Hook        string `json:"hook"`
	Description string `json:"description"`
	Scenes      []struct {
		Description string `json:"description"`
		Narration   string `json:"narration"`
		ImagePrompt string `json:"imagePrompt"`
		SFXHint     string `json:"sfxHint,omitempty"`
	} `json:"scenes"`
	Hashtags []string `json:"hashtags"`
}

// ValidateStoryJSON checks raw model output against the story schema and
// returns it as a script. Code fences around the JSON are tolerated.
func ValidateStoryJSON(raw string) (story.Script, error) {
	body := extractJSON(raw)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return story.Script{}, fmt.Errorf("model output is not JSON: %w", err)
	}
	if err := compiledStorySchema.Validate(doc); err != nil {
		return story.Script{}, fmt.Errorf("model output does not match story schema: %w", err)
	}

	var gen generatedStory
	if err := json.Unmarshal([]byte(body), &gen); err != nil {
		return story.Script{}, fmt.Errorf("decode story: %w", err)
	}

	script := story.Script{
		Title:       strings.TrimSpace(gen.Title),
		Description: strings.TrimSpace(gen.Description),
		Hook:        strings.TrimSpace(gen.Hook),
		Hashtags:    gen.Hashtags,
	}
	for _, s := range gen.Scenes {
		script.Scenes = append(script.Scenes, story.ScriptScene{
			Description: strings.TrimSpace(s.Description),
			Narration:   strings.TrimSpace(s.Narration),
			ImagePrompt: strings.TrimSpace(s.ImagePrompt),
		})
	}
	return script, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
