package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/pkg/log"
)

// ChatStoryGenerator drafts stories through an OpenAI-compatible chat
// endpoint in JSON mode.
type ChatStoryGenerator struct {
	client     *Client
	maxSeconds float64
}

func NewChatStoryGenerator(client *Client, maxSeconds float64) *ChatStoryGenerator {
	return &ChatStoryGenerator{client: client, maxSeconds: maxSeconds}
}

func (g *ChatStoryGenerator) Generate(ctx context.Context, req story.Request) (*story.Story, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("story prompt is empty")
	}
	log.Info("Generating story niche=%s model=%s scenes=%d words=%d", req.Profile.ID, g.client.Model(), req.SceneCount, req.TargetWords)

	raw, err := g.client.JSONChat(ctx, userPrompt(req), systemPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("story generation failed: %w", err)
	}
	return buildStory(raw, g.maxSeconds)
}

func buildStory(raw string, maxSeconds float64) (*story.Story, error) {
	script, err := ValidateStoryJSON(raw)
	if err != nil {
		return nil, err
	}
	s, err := story.FromScript(script, maxSeconds)
	if err != nil {
		return nil, err
	}
	story.Finalize(s, maxSeconds)
	log.Info("Story generated title=%q scenes=%d words=%d", s.Title, len(s.Scenes), s.WordCount)
	return s, nil
}
