package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/reelforge/internal/story"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiStoryGenerator drafts stories with Google's Gemini models.
type GeminiStoryGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxSeconds  float64
}

func NewGeminiStoryGenerator(ctx context.Context, apiKey, model string, temperature float64, maxSeconds float64) (*GeminiStoryGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini requires an API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiStoryGenerator{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		maxSeconds:  maxSeconds,
	}, nil
}

func (g *GeminiStoryGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiStoryGenerator) Generate(ctx context.Context, req story.Request) (*story.Story, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("story prompt is empty")
	}
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(req)))

	log.Info("Generating story niche=%s model=%s (gemini)", req.Profile.ID, g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("story generation failed: %w", err)
	}
	raw := responseText(resp)
	if raw == "" {
		return nil, fmt.Errorf("gemini returned no text")
	}
	return buildStory(raw, g.maxSeconds)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
