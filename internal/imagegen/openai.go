package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "dall-e-3"

// OpenAIGenerator requests base64 images from the OpenAI images endpoint.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	quality string
}

func NewOpenAIGenerator(apiKey, baseURL, model, quality string, timeout time.Duration) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai images require an API key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...), model: model, quality: quality}, nil
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	prompt := ComposePrompt(req.Prompt, req.Profile)
	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(imageSize(req.Profile)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	if g.quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(g.quality)
	}

	start := time.Now()
	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai image request for scene %d: %w", req.SceneIndex, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("openai returned no image data for scene %d", req.SceneIndex)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image for scene %d: %w", req.SceneIndex, err)
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	output := filepath.Join(req.Dir, storage.JobFileName("scene", req.JobID, req.SceneIndex, "png"))
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return "", err
	}
	log.Info("Job %s scene %d image %d bytes in %s", req.JobID, req.SceneIndex, len(data), time.Since(start).Round(time.Millisecond))
	return output, nil
}
