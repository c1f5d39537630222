package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/reelforge/internal/storage"
	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIModel = "tts-1"
	DefaultOpenAIVoice = "onyx"
)

// OpenAISynthesizer calls the OpenAI speech endpoint and stores mp3 output.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
}

func NewOpenAISynthesizer(apiKey, baseURL, model string, timeout time.Duration) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts requires an API key")
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
	return &OpenAISynthesizer{client: openai.NewClient(opts...), model: model}, nil
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	voice := req.VoiceID
	if voice == "" {
		voice = DefaultOpenAIVoice
	}
	model := req.Model
	if model == "" {
		model = s.model
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}

	start := time.Now()
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(speed),
	})
	if err != nil {
		return "", fmt.Errorf("openai speech request: %w", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create narration dir: %w", err)
	}
	output := filepath.Join(req.Dir, storage.JobFileName("narration", req.JobID, 0, "mp3"))
	f, err := os.Create(output)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(output)
		return "", fmt.Errorf("write narration: %w", err)
	}
	if n == 0 {
		os.Remove(output)
		return "", fmt.Errorf("openai speech returned empty audio")
	}
	log.Info("Job %s narration voice=%s model=%s %d bytes in %s", req.JobID, voice, model, n, time.Since(start).Round(time.Millisecond))
	return output, nil
}
