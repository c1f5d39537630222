package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
)

// DefaultAPIURL points at OpenRouter, which fronts many story-capable models
// behind one OpenAI-compatible API.
const DefaultAPIURL = "https://openrouter.ai/api/v1"

// Config holds the configuration for the story chat client.
// Any OpenAI-compatible endpoint works (OpenRouter, OpenAI, local gateways).
//
// Environment Variables (read by internal/config):
// - LLM_API_KEY: API key for the provider (required for STORY_PROVIDER=openai)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for a story response (default: 2000)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.8)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
// - LLM_SITE_URL: Sent as HTTP-Referer, used by OpenRouter rankings (optional)
// - LLM_APP_NAME: Sent as X-Title (optional)
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// Validate checks the configuration before any request is made.
//
// A story request is expensive, so a misconfigured client is rejected at
// startup rather than on the first job.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return fmt.Errorf("API key is required")
	case strings.TrimSpace(c.APIURL) == "":
		return fmt.Errorf("API URL is required")
	case strings.TrimSpace(c.Model) == "":
		return fmt.Errorf("model is required")
	case c.MaxTokens < 1:
		return fmt.Errorf("max tokens must be greater than 0")
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be between 0 and 2")
	case c.Timeout < 1:
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// requestOptions translates the configuration into openai-go client options.
//
// Retries are disabled: the pipeline regenerates a failed story once and a
// second layer of retries would multiply provider calls.
func (c *Config) requestOptions() []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithBaseURL(strings.TrimRight(c.APIURL, "/") + "/"),
		option.WithRequestTimeout(time.Duration(c.Timeout) * time.Second),
		option.WithMaxRetries(0),
	}
	if c.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", c.SiteURL))
	}
	if c.AppName != "" {
		opts = append(opts, option.WithHeader("X-Title", c.AppName))
	}
	return opts
}
