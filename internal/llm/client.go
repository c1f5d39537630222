package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/reelforge/pkg/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Client is a chat completion client for OpenAI-compatible endpoints.
// Thread-safe for concurrent use.
//
// config: Configuration for the API
// api: openai-go client bound to the configured base URL
type Client struct {
	config *Config
	api    openai.Client
}

// NewClient creates a new client with the given configuration
//
// Returns an error if configuration is invalid
// Example:
//
//	client, err := llm.NewClient(&llm.Config{APIKey: key, APIURL: llm.DefaultAPIURL, Model: m, MaxTokens: 2000, Timeout: 60})
//	if err != nil {
//		log.Fatal("%v", err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config: config,
		api:    openai.NewClient(config.requestOptions()...),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends one chat completion and returns the first choice.
//
// ctx: Context for the request
// req: System and user prompts plus per-request overrides
//
// Example:
//
//	req := llm.NewCompletionRequest("You are a storyteller.", "Write a two sentence horror story.")
//	completion, err := client.Complete(ctx, req)
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if strings.TrimSpace(req.User) == "" {
		return nil, fmt.Errorf("user prompt is empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(c.maxTokens(req))),
		Temperature: openai.Float(c.temperature(req)),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	completion := &Completion{
		Content:          choice.Message.Content,
		FinishReason:     string(choice.FinishReason),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	log.Debug("Chat completion model=%s finish=%s tokens=%d/%d",
		completion.Model, completion.FinishReason, completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}

// SimpleChat sends one user prompt with an optional system prompt and
// returns the first choice's content.
//
// Example:
//
//	response, err := client.SimpleChat(ctx, "Name three haunted places.", "You are a storyteller.")
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	completion, err := c.Complete(ctx, NewCompletionRequest(systemPrompt, prompt))
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// JSONChat is SimpleChat with the json_object response format. A response
// cut off by the token limit is an error, since the JSON cannot be whole.
func (c *Client) JSONChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	req := NewCompletionRequest(systemPrompt, prompt)
	req.JSONMode = true
	completion, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if completion.Truncated() {
		return "", fmt.Errorf("response truncated at %d tokens", c.maxTokens(req))
	}
	return completion.Content, nil
}

// maxTokens returns the max tokens to use for the request
func (c *Client) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.config.MaxTokens
}

// temperature returns the temperature to use for the request
func (c *Client) temperature(req CompletionRequest) float64 {
	if req.Temperature >= 0 && req.Temperature <= 2 {
		return req.Temperature
	}
	return c.config.Temperature
}
