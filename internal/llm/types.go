package llm

// CompletionRequest is a single system + user exchange.
//
// System: Instructions describing the niche, tone and output contract
// User: The concrete story request
// JSONMode: Ask the endpoint for a json_object response
// MaxTokens: Response budget, 0 means the config default
// Temperature: Sampling temperature, negative means the config default
type CompletionRequest struct {
	System      string
	User        string
	JSONMode    bool
	MaxTokens   int
	Temperature float64
}

// NewCompletionRequest returns a request that uses the config defaults.
func NewCompletionRequest(system, user string) CompletionRequest {
	return CompletionRequest{System: system, User: user, Temperature: -1}
}

// Completion is the first choice of a chat response.
//
// FinishReason values: "stop", "length", "content_filter"
type Completion struct {
	Content          string
	FinishReason     string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Truncated reports whether the model stopped because it ran out of tokens,
// which for a JSON story means the document is almost certainly cut off.
func (c *Completion) Truncated() bool {
	return c.FinishReason == "length"
}
