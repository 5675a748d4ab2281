package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Both the chat reply path and the summarization path use single-string
// completion style (not multi-turn chat); the prompt carries the transcript.
//
// Implementations report failures as *APIError where the provider's response
// allows classification, so callers can distinguish quota exhaustion,
// rate limiting, and auth failures from generic errors.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}
