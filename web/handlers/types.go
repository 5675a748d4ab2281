package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scrypster/converse/internal/llm"
	"github.com/scrypster/converse/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is the response format for GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Model        string `json:"model,omitempty"`
	Summarizer   bool   `json:"summarizer_configured"`
	BreakerState string `json:"memory_breaker_state"`
}

// MemoryResponse is the response format for GET /api/memory.
type MemoryResponse struct {
	RelevantMemories    []string `json:"relevant_memories"`
	ConversationSummary string   `json:"conversation_summary"`
	RecentMessages      []string `json:"recent_messages"`
	MemoryCount         int      `json:"memory_count"`
}

// ConversationsResponse is the response format for GET /api/conversations.
type ConversationsResponse struct {
	Conversations []*types.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// MessagesResponse is the response format for
// GET /api/conversations/{id}/messages.
type MessagesResponse struct {
	Messages []*types.Message `json:"messages"`
	Total    int              `json:"total"`
}

// UsageResponse is the response format for GET /api/usage.
type UsageResponse struct {
	Records []*types.UsageRecord `json:"records"`
	Pricing []llm.ModelPricing   `json:"pricing"`
}

// Helper functions

// extractID extracts a path parameter from the request.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent, can only log
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
