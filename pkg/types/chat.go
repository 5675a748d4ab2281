package types

import "time"

// Message roles as stored in the messages table and sent to the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"` // "user" or "assistant"
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Conversation groups an ordered sequence of messages for one user.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatTurn is the minimal role/content pair used for prompt assembly and
// summarization. Handlers convert stored Messages into ChatTurns before
// handing them to the memory subsystem.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageRecord captures the token and cost accounting for one model call.
type UsageRecord struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ConversationID   string    `json:"conversation_id"`
	MessageID        string    `json:"message_id"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	Timestamp        time.Time `json:"timestamp"`
}
