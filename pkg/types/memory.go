package types

import (
	"strings"
	"time"
)

// SummaryIDSuffix is appended to a conversation ID to form the deterministic
// key under which that conversation's summary is stored. Re-summarizing the
// same conversation overwrites the record instead of duplicating it.
const SummaryIDSuffix = "_summary"

// SummaryID returns the storage key for a conversation's summary record.
func SummaryID(conversationID string) string {
	return conversationID + SummaryIDSuffix
}

// ConversationMemory is a durable record summarizing one conversation (or
// conversation-so-far) for a user. All retrieval is scoped to the owning
// UserID; records are never returned across users.
//
// After creation only Importance and LastAccessed change in place. Summary
// and KeyTopics are replaced wholesale when the conversation is
// re-summarized, never merged.
type ConversationMemory struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	KeyTopics      []string  `json:"key_topics"`
	Importance     float64   `json:"importance"` // 0.0-1.0, saturates at 10 summarized messages
	CreatedAt      time.Time `json:"created_at"`
	LastAccessed   time.Time `json:"last_accessed"`
}

// MemoryContext is the transient per-request bundle the prompt-construction
// layer consumes. It is built fresh on every context-build call and never
// persisted.
type MemoryContext struct {
	// RecentMessages is the input transcript restated as "<role>: <content>"
	// lines, most recent last.
	RecentMessages []string `json:"recent_messages"`

	// ConversationSummary is the rolling summary computed this turn, or the
	// empty string when none was computed.
	ConversationSummary string `json:"conversation_summary"`

	// RelevantMemories holds summary strings from other stored records,
	// highest relevance first.
	RelevantMemories []string `json:"relevant_memories"`

	// UserContext is RelevantMemories rendered for prompt embedding.
	UserContext string `json:"user_context"`
}

// RenderUserContext joins memory summaries into the newline-separated block
// embedded into the outbound prompt.
func RenderUserContext(summaries []string) string {
	if len(summaries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, "Previous conversation: "+s)
	}
	return strings.Join(lines, "\n")
}

// RenderTranscript converts turns into "<role>: <content>" lines for prompt
// embedding, preserving order.
func RenderTranscript(turns []ChatTurn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return lines
}
